package main

import (
	"fmt"
	"io"
)

type paneCapturer interface {
	CapturePane(name string, maxLines int) (string, error)
}

func logService(out io.Writer, host paneCapturer, name string, lines int) error {
	content, err := host.CapturePane(name, lines)
	if err != nil {
		return fmt.Errorf("读取服务 %s 输出失败: %w", name, err)
	}
	_, err = fmt.Fprint(out, content)
	return err
}
