package service

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Wave int

const (
	//车辆控制相关，最先启动
	WavePriority Wave = iota + 1
	WaveNormal
)

var waveNames = map[Wave]string{
	WavePriority: "priority",
	WaveNormal:   "normal",
}

func (w Wave) String() string {
	if name, ok := waveNames[w]; ok {
		return name
	}
	return fmt.Sprintf("wave(%d)", int(w))
}

func ParseWave(s string) (Wave, error) {
	for w, name := range waveNames {
		if strings.EqualFold(s, name) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("未知的启动批次 %q", s)
}

func (w *Wave) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseWave(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Descriptor 描述一个常驻服务，MemoryLimitMB 为 0 表示不限制
type Descriptor struct {
	Name          string `yaml:"name"`
	MemoryLimitMB int    `yaml:"memory_limit_mb"`
	Command       string `yaml:"command"`
	Wave          Wave   `yaml:"wave"`
}
