package pidlog

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

//启动日志只面向人阅读，统一加上进程号前缀
func Setup(level string, out io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("日志级别 %q 无效: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return nil
}

func formatWithPid(format string) string {
	pid := os.Getpid()

	return fmt.Sprintf("[%d] %s", pid, format)
}

func Infof(format string, args ...interface{}) {
	log.Infof(formatWithPid(format), args...)
}

func Debugf(format string, args ...interface{}) {
	log.Debugf(formatWithPid(format), args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(formatWithPid(format), args...)
}

func Errorf(format string, args ...interface{}) {
	log.Errorf(formatWithPid(format), args...)
}
