package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger 全局日志，输出到标准错误，标准输出留给指纹结果
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Logger.SetLevel(logrus.InfoLevel)
}

// SetLevel 按名称设置日志级别 (debug, info, warn, error)
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", level, err)
	}
	Logger.SetLevel(lvl)
	return nil
}
