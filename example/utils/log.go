package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

//NewLogger debug模式下打印行号并输出到控制台,否则写json格式日志文件
func NewLogger(debug bool, file string) (*logrus.Logger, error) {
	logger := logrus.New()
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.Hooks.Add(NewContextHook())
	} else {
		logger.Formatter = &logrus.JSONFormatter{}
	}

	writers := []io.Writer{}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件: %w", err)
		}
		writers = append(writers, f)
	}
	if debug || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	logger.Out = io.MultiWriter(writers...)
	return logger, nil
}

//contextHook 记录调用位置
type contextHook struct {
	Field  string
	Skip   int
	levels []logrus.Level
}

//NewContextHook 不指定级别时对全部级别生效
func NewContextHook(levels ...logrus.Level) logrus.Hook {
	hook := contextHook{
		Field:  "line",
		Skip:   8,
		levels: levels,
	}
	if len(hook.levels) == 0 {
		hook.levels = logrus.AllLevels
	}
	return &hook
}

//Levels 生效的级别
func (hook contextHook) Levels() []logrus.Level {
	return hook.levels
}

//Fire 写入调用位置
func (hook contextHook) Fire(entry *logrus.Entry) error {
	entry.Data[hook.Field] = findCaller(hook.Skip)
	return nil
}

//findCaller 跳过logrus自身的栈帧
func findCaller(skip int) string {
	file, line := "", 0
	for i := 0; i < 10; i++ {
		file, line = getCaller(skip + i)
		if file != "" && !strings.HasPrefix(file, "logrus") {
			break
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

//getCaller 文件名保留最后一级目录
func getCaller(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0
	}
	n := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			n++
			if n >= 2 {
				file = file[i+1:]
				break
			}
		}
	}
	return file, line
}
