package iec104

import (
	"io"

	"github.com/sirupsen/logrus"
)

//discardLogger 未指定日志时使用
var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}()

func newEntry(logger *logrus.Logger, role Role, remote string) *logrus.Entry {
	if logger == nil {
		logger = discardLogger
	}
	fields := logrus.Fields{"role": role.String()}
	if remote != "" {
		fields["remote"] = remote
	}
	return logger.WithFields(fields)
}
