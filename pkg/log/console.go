/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleHook sends log to stdout/stderr.
type ConsoleHook struct {
	formatter logrus.Formatter
}

func newConsoleHook(logFormat logrus.Formatter) *ConsoleHook {
	return &ConsoleHook{formatter: logFormat}
}

// Levels returns all levels.
func (hook *ConsoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire writes the entry to stdout or stderr depending on its level.
func (hook *ConsoleHook) Fire(logEntry *logrus.Entry) error {
	var logWriter io.Writer
	switch logEntry.Level {
	case logrus.DebugLevel, logrus.InfoLevel, logrus.WarnLevel:
		logWriter = os.Stdout
	case logrus.ErrorLevel, logrus.FatalLevel:
		logWriter = os.Stderr
	default:
		return fmt.Errorf("unknown log level: %v", logEntry.Level)
	}
	lineBytes, err := hook.formatter.Format(logEntry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to format logEntry: %v", err)
		return err
	}
	if _, err := logWriter.Write(lineBytes); err != nil {
		return err
	}
	return nil
}
