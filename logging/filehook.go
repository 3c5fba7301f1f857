package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogrusFileHook appends every entry as one JSON line to a file
type LogrusFileHook struct {
	sync.Mutex
	file      *os.File
	formatter *logrus.JSONFormatter
	levels    []logrus.Level
}

// NewLogrusFileHook opens file with flag and chmod, entries below minLevel are skipped
func NewLogrusFileHook(file string, flag int, chmod os.FileMode, minLevel logrus.Level) (*LogrusFileHook, error) {
	logFile, err := os.OpenFile(file, flag, chmod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to write file on filehook %v\n", err)
		return nil, err
	}

	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= minLevel {
			levels = append(levels, level)
		}
	}

	return &LogrusFileHook{
		file:      logFile,
		formatter: &logrus.JSONFormatter{},
		levels:    levels,
	}, nil
}

// Fire writes entry to the file
func (hook *LogrusFileHook) Fire(entry *logrus.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}

	hook.Lock()
	defer hook.Unlock()

	_, err = hook.file.Write(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to write file on filehook(entry.String) %v\n", err)
		return err
	}
	return nil
}

func (hook *LogrusFileHook) Levels() []logrus.Level {
	return hook.levels
}

// Close closes the log file
func (hook *LogrusFileHook) Close() error {
	hook.Lock()
	defer hook.Unlock()

	return hook.file.Close()
}
