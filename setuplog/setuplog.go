// Package setuplog retains the most recent log entries so they can be
// inspected after the fact, for example from the setup portal or a
// debug dump.
package setuplog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultCapacity = 500

type SetupLog struct {
	mtx      sync.Mutex
	entries  []string
	capacity int
}

func New() *SetupLog {
	return &SetupLog{
		capacity: defaultCapacity,
	}
}

// Levels makes the hook fire for every log level.
func (l *SetupLog) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements the logrus.Hook interface.
func (l *SetupLog) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.entries = append(l.entries, line)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}

	return nil
}

// RecentEntries returns a copy of the retained log lines, oldest first.
func (l *SetupLog) RecentEntries() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	entries := make([]string, len(l.entries))
	copy(entries, l.entries)

	return entries
}
