package faillog

import (
	"fmt"
	"os"
	"sync"
)

// Log is an append-only text log of failed pipeline items, one "key|context"
// line per failure. It is only ever read by humans for offline reprocessing.
type Log struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// Append records one failed item. Fields are joined with '|'.
func (l *Log) Append(fields ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("faillog open %s: %w", l.path, err)
	}
	defer f.Close()
	line := ""
	for i, field := range fields {
		if i > 0 {
			line += "|"
		}
		line += field
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("faillog write %s: %w", l.path, err)
	}
	return nil
}
