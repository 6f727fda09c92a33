package ldif

import (
	"fmt"
	"strings"
)

// recordingLog keeps every audit message for assertions.
type recordingLog struct {
	keys     []string
	messages []string
}

func (l *recordingLog) SetRecord(key string) {
	l.keys = append(l.keys, key)
}

func (l *recordingLog) Printf(format string, args ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *recordingLog) contains(sub string) bool {
	for _, m := range l.messages {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}
