package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// SignedLogger writes JSON Lines where each line is a SignedEntry wrapping
// the original support access entry.
type SignedLogger struct {
	mu     sync.Mutex
	writer io.Writer
	config *SignatureConfig
}

// NewSignedLogger creates a SignedLogger with the given writer and config.
// The config must have a secret key of at least MinKeyLength bytes.
func NewSignedLogger(w io.Writer, config *SignatureConfig) *SignedLogger {
	return &SignedLogger{
		writer: w,
		config: config,
	}
}

// LogSupportAccess signs and writes a support access entry.
// If signing fails the entry is still written unsigned and the failure is
// reported on stderr; a broken key must not silence the audit log.
func (l *SignedLogger) LogSupportAccess(entry SupportAccessLogEntry) {
	var line any = entry
	signed, err := NewSignedEntry(entry, l.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing error: %v\n", err)
	} else {
		line = signed
	}

	data, err := json.Marshal(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal error: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(append(data, '\n'))
}
