package logcollector

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScreenCollector writes each Record as a handful of human-readable lines
// straight to the output held in its zerolog ConsoleWriter (the console
// writer's own formatting is not applied): a header line with timing and a
// correlation id, then one indented line per accumulated log entry.
type ScreenCollector struct {
	mu     sync.Mutex
	writer zerolog.ConsoleWriter
}

// NewScreenCollector returns a collector writing to out (os.Stdout if nil).
func NewScreenCollector(out io.Writer) *ScreenCollector {
	if out == nil {
		out = os.Stdout
	}
	return &ScreenCollector{writer: zerolog.ConsoleWriter{Out: out, NoColor: false}}
}

// PutLog implements Collector.
func (s *ScreenCollector) PutLog(r Record) {
	if len(r.Log) == 0 {
		return
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	header := fmt.Sprintf("[%s] %s (%s)\n", id, r.StartTimestamp.Format("15:04:05.000"), r.Duration)
	_, _ = io.WriteString(s.writer.Out, header)
	for _, line := range r.Log {
		_, _ = fmt.Fprintf(s.writer.Out, "    %s\n", line)
	}
}
