package logcollector

import "time"

// Record is one sparkle dispatch's accumulated log output.
type Record struct {
	ID             string
	StartTimestamp time.Time
	Duration       time.Duration
	Log            []string
	Sys            map[string]any
}

// Collector receives completed Records. Implementations must not block the
// caller for long: PutLog runs on the catalyst goroutine that just
// finished dispatching a sparkle.
type Collector interface {
	PutLog(Record)
}

// Off is a Collector that discards everything; used for stealth logging
// during the logger service's own bootstrap, where routing its log through
// itself would deadlock.
type Off struct{}

// PutLog implements Collector by doing nothing.
func (Off) PutLog(Record) {}
