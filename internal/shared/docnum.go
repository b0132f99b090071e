package shared

import (
	"fmt"
	"sync"
	"time"
)

// DocNumberGenerator produces document numbers of the form
// PREFIX-YYYYMMDDHHMMSS, appending -NN within the same second. Unique
// indexes on the document tables are the cross-process backstop.
type DocNumberGenerator struct {
	mu      sync.Mutex
	now     func() time.Time
	lastTS  string
	counter int
}

// NewDocNumberGenerator constructs a generator using the system clock.
func NewDocNumberGenerator() *DocNumberGenerator {
	return &DocNumberGenerator{now: time.Now}
}

// WithNow overrides the clock for testing.
func (g *DocNumberGenerator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Next returns the next document number for the prefix.
func (g *DocNumberGenerator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := g.now().Format("20060102150405")
	if ts == g.lastTS {
		g.counter++
	} else {
		g.lastTS = ts
		g.counter = 0
	}
	if g.counter == 0 {
		return fmt.Sprintf("%s-%s", prefix, ts)
	}
	return fmt.Sprintf("%s-%s-%02d", prefix, ts, g.counter)
}
