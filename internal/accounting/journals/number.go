package journals

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Prefix scopes entry numbers per document type.
type Prefix string

const (
	PrefixSale     Prefix = "SALE"
	PrefixPurchase Prefix = "PURCHASE"
	PrefixPayment  Prefix = "PAYMENT"
	PrefixReturn   Prefix = "RETURN"
	PrefixManual   Prefix = "MANUAL"
	PrefixReversal Prefix = "REV"
)

// NumberGenerator produces entry numbers of the form
// PREFIX-DOCREF-YYYYMMDDHHMMSS, appending -NN when multiple numbers are
// requested within the same wall-clock second. The database unique index
// on journal_entries.number is the cross-process backstop.
type NumberGenerator struct {
	mu      sync.Mutex
	now     func() time.Time
	lastTS  string
	counter int
}

// NewNumberGenerator constructs a generator using the system clock.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now}
}

// WithNow overrides the clock for testing.
func (g *NumberGenerator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Next returns the next entry number for the prefix and document reference.
func (g *NumberGenerator) Next(prefix Prefix, docRef string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := g.now().Format("20060102150405")
	if ts == g.lastTS {
		g.counter++
	} else {
		g.lastTS = ts
		g.counter = 0
	}
	ref := sanitizeDocRef(docRef)
	if g.counter == 0 {
		return fmt.Sprintf("%s-%s-%s", prefix, ref, ts)
	}
	return fmt.Sprintf("%s-%s-%s-%02d", prefix, ref, ts, g.counter)
}

func sanitizeDocRef(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return "GEN"
	}
	return strings.ReplaceAll(ref, " ", "")
}
