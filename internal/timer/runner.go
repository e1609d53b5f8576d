package timer

import (
	"context"
	"time"
)

// Ticker is anything advanced by a periodic tick. Tick reports whether it
// wants further ticks.
type Ticker interface {
	Tick() bool
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func() bool

// Tick calls f.
func (f TickerFunc) Tick() bool { return f() }

// Run ticks t every interval until it reports false or ctx is done. Callers
// that share state with t must serialise inside the Ticker.
func Run(ctx context.Context, t Ticker, interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if !t.Tick() {
				return
			}
		}
	}
}
