package util

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// LogProgressFunc adds to the progress. It can be called concurrently;
// negative values are ignored.
type LogProgressFunc func(addProgress int)

// LogProgress returns a function that accumulates progress towards total and
// logs every time another 1/steps of the work is done.
func LogProgress(log zerolog.Logger, message string, total int, steps int) LogProgressFunc {
	if steps < 1 {
		steps = 1
	}
	increment := uint64(total / steps)
	if increment == 0 {
		increment = 1
	}
	start := time.Now()
	current := atomic.NewUint64(0)

	var mu sync.Mutex
	logProgress := func(done uint64) {
		mu.Lock()
		defer mu.Unlock()
		percentage := float64(100)
		if total > 0 {
			percentage = float64(done) / float64(total) * 100
		}
		log.Info().
			Uint64("done", done).
			Int("total", total).
			Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
			Msgf("%s progress %.1f%%", message, percentage)
	}

	return func(add int) {
		if add <= 0 {
			return
		}
		now := current.Add(uint64(add))
		before := now - uint64(add)
		if before/increment != now/increment || now == uint64(total) {
			logProgress(now)
		}
	}
}
