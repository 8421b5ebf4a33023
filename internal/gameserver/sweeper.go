package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs registered cleanup callbacks on a fixed interval. The hub's
// stale-connection sweep and the registry's session TTL sweep both run here,
// torn down together on shutdown.
//
// Invariant: every callback runs at most once per interval.
type Sweeper struct {
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	sweeps map[string]func(now time.Time)
	quit   chan struct{}
	done   chan struct{}
}

// NewSweeper returns a Sweeper that fires every interval.
//
// Precondition: interval must be > 0; logger must be non-nil.
func NewSweeper(interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		panic("gameserver.NewSweeper: interval must be > 0")
	}
	return &Sweeper{
		interval: interval,
		logger:   logger,
		sweeps:   make(map[string]func(now time.Time)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register adds a named sweep callback. Replaces any existing callback with
// the same name.
func (s *Sweeper) Register(name string, fn func(now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps[name] = fn
}

// Start runs the sweep loop. It blocks until Stop is called, satisfying the
// lifecycle Service contract.
func (s *Sweeper) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return nil
		case now := <-ticker.C:
			s.mu.Lock()
			callbacks := make(map[string]func(time.Time), len(s.sweeps))
			for name, fn := range s.sweeps {
				callbacks[name] = fn
			}
			s.mu.Unlock()

			for name, fn := range callbacks {
				start := time.Now()
				fn(now.UTC())
				s.logger.Debug("sweep complete",
					zap.String("sweep", name),
					zap.Duration("elapsed", time.Since(start)),
				)
			}
		}
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.quit)
	<-s.done
}
