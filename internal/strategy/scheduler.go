package strategy

import "sync"

// Scheduler gates ticks: the counter starts at -1 and advances on every
// invocation, but only every skip-th tick is active. The mutex keeps ticks
// from interleaving if a caller ever drives it from more than one goroutine.
type Scheduler struct {
	mu      sync.Mutex
	counter int64
	skip    int64
}

func NewScheduler(skipBlocks int) *Scheduler {
	if skipBlocks < 1 {
		skipBlocks = 1
	}
	return &Scheduler{counter: -1, skip: int64(skipBlocks)}
}

// Next advances the counter and reports whether this tick performs work.
func (s *Scheduler) Next() (tick int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return s.counter, s.counter%s.skip == 0
}

func (s *Scheduler) Counter() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}
