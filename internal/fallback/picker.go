package fallback

import (
	"math/rand/v2"
	"sync"
)

// Picker chooses an index in [0, n). Implementations must tolerate n == 1.
type Picker interface {
	IntN(n int) int
}

// globalPicker draws from the process-wide math/rand/v2 source.
type globalPicker struct{}

func (globalPicker) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	return rand.IntN(n)
}

// seededPicker is a deterministic source guarded for concurrent use.
type seededPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededPicker returns a Picker that yields the same sequence for the same seed.
func NewSeededPicker(seed uint64) Picker {
	return &seededPicker{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *seededPicker) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.IntN(n)
}

func pick(p Picker, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	idx := p.IntN(len(pool))
	if idx < 0 || idx >= len(pool) {
		idx = 0
	}
	return pool[idx]
}
