package report

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is the measured wall time of one named job phase.
type Phase struct {
	Name     string        `yaml:"name" json:"name"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Clock times named phases. Phases are reported in the order they were
// started; restarting a phase adds to its duration.
type Clock struct {
	mu     sync.Mutex
	now    func() time.Time
	order  []string
	total  map[string]time.Duration
	active map[string]time.Time
}

func NewClock() *Clock {
	return newClockAt(time.Now)
}

func newClockAt(now func() time.Time) *Clock {
	return &Clock{
		now:    now,
		total:  make(map[string]time.Duration),
		active: make(map[string]time.Time),
	}
}

// Start begins timing phase. Starting a running phase restarts it.
func (c *Clock) Start(phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.total[phase]; !ok {
		c.order = append(c.order, phase)
		c.total[phase] = 0
	}
	c.active[phase] = c.now()
}

// Stop ends phase and returns the time since its Start, or zero if it is
// not running.
func (c *Clock) Stop(phase string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	started, ok := c.active[phase]
	if !ok {
		return 0
	}
	delete(c.active, phase)
	d := c.now().Sub(started)
	c.total[phase] += d
	return d
}

// Phases returns the stopped durations in start order.
func (c *Clock) Phases() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	phases := make([]Phase, 0, len(c.order))
	for _, name := range c.order {
		phases = append(phases, Phase{Name: name, Duration: c.total[name]})
	}
	return phases
}

// Summary renders one "name: duration" line per phase.
func (c *Clock) Summary() string {
	var b strings.Builder
	for _, p := range c.Phases() {
		fmt.Fprintf(&b, "%s: %s\n", p.Name, p.Duration.Round(time.Microsecond))
	}
	return b.String()
}
