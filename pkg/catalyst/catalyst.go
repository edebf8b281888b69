package catalyst

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tasktonic/tasktonic/pkg/ledger"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
	"github.com/tasktonic/tasktonic/pkg/metrics"
	"github.com/tasktonic/tasktonic/pkg/tonic"
)

// idleDefault bounds how long the main loop blocks with no queued work and
// no armed timer, so a Stop() request is never left waiting indefinitely.
const idleDefault = 500 * time.Millisecond

// LoopStrategy lets a host (a GUI's own event loop, a test harness) drive
// dispatch instead of Catalyst.Run's dedicated goroutine. Dequeue must
// return the next item to run, or ok=false if none arrived within timeout.
type LoopStrategy interface {
	Dequeue(timeout time.Duration) (work func(), ok bool)
}

// Catalyst is a single-consumer executor: a FIFO work queue, an "extra
// sparkles" LIFO stack drained after every queue item, and a deadline-
// ordered timer heap, all served by one goroutine (or, for the main
// catalyst, the launching goroutine itself).
type Catalyst struct {
	*tonic.Essence

	ledger   *ledger.Ledger
	registry *Registry
	isMain   bool
	name     string

	mu      sync.Mutex
	queue   []func()
	extra   []func()
	timers  timerHeap
	wake    chan struct{}
	stopCh  chan struct{}
	stopped bool

	fleet map[int]bool

	strategy LoopStrategy
	metrics  *metrics.Catalyst
}

// New constructs a non-main catalyst bound under context (typically the
// main catalyst). registry is the shared shutdown broadcaster; it receives
// a shutdown signal when the main catalyst's fleet empties.
func New(l *ledger.Ledger, name string, context tonic.Node, registry *Registry, collector logcollector.Collector, m *metrics.Catalyst) (*Catalyst, error) {
	c := &Catalyst{
		ledger:   l,
		registry: registry,
		name:     name,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		fleet:    make(map[int]bool),
		metrics:  m,
	}
	ess, err := tonic.NewEssence(l, name, "catalyst", context, c, collector)
	if err != nil {
		return nil, err
	}
	c.Essence = ess
	return c, nil
}

// NewMain constructs the main catalyst with the ledger-guaranteed fixed id
// 0, per the startup ordering's id-0 requirement.
func NewMain(l *ledger.Ledger, collector logcollector.Collector, m *metrics.Catalyst) (*Catalyst, error) {
	c := &Catalyst{
		ledger:   l,
		registry: NewRegistry(),
		isMain:   true,
		name:     "main_catalyst",
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		fleet:    make(map[int]bool),
		metrics:  m,
	}
	ess, err := tonic.NewEssenceFixed(0, l, c.name, "catalyst", nil, c, collector)
	if err != nil {
		return nil, err
	}
	c.Essence = ess
	return c, nil
}

// Spawn constructs a new Tonic under context (nil binds it directly to
// this catalyst), registers it in this catalyst's sparkling fleet, and
// arranges for it to leave the fleet automatically when it finishes. When
// the main catalyst's fleet empties this way, the main catalyst finishes
// itself and broadcasts shutdown.
func (c *Catalyst) Spawn(name string, context tonic.Node, h *tonic.Handlers, collector logcollector.Collector) (*tonic.Tonic, error) {
	if context == nil {
		context = c.Essence
	}
	t, err := tonic.New(c.ledger, name, context, h, collector)
	if err != nil {
		return nil, err
	}
	c.BindTonic(t.ID())
	id := t.ID()
	t.OnFinishHook(func() { c.UnbindTonic(id) })
	return t, nil
}

// Registry returns the shutdown broadcaster this catalyst is wired to.
func (c *Catalyst) Registry() *Registry { return c.registry }

// IsMain reports whether this is the process's main catalyst.
func (c *Catalyst) IsMain() bool { return c.isMain }

func (c *Catalyst) ledgerHandle() *ledger.Ledger { return c.ledger }

// Enqueue implements tonic.CatalystHandle: appends work to the FIFO queue
// and wakes the loop if it is idle.
func (c *Catalyst) Enqueue(work func()) {
	c.mu.Lock()
	c.queue = append(c.queue, work)
	depth := len(c.queue)
	c.wakeLocked()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.QueueDepth.WithLabelValues(c.name).Set(float64(depth))
	}
}

// PushExtra implements tonic.CatalystHandle: pushes work onto the LIFO
// extra-sparkles stack, drained after the currently executing item and
// before the next queued one.
func (c *Catalyst) PushExtra(work func()) {
	c.mu.Lock()
	c.extra = append(c.extra, work)
	c.mu.Unlock()
}

func (c *Catalyst) wakeLocked() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// BindTonic registers id as part of this catalyst's "sparkling" fleet;
// UnbindTonic (called when a tonic finishes) removes it, and — on the main
// catalyst only — finishing the last fleet member finishes the catalyst
// itself and broadcasts process shutdown.
func (c *Catalyst) BindTonic(id int) {
	c.mu.Lock()
	c.fleet[id] = true
	c.mu.Unlock()
}

// UnbindTonic removes id from the fleet. When this was the main catalyst's
// last fleet member, the main catalyst finishes and broadcasts shutdown.
func (c *Catalyst) UnbindTonic(id int) {
	c.mu.Lock()
	delete(c.fleet, id)
	empty := len(c.fleet) == 0
	c.mu.Unlock()
	if empty && c.isMain {
		c.Finish()
		c.registry.BroadcastShutdown()
		c.requestStop()
	}
}

// FinishIfFleetEmpty finishes the main catalyst (and broadcasts shutdown) if
// its fleet is currently empty. Run's caller calls this once after the
// starting tonics are built, so a Build hook that spawns nothing (or only
// already-finished tonics) still lets the main loop return instead of idling
// forever waiting for a fleet member that will never arrive.
func (c *Catalyst) FinishIfFleetEmpty() {
	c.mu.Lock()
	empty := len(c.fleet) == 0
	c.mu.Unlock()
	if empty && c.isMain {
		c.Finish()
		c.registry.BroadcastShutdown()
		c.requestStop()
	}
}

func (c *Catalyst) requestStop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.stopCh)
}

// Stop requests the loop exit after finishing any in-flight item.
func (c *Catalyst) Stop() {
	c.requestStop()
}

// SetLoopStrategy overrides how Run obtains its next unit of work, for
// embedding the catalyst's dispatch inside a host event loop instead of a
// dedicated goroutine.
func (c *Catalyst) SetLoopStrategy(s LoopStrategy) {
	c.strategy = s
}

// Run drives the main loop until Stop is called (directly, or indirectly
// via the main catalyst's fleet emptying, or the shared Registry
// broadcasting shutdown for non-main catalysts). It blocks the calling
// goroutine; the main catalyst conventionally runs this on the process's
// launching goroutine, non-main catalysts on a dedicated one via RunAsync.
func (c *Catalyst) Run() {
	var shutdown <-chan struct{}
	if !c.isMain {
		shutdown = c.registry.Subscribe()
	}
	for {
		c.drainExtra()

		select {
		case <-c.stopCh:
			return
		case <-shutdown:
			return
		default:
		}

		work, ok := c.next()
		if !ok {
			now := time.Now()
			c.fireExpired(now)
			continue
		}
		c.runItem(work)
	}
}

// RunAsync starts Run on a new goroutine and returns immediately.
func (c *Catalyst) RunAsync() {
	go c.Run()
}

func (c *Catalyst) runItem(work func()) {
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("catalyst", c.name).Interface("panic", r).Msg("queued work panicked")
			}
		}()
		work()
	}()
	if c.metrics != nil {
		c.metrics.SparklesTotal.WithLabelValues(c.name).Inc()
		c.metrics.SparkleDuration.Observe(time.Since(start).Seconds())
	}
}

func (c *Catalyst) drainExtra() {
	for {
		c.mu.Lock()
		n := len(c.extra)
		if n == 0 {
			c.mu.Unlock()
			return
		}
		fn := c.extra[n-1]
		c.extra = c.extra[:n-1]
		c.mu.Unlock()
		c.runItem(fn)
	}
}

// next returns the next queue item if one is already present, or if the
// loop strategy/built-in wait produces one before its wait budget (bounded
// by the nearest timer deadline, or idleDefault with none armed) elapses.
func (c *Catalyst) next() (func(), bool) {
	if c.strategy != nil {
		return c.strategy.Dequeue(c.waitBudget())
	}
	return c.dequeueBuiltin(c.waitBudget())
}

func (c *Catalyst) waitBudget() time.Duration {
	if deadline, ok := c.nextDeadline(); ok {
		d := time.Until(deadline)
		if d < 0 {
			return 0
		}
		if d < idleDefault {
			return d
		}
	}
	return idleDefault
}

func (c *Catalyst) dequeueBuiltin(timeout time.Duration) (func(), bool) {
	c.mu.Lock()
	if len(c.queue) > 0 {
		item := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.QueueDepth.WithLabelValues(c.name).Set(float64(len(c.queue)))
		}
		return item, true
	}
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.wake:
		c.mu.Lock()
		if len(c.queue) > 0 {
			item := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return item, true
		}
		c.mu.Unlock()
		return nil, false
	case <-timer.C:
		return nil, false
	case <-c.stopCh:
		return nil, false
	}
}

func (c *Catalyst) runTimerCallback(t *Timer) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("catalyst", c.name).Int("timer_id", t.ID()).Interface("panic", r).Msg("timer callback panicked")
		}
	}()
	if c.metrics != nil {
		c.metrics.TimersActive.WithLabelValues(c.name).Set(float64(len(c.timers)))
	}
	t.callback()
}
