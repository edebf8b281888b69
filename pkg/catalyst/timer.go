package catalyst

import (
	"container/heap"
	"time"

	"github.com/tasktonic/tasktonic/pkg/tonic"
)

// Kind selects a Timer's re-arm behavior on expiry.
type Kind int

const (
	// OneShot fires once and finishes itself.
	OneShot Kind = iota
	// Repeating re-arms at expire+period every time it fires, so it never
	// drifts relative to its original schedule regardless of how late the
	// catalyst got around to firing it.
	Repeating
	// Pausing re-arms period from the moment it fired rather than from its
	// previous deadline, and can be paused and resumed; resuming re-arms
	// with the time that was left when it was paused.
	Pausing
)

// Timer is a bound deadline callback owned by a Catalyst. It embeds
// tonic.Essence so it is ledger-registered, bindable, and finishable like
// any other entity, without the handler-table/state-machine machinery a
// full Tonic carries.
type Timer struct {
	*tonic.Essence
	cat      *Catalyst
	kind     Kind
	period   time.Duration
	callback func()

	heapIndex   int
	deadline    time.Time
	paused      bool
	armed       bool
	resumeDelay time.Duration
}

// NewTimer registers a new, unarmed timer under context. Call Start to
// arm it.
func (c *Catalyst) NewTimer(name string, context tonic.Node, kind Kind, period time.Duration, cb func()) (*Timer, error) {
	ess, err := tonic.NewEssence(c.ledgerHandle(), name, "timer", context, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Timer{Essence: ess, cat: c, kind: kind, period: period, callback: cb}, nil
}

// Start arms the timer to first fire after delay.
func (t *Timer) Start(delay time.Duration) {
	t.deadline = time.Now().Add(delay)
	t.cat.armTimer(t)
}

// Restart re-arms the timer to fire after delay from now, removing any
// previous scheduling.
func (t *Timer) Restart(delay time.Duration) {
	t.cat.disarmTimer(t)
	t.Start(delay)
}

// Stop disarms the timer without finishing it.
func (t *Timer) Stop() {
	t.cat.disarmTimer(t)
}

// Pause freezes a Pausing timer, remembering the time left until it would
// have fired.
func (t *Timer) Pause() {
	if t.kind != Pausing || !t.armed {
		return
	}
	remaining := time.Until(t.deadline)
	if remaining < 0 {
		remaining = 0
	}
	t.cat.disarmTimer(t)
	t.paused = true
	t.resumeDelay = remaining
}

// Resume re-arms a paused Pausing timer, counting the remainder left at
// the moment it was paused rather than starting a fresh full period.
func (t *Timer) Resume() {
	if t.kind != Pausing || !t.paused {
		return
	}
	t.paused = false
	t.Start(t.resumeDelay)
}

// fire invokes the callback and re-arms or finishes the timer according to
// its kind. Called by the owning catalyst from its main loop.
func (t *Timer) fire() {
	t.cat.runTimerCallback(t)
	switch t.kind {
	case OneShot:
		t.cat.disarmTimer(t)
		t.Finish()
	case Repeating:
		t.deadline = t.deadline.Add(t.period)
		t.cat.reheap(t)
	case Pausing:
		t.deadline = time.Now().Add(t.period)
		t.cat.reheap(t)
	}
}

// timerHeap orders armed timers by deadline; it implements container/heap
// for O(log n) insert/remove instead of the original's O(n)
// bisect.insort-based sorted list.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

func (c *Catalyst) armTimer(t *Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.armed = true
	heap.Push(&c.timers, t)
	c.wakeLocked()
}

func (c *Catalyst) disarmTimer(t *Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.armed || t.heapIndex < 0 {
		t.armed = false
		return
	}
	heap.Remove(&c.timers, t.heapIndex)
	t.armed = false
}

func (c *Catalyst) reheap(t *Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.heapIndex >= 0 {
		heap.Fix(&c.timers, t.heapIndex)
	} else {
		heap.Push(&c.timers, t)
	}
}

// nextDeadline returns the soonest armed timer's deadline and whether any
// timer is armed at all.
func (c *Catalyst) nextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	return c.timers[0].deadline, true
}

// fireExpired pops and fires every timer whose deadline has passed, in
// deadline order, then returns. Re-armed repeating/pausing timers land back
// in the heap; one whose new deadline is still not after now fires again in
// this same pass.
func (c *Catalyst) fireExpired(now time.Time) {
	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].deadline.After(now) {
			c.mu.Unlock()
			return
		}
		t := heap.Pop(&c.timers).(*Timer)
		c.mu.Unlock()
		t.fire()
	}
}
