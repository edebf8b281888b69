package tonic

import (
	"sync"
	"time"

	"github.com/tasktonic/tasktonic/pkg/ledger"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
)

// CatalystHandle is the slice of Catalyst behavior a Tonic needs without
// importing pkg/catalyst directly (which itself imports pkg/tonic to build
// the catalyst's own embedded tonic behavior — this interface is what
// breaks that cycle).
type CatalystHandle interface {
	ID() int
	Name() string
	// Enqueue appends work to the catalyst's FIFO queue.
	Enqueue(work func())
	// PushExtra pushes work onto the catalyst's LIFO extra-sparkles stack,
	// drained after the current queue item finishes and before the next
	// one starts.
	PushExtra(work func())
}

// Node is anything that can own children in the binding tree and resolve
// its owning catalyst: Essence (and therefore Tonic and Timer) implements
// it.
type Node interface {
	ledger.Entity
	ID() int
	Name() string
	Catalyst() CatalystHandle
	Bind(childID int)
}

// Essence is the common lifecycle base every ledger-registered entity
// embeds: identity, parent/child bindings, service-context bookkeeping, and
// the cascading Finish. Tonic adds handler dispatch and a state machine on
// top; bare Timers use Essence directly.
type Essence struct {
	ledger    *ledger.Ledger
	id        int
	name      string
	typ       string
	context   Node
	catalyst  CatalystHandle
	collector logcollector.Collector

	mu              sync.Mutex
	bindings        []int
	serviceContexts []int
	finishing       bool
	finished        bool
	logBuf          []string
	finishHooks     []func()
}

// NewEssence registers a new entity of typ under context (nil for a
// root-level entity, such as the main catalyst). If catalystOverride is
// non-nil the entity serves as its own catalyst (used by Catalyst itself);
// otherwise the catalyst is resolved lazily from context.
func NewEssence(l *ledger.Ledger, name, typ string, context Node, catalystOverride CatalystHandle, collector logcollector.Collector) (*Essence, error) {
	e := &Essence{ledger: l, typ: typ, context: context, catalyst: catalystOverride, collector: collector}
	ctxID := -1
	if context != nil {
		ctxID = context.ID()
	}
	if _, err := l.Register(e, name, typ, ctxID, ""); err != nil {
		return nil, err
	}
	if context != nil {
		context.Bind(e.id)
	}
	return e, nil
}

// NewEssenceFixed is NewEssence for entities that must receive a specific
// ledger id (the main catalyst's guaranteed id 0), failing if that id is
// already taken.
func NewEssenceFixed(id int, l *ledger.Ledger, name, typ string, context Node, catalystOverride CatalystHandle, collector logcollector.Collector) (*Essence, error) {
	e := &Essence{ledger: l, typ: typ, context: context, catalyst: catalystOverride, collector: collector}
	ctxID := -1
	if context != nil {
		ctxID = context.ID()
	}
	if err := l.RegisterFixed(id, e, name, typ, ctxID, ""); err != nil {
		return nil, err
	}
	if context != nil {
		context.Bind(e.id)
	}
	return e, nil
}

// SetRecord implements ledger.Entity; the ledger calls it once at
// registration.
func (e *Essence) SetRecord(rec ledger.Record) {
	e.id = rec.ID
	e.name = rec.Name
}

// ID returns the ledger-assigned id.
func (e *Essence) ID() int { return e.id }

// Name returns the registered name, which may be empty.
func (e *Essence) Name() string { return e.name }

// Type returns the entity's registered type tag ("tonic", "catalyst",
// "timer", ...).
func (e *Essence) Type() string { return e.typ }

// Ledger returns the registry this essence belongs to.
func (e *Essence) Ledger() *ledger.Ledger { return e.ledger }

// Context returns the owning node, or nil at the root.
func (e *Essence) Context() Node { return e.context }

// Catalyst resolves the owning catalyst: itself if this essence is one, or
// the nearest ancestor's catalyst otherwise.
func (e *Essence) Catalyst() CatalystHandle {
	if e.catalyst != nil {
		return e.catalyst
	}
	if e.context != nil {
		return e.context.Catalyst()
	}
	return nil
}

// Bind records childID as a child this essence owns; Finish recurses into
// bindings before unregistering itself.
func (e *Essence) Bind(childID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindings = append(e.bindings, childID)
}

// Unbind removes childID from the binding list without finishing it.
func (e *Essence) Unbind(childID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, id := range e.bindings {
		if id == childID {
			e.bindings = append(e.bindings[:i], e.bindings[i+1:]...)
			return
		}
	}
}

// AddServiceContext implements ledger.ServiceHolder: ctxID is an
// additional, non-owning reference to this service entity. Finish on the
// entity waits for every such context to release before actually tearing
// down.
func (e *Essence) AddServiceContext(ctxID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serviceContexts = append(e.serviceContexts, ctxID)
}

// ReleaseServiceContext removes ctxID from the service-context list; if a
// Finish was already requested and this was the last outstanding context,
// the finish now completes.
func (e *Essence) ReleaseServiceContext(ctxID int) {
	e.mu.Lock()
	for i, c := range e.serviceContexts {
		if c == ctxID {
			e.serviceContexts = append(e.serviceContexts[:i], e.serviceContexts[i+1:]...)
			break
		}
	}
	complete := e.finishing && !e.finished && len(e.serviceContexts) == 0
	e.mu.Unlock()
	if complete {
		e.completeFinish()
	}
}

// Log appends a line to this dispatch's pending log buffer; it is flushed
// to the collector as one Record when the current sparkle finishes
// executing.
func (e *Essence) Log(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logBuf = append(e.logBuf, line)
}

func (e *Essence) flushLog(start time.Time, sys map[string]any) {
	e.mu.Lock()
	lines := e.logBuf
	e.logBuf = nil
	e.mu.Unlock()
	if len(lines) == 0 || e.collector == nil {
		return
	}
	e.collector.PutLog(logcollector.Record{
		StartTimestamp: start,
		Duration:       time.Since(start),
		Log:            lines,
		Sys:            sys,
	})
}

// Finish begins (or, if no service contexts are outstanding, completes)
// this essence's shutdown: recurse into every bound child's Finish, then
// unregister from the ledger. A service entity with outstanding
// serviceContexts defers completion until the last one calls
// ReleaseServiceContext.
func (e *Essence) Finish() {
	e.mu.Lock()
	if e.finished || e.finishing {
		e.mu.Unlock()
		return
	}
	e.finishing = true
	pending := len(e.serviceContexts) > 0
	e.mu.Unlock()
	if pending {
		return
	}
	e.completeFinish()
}

// Finished reports whether this essence has fully torn down.
func (e *Essence) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// OnFinishHook registers fn to run once when this essence completes its
// finish, before its bound children are finished and before it unregisters
// from the ledger. Used by owners (such as Catalyst's fleet
// tracking, or a service-context holder releasing its reference) that need
// to react to a child finishing without Essence itself knowing about them.
// Multiple hooks may be registered against the same essence; they run in
// registration order.
func (e *Essence) OnFinishHook(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishHooks = append(e.finishHooks, fn)
}

type finisher interface {
	Finish()
}

func (e *Essence) completeFinish() {
	e.mu.Lock()
	children := append([]int(nil), e.bindings...)
	e.finished = true
	hooks := append(([]func())(nil), e.finishHooks...)
	e.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	for _, childID := range children {
		if child, ok := e.ledger.ByID(childID); ok {
			if f, ok := child.(finisher); ok {
				f.Finish()
			}
		}
	}
	_ = e.ledger.Unregister(e.id)
}
