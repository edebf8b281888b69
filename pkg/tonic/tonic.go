package tonic

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tasktonic/tasktonic/pkg/ledger"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
)

const stopTarget = "\x00stop"

// Tonic is an Essence with an explicit handler table and, optionally, a
// finite state machine. Dispatch always goes through the owning catalyst's
// queue: Send never runs a handler on the caller's goroutine.
type Tonic struct {
	*Essence
	table *handlerTable
	state *StateMachine

	pendingState string
	hasPending   bool
}

// New constructs a Tonic registered under context, with handlers built
// from h. Pass a nil collector (or logcollector.Off{}, which the logger
// service uses for its own bootstrap) to run stealth, with no user-visible
// log output.
func New(l *ledger.Ledger, name string, context Node, h *Handlers, collector logcollector.Collector) (*Tonic, error) {
	ess, err := NewEssence(l, name, "tonic", context, nil, collector)
	if err != nil {
		return nil, err
	}
	t := &Tonic{Essence: ess, table: h.build()}
	if len(h.states) > 0 {
		t.state = NewStateMachine(h.states)
	}
	t.dispatchOnStart()
	return t, nil
}

// dispatchOnStart queues the startup sparkles onto the owning catalyst (it
// writes no log record for construction itself): the internal
// system variant first, then the user variant, same order they'd run in
// if sent by hand. Queuing rather than calling them inline gives a
// wrapping type (one that embeds *Tonic and assigns it to a field after
// New returns) a chance to finish that assignment before either handler —
// which typically closes over the wrapper, not the bare *Tonic — runs.
// Neither sparkle requires a registered handler; an unresolved one is a
// safe no-op.
func (t *Tonic) dispatchOnStart() {
	cat := t.Catalyst()
	if cat == nil {
		return
	}
	cat.Enqueue(func() { t.execute(InternalSystem, "on_start", nil) })
	cat.Enqueue(func() { t.execute(UserEvent, "on_start", nil) })
}

// NewService resolves a singleton Tonic keyed by serviceKey, constructing
// one under context if none exists yet. The first caller's context becomes
// the service's owning parent (its Finish cascades into the service's, as
// for any bound child); every later caller is instead recorded as a
// non-owning service context and must call ReleaseService when it no
// longer needs the instance, so the service can finish once every holder —
// owning and non-owning alike — has let go.
func NewService(l *ledger.Ledger, serviceKey, name string, context Node, h *Handlers, collector logcollector.Collector) (*Tonic, error) {
	ctxID := -1
	if context != nil {
		ctxID = context.ID()
	}
	sh, err := l.GetOrCreateService(serviceKey, ctxID, func() (ledger.ServiceHolder, error) {
		return New(l, name, context, h, collector)
	})
	if err != nil {
		return nil, err
	}
	return asServiceTonic(serviceKey, sh)
}

// JoinService registers ctx as an additional holder of the singleton Tonic
// already resolved under serviceKey, failing if no such service has been
// constructed yet (it never builds one itself — there is no handler table
// or collector to build it with from this call site).
func JoinService(l *ledger.Ledger, serviceKey string, ctx Node) (*Tonic, error) {
	ctxID := -1
	if ctx != nil {
		ctxID = ctx.ID()
	}
	sh, err := l.GetOrCreateService(serviceKey, ctxID, func() (ledger.ServiceHolder, error) {
		return nil, fmt.Errorf("tonic: service %q has no instance to join", serviceKey)
	})
	if err != nil {
		return nil, err
	}
	return asServiceTonic(serviceKey, sh)
}

func asServiceTonic(serviceKey string, sh ledger.ServiceHolder) (*Tonic, error) {
	t, ok := sh.(*Tonic)
	if !ok {
		return nil, fmt.Errorf("tonic: service %q resolved to a non-tonic entity", serviceKey)
	}
	return t, nil
}

// ReleaseService removes ctxID from this service tonic's context list. If a
// Finish was already requested on it (its owning context had already
// finished) and ctxID was the last outstanding holder, the service finishes
// now.
func (t *Tonic) ReleaseService(ctxID int) {
	t.ReleaseServiceContext(ctxID)
}

// State returns the tonic's state machine, or nil if it was built without
// states.
func (t *Tonic) State() *StateMachine { return t.state }

// Send enqueues (prefix, base) with args onto the owning catalyst's queue.
// The handler actually invoked is resolved at execution time against the
// tonic's state at that moment, not at Send time, so a state transition
// queued ahead of this sparkle is honored.
func (t *Tonic) Send(prefix Prefix, base string, args ...any) {
	cat := t.Catalyst()
	if cat == nil {
		log.Error().Str("tonic", t.Name()).Str("sparkle", prefix.String()+"__"+base).
			Msg("sparkle sent with no catalyst bound, dropped")
		return
	}
	cloned := cloneArgs(args)
	cat.Enqueue(func() {
		t.execute(prefix, base, cloned)
	})
}

// execute runs the resolved handler (if any), then, if the handler called
// ToState or Stop, schedules the exit/assign/enter sequence as extra
// sparkles so it completes atomically before the catalyst's next queued
// item.
func (t *Tonic) execute(prefix Prefix, base string, args []any) {
	start := time.Now()
	active := t.state != nil && t.state.Current() >= 0
	stateName := ""
	if active {
		stateName = t.state.CurrentName()
	}
	fn := t.table.resolve(prefix, base, stateName, active)
	if fn != nil {
		t.runRecovered(prefix.String()+"__"+base, fn, args)
	}
	t.flushLog(start, map[string]any{"sparkle": prefix.String() + "__" + base})
	if t.hasPending {
		t.scheduleStateTransition()
	}
}

func (t *Tonic) runRecovered(label string, fn HandlerFunc, args []any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("tonic_id", t.ID()).
				Str("tonic_name", t.Name()).
				Str("sparkle", label).
				Interface("panic", r).
				Msg("sparkle handler panicked")
		}
	}()
	fn(args)
}

// ToState requests a transition to state, effective once the currently
// executing handler returns. Calling it more than once within a single
// handler keeps only the last request.
func (t *Tonic) ToState(state string) {
	t.pendingState = state
	t.hasPending = true
}

// Stop requests the state machine become inactive, effective once the
// currently executing handler returns.
func (t *Tonic) Stop() {
	t.pendingState = stopTarget
	t.hasPending = true
}

// scheduleStateTransition pushes onExit, the state assignment, and onEnter
// onto the catalyst's extra-sparkles stack in that execution order. The
// stack is LIFO, so the three are pushed enter-then-assign-then-exit so
// popping yields exit, assign, enter.
func (t *Tonic) scheduleStateTransition() {
	target := t.pendingState
	stop := target == stopTarget
	t.pendingState = ""
	t.hasPending = false

	cat := t.Catalyst()
	if cat == nil || t.state == nil {
		if !stop && t.state != nil {
			_ = t.state.SetByName(target)
		} else if t.state != nil {
			t.state.SetInactive()
		}
		return
	}

	wasActive := t.state.Current() >= 0
	var exitFn, enterFn func()
	if wasActive {
		if fn, ok := t.table.onExit[t.state.CurrentName()]; ok {
			name := "exit:" + t.state.CurrentName()
			exitFn = func() { t.runRecovered(name, fn, nil) }
		}
	}
	if !stop {
		if fn, ok := t.table.onEnter[target]; ok {
			name := "enter:" + target
			enterFn = func() { t.runRecovered(name, fn, nil) }
		}
	}
	assignFn := func() {
		if stop {
			t.state.SetInactive()
			return
		}
		if err := t.state.SetByName(target); err != nil {
			log.Error().Int("tonic_id", t.ID()).Str("tonic_name", t.Name()).Err(err).Msg("state transition failed")
		}
	}

	if enterFn != nil {
		cat.PushExtra(enterFn)
	}
	cat.PushExtra(assignFn)
	if exitFn != nil {
		cat.PushExtra(exitFn)
	}
}

// cloneArgs deep-copies each argument via an encoding/gob round trip,
// except funcs and pointers (which stand in for callables and Tonic/Essence
// references) that are passed through unchanged — the Go analogue of the
// original's __deepcopy__ identity fallback for non-copyable essences.
//
// gob requires the concrete type of every interface value it encodes to
// have been registered with gob.Register; arguments of an unregistered
// type silently fall back to being passed unchanged rather than failing
// the send, since dispatch must not be lossy just because a caller forgot
// to register a type it never intended to share across goroutines anyway.
func cloneArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = cloneArg(a)
	}
	return out
}

func cloneArg(v any) any {
	if v == nil {
		return nil
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Func || rt.Kind() == reflect.Ptr || rt.Kind() == reflect.Chan {
		return v
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return v
	}
	var out any
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		return v
	}
	return out
}
