// Package tonic implements the entity kind that does work: a Tonic pairs an
// explicitly registered handler table (built with Handlers) with an
// optional finite state machine, and dispatches onto its owning catalyst's
// queue rather than running handlers inline.
//
// Method discovery is not done via reflection over an embedding struct the
// way the Python original scans its class hierarchy for specially-prefixed
// method names; a Go Tonic's constructor builds a Handlers value explicitly
// (On/OnState/OnEnter/OnExit) and that is the dispatch table for the
// lifetime of the Tonic. This trades the original's "drop in a method and
// it's discovered" ergonomics for static, greppable call sites, which is
// the idiomatic Go answer to the same problem.
package tonic
