// Package bootstrap wires a Ledger, a configuration Formula, the main
// Catalyst, and a user-supplied set of starting tonics into a running
// process, in the fixed order a TaskTonic-shaped runtime requires: the
// ledger and its default formula must exist before anything registers,
// the main catalyst must hold ledger id 0 before any tonic is spawned
// under it, and every other catalyst must be told about process shutdown
// once the main catalyst's loop returns.
package bootstrap
