// Package formula provides typed accessors over the project-wide
// configuration keys kept in a Ledger's Store: project identity and
// status, log routing, and the test-harness toggles a bootstrap sequence
// reads and writes during startup.
//
// Every key lives under the "tasktonic/" prefix so it never collides with
// a user's own store paths. ProjectName and ProjectStatus return a zero
// value and false when the key hasn't been set yet; LogTo, LogDefault and
// DontStartCatalysts return a fixed fallback ("off", quiet, false) instead.
// Default seeds the store with the values a fresh project starts from.
package formula
