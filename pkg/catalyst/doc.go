// Package catalyst implements the single-consumer executor every Tonic
// dispatches onto: one goroutine drains a FIFO work queue, draining an
// "extra sparkles" LIFO stack after each item before moving to the next,
// and fires a deadline-ordered heap of timers in between. A Catalyst embeds
// a tonic.Essence (not a full Tonic) so it can be bound, named, and finished
// exactly like anything else in the ledger.
//
// The main catalyst (ledger id 0) additionally tracks every Tonic
// currently "sparkling" under it; when that fleet empties, it considers
// itself finished and broadcasts shutdown to every other catalyst through
// Registry, adapted from a teacher package's channel-based pub/sub broker.
package catalyst
