/*
Package store implements TaskTonic's hierarchical, path-addressed reactive
tree: the data structure tonics read and write to communicate state changes
to interested subscribers without a direct reference to one another.

# Architecture

	┌─────────────────────── STORE ─────────────────────────────┐
	│                                                             │
	│  ┌───────────────────────────────────────────┐           │
	│  │              node tree                     │           │
	│  │  "" (root)                                  │           │
	│  │   └─ sensors                                │           │
	│  │       └─ #0                                 │           │
	│  │           └─ value = 20                     │           │
	│  └──────────────────┬────────────────────────┘           │
	│                     │ Set / Remove / Append                │
	│  ┌──────────────────▼────────────────────────┐           │
	│  │             Scope (batch)                   │           │
	│  │  - per-call-chain, not global               │           │
	│  │  - accumulates ChangeEvents                 │           │
	│  │  - flushes on the outermost Close()          │           │
	│  └──────────────────┬────────────────────────┘           │
	│                     │ dispatch (ancestor lookup)            │
	│  ┌──────────────────▼────────────────────────┐           │
	│  │           Subscribers by path                │           │
	│  │  matched by: event.Path == P                 │           │
	│  │           or event.Path startsWith P+"/"      │           │
	│  └───────────────────────────────────────────┘           │
	│                                                             │
	└─────────────────────────────────────────────────────────┘

Dispatch cost is O(events · depth) to find relevant subscriber paths plus
O(relevant-subscribers · events-per-subscriber) to match, independent of the
total subscriber count — the ancestor set of the changed paths is computed
once per flush and used to look up only the subscriber buckets that could
possibly care.

Batching state (the current Scope) is never implicit thread-local storage:
it is an explicit value returned by Group and threaded by the caller, which
is the Go-native answer to goroutines not carrying an ambient call-stack
identity the way Python threads do.
*/
package store
