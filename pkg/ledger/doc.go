// Package ledger is the entity registry at the base of TaskTonic's runtime:
// every Tonic, Catalyst, and Timer gets a dense integer id, an optional
// name, and an optional service key on construction, and loses them on
// Unregister. It also owns the formula, a store.Store used as the runtime's
// configuration tree, and resolves service-singleton construction races
// with golang.org/x/sync/singleflight.
package ledger
