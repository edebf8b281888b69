package ledger

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tasktonic/tasktonic/pkg/store"
)

var (
	// ErrUnknownEntity is returned by Unregister and UpdateRecord when the id
	// holds no registered entity (the ByID/ByName lookups report a bool).
	ErrUnknownEntity = errors.New("ledger: unknown entity")
	// ErrIDInUse is returned by RegisterFixed when the requested id is
	// already occupied.
	ErrIDInUse = errors.New("ledger: id already in use")
	// ErrNameInUse is returned by Register/RegisterFixed when name is
	// already bound to a different entity.
	ErrNameInUse = errors.New("ledger: name already in use")
)

// Entity is anything the ledger can track: Catalysts, Tonics, and Timers
// all satisfy this by embedding a common base (see pkg/tonic.Essence).
type Entity interface {
	// SetRecord is called exactly once by the ledger at registration time
	// so the entity can remember its own id/name/context.
	SetRecord(Record)
}

// ServiceHolder is implemented by entities that can be resolved as service
// singletons; GetOrCreateService uses it to track the non-owning contexts
// that share an existing instance.
type ServiceHolder interface {
	Entity
	AddServiceContext(contextID int)
}

// Record is the ledger's view of one registered entity: identity and
// placement, not behavior.
type Record struct {
	ID        int
	Name      string
	Type      string
	ContextID int
	Service   string
}

type slot struct {
	record Record
	entity Entity
	used   bool
}

// Ledger is the runtime-wide entity registry plus the formula (config)
// store. The zero value is not usable; use New.
type Ledger struct {
	mu          sync.RWMutex
	slots       []slot
	names       map[string]int
	serviceKeys map[string]int
	formula     *store.Store
	sf          singleflight.Group
}

// New returns an empty Ledger with a fresh formula Store.
func New() *Ledger {
	return &Ledger{
		names:       make(map[string]int),
		serviceKeys: make(map[string]int),
		formula:     store.New(),
	}
}

// Formula returns the ledger's configuration Store.
func (l *Ledger) Formula() *store.Store {
	return l.formula
}

// lowestFreeSlot returns the smallest index with used==false, growing
// l.slots if none exists. Caller must hold l.mu for writing.
func (l *Ledger) lowestFreeSlot() int {
	for i := range l.slots {
		if !l.slots[i].used {
			return i
		}
	}
	l.slots = append(l.slots, slot{})
	return len(l.slots) - 1
}

// Register assigns e the lowest free id, records name/typ/contextID/service
// and returns the new id. name, typ, and service may be empty.
func (l *Ledger) Register(e Entity, name, typ string, contextID int, service string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name != "" {
		if _, exists := l.names[name]; exists {
			return 0, fmt.Errorf("%w: %q", ErrNameInUse, name)
		}
	}
	id := l.lowestFreeSlot()
	return l.commitRegister(id, e, name, typ, contextID, service)
}

// RegisterFixed behaves like Register but requires e to receive exactly id,
// failing if id is already occupied. Used for the main catalyst's
// guaranteed id 0.
func (l *Ledger) RegisterFixed(id int, e Entity, name, typ string, contextID int, service string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name != "" {
		if _, exists := l.names[name]; exists {
			return fmt.Errorf("%w: %q", ErrNameInUse, name)
		}
	}
	for id >= len(l.slots) {
		l.slots = append(l.slots, slot{})
	}
	if l.slots[id].used {
		return fmt.Errorf("%w: %d", ErrIDInUse, id)
	}
	_, err := l.commitRegister(id, e, name, typ, contextID, service)
	return err
}

func (l *Ledger) commitRegister(id int, e Entity, name, typ string, contextID int, service string) (int, error) {
	rec := Record{ID: id, Name: name, Type: typ, ContextID: contextID, Service: service}
	l.slots[id] = slot{record: rec, entity: e, used: true}
	if name != "" {
		l.names[name] = id
	}
	e.SetRecord(rec)
	return id, nil
}

// Unregister frees id for reuse, removing its name and service bindings.
func (l *Ledger) Unregister(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.slots) || !l.slots[id].used {
		return fmt.Errorf("%w: id %d", ErrUnknownEntity, id)
	}
	rec := l.slots[id].record
	if rec.Name != "" {
		delete(l.names, rec.Name)
	}
	if rec.Service != "" {
		delete(l.serviceKeys, rec.Service)
	}
	l.slots[id] = slot{}
	return nil
}

// UpdateRecord applies fn to a copy of id's current record and persists the
// result; it does not call back into the entity.
func (l *Ledger) UpdateRecord(id int, fn func(*Record)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.slots) || !l.slots[id].used {
		return fmt.Errorf("%w: id %d", ErrUnknownEntity, id)
	}
	rec := l.slots[id].record
	oldName := rec.Name
	fn(&rec)
	if rec.Name != oldName {
		if oldName != "" {
			delete(l.names, oldName)
		}
		if rec.Name != "" {
			l.names[rec.Name] = id
		}
	}
	l.slots[id].record = rec
	return nil
}

// ByID returns the entity registered at id.
func (l *Ledger) ByID(id int) (Entity, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 0 || id >= len(l.slots) || !l.slots[id].used {
		return nil, false
	}
	return l.slots[id].entity, true
}

// RecordByID returns the record for id.
func (l *Ledger) RecordByID(id int) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 0 || id >= len(l.slots) || !l.slots[id].used {
		return Record{}, false
	}
	return l.slots[id].record, true
}

// IDByName returns the id bound to name, or -1 if unbound.
func (l *Ledger) IDByName(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.names[name]
	if !ok {
		return -1
	}
	return id
}

// ByName returns the entity bound to name.
func (l *Ledger) ByName(name string) (Entity, bool) {
	l.mu.RLock()
	id, ok := l.names[name]
	if !ok {
		l.mu.RUnlock()
		return nil, false
	}
	e := l.slots[id].entity
	l.mu.RUnlock()
	return e, true
}

// GetOrCreateService resolves a service singleton keyed by key. If one
// already exists, ctxID is recorded as an additional (non-owning) context
// and the existing entity is returned. Otherwise factory runs exactly once
// across any concurrently racing callers (via singleflight); the winning
// caller's context becomes the entity's owning parent (via factory's own
// registration), not a service context, while every racing caller that
// shared its result is recorded as a service context.
func (l *Ledger) GetOrCreateService(key string, ctxID int, factory func() (ServiceHolder, error)) (ServiceHolder, error) {
	l.mu.RLock()
	if id, ok := l.serviceKeys[key]; ok {
		e := l.slots[id].entity
		l.mu.RUnlock()
		sh := e.(ServiceHolder)
		sh.AddServiceContext(ctxID)
		return sh, nil
	}
	l.mu.RUnlock()

	type result struct {
		sh      ServiceHolder
		created bool
	}

	// ran is set only in the goroutine whose closure actually executes;
	// callers that merely share its result are later holders.
	ran := false
	v, err, _ := l.sf.Do(key, func() (interface{}, error) {
		l.mu.RLock()
		if id, ok := l.serviceKeys[key]; ok {
			e := l.slots[id].entity
			l.mu.RUnlock()
			return result{sh: e.(ServiceHolder)}, nil
		}
		l.mu.RUnlock()

		ran = true
		e, ferr := factory()
		if ferr != nil {
			return nil, ferr
		}
		l.mu.Lock()
		id := l.idOf(e)
		if id < 0 {
			// The factory may return a wrapper around the entity it
			// registered (a Tonic embedding its Essence): resolve it by its
			// own id and keep the returned holder as that slot's entity.
			if ider, ok := e.(interface{ ID() int }); ok {
				if i := ider.ID(); i >= 0 && i < len(l.slots) && l.slots[i].used {
					id = i
					l.slots[i].entity = e
				}
			}
		}
		if id < 0 {
			l.mu.Unlock()
			return nil, fmt.Errorf("%w: service %q factory returned an unregistered entity", ErrUnknownEntity, key)
		}
		l.serviceKeys[key] = id
		l.mu.Unlock()
		// Record the service key on the entity's own ledger record so
		// Unregister (run from the entity's own Finish cascade) clears
		// serviceKeys too; otherwise a finished service's key would stay
		// claimed forever and a later GetOrCreateService for the same key
		// would resolve a freed, no-longer-live slot.
		_ = l.UpdateRecord(id, func(r *Record) { r.Service = key })
		return result{sh: e, created: true}, nil
	})
	if err != nil {
		return nil, err
	}
	r := v.(result)
	if !ran || !r.created {
		r.sh.AddServiceContext(ctxID)
	}
	return r.sh, nil
}

// idOf finds the slot index for an already-registered entity. Caller must
// hold l.mu (read or write).
func (l *Ledger) idOf(e Entity) int {
	for i := range l.slots {
		if l.slots[i].used && l.slots[i].entity == e {
			return i
		}
	}
	return -1
}
