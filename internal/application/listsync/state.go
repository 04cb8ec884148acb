package listsync

import (
	"slices"

	"github.com/erp/customerdir/internal/domain/customer"
)

// StateKind names a State variant
type StateKind string

const (
	KindIdle    StateKind = "idle"
	KindLoading StateKind = "loading"
	KindLoaded  StateKind = "loaded"
	KindEmpty   StateKind = "empty"
	KindError   StateKind = "error"
)

// State is the list state observed by the presentation layer.
// The variants are Idle, Loading, Loaded, Empty and Error.
type State interface {
	Kind() StateKind
	state()
}

// Idle is the state before the first refresh
type Idle struct{}

// Loading means a refresh is in flight
type Loading struct{}

// Loaded holds at least one record in store order
type Loaded struct {
	Records []customer.Record
}

// Empty means the last refresh succeeded with no records
type Empty struct{}

// Error means the last refresh failed
type Error struct {
	Message string
}

func (Idle) Kind() StateKind    { return KindIdle }
func (Loading) Kind() StateKind { return KindLoading }
func (Loaded) Kind() StateKind  { return KindLoaded }
func (Empty) Kind() StateKind   { return KindEmpty }
func (Error) Kind() StateKind   { return KindError }

func (Idle) state()    {}
func (Loading) state() {}
func (Loaded) state()  {}
func (Empty) state()   {}
func (Error) state()   {}

// stateFor maps a successful fetch to Loaded or Empty.
// The records are copied so later changes by the store do not leak in.
func stateFor(records []customer.Record) State {
	if len(records) == 0 {
		return Empty{}
	}
	return Loaded{Records: slices.Clone(records)}
}
