package rete

import (
	"errors"
	"fmt"
	"reflect"
)

// Identifiable lets a fact define its identity explicitly.
//
// Facts implementing Identifiable are equal in working memory when they have
// the same concrete type and FactIdentity. This allows value types and
// replacement objects to be updated or retracted. Other facts are identified
// by the object itself, so they must be comparable; pointers are the
// normal case.
type Identifiable interface {
	FactIdentity() any
}

// Fact wraps an object held in working memory.
type Fact struct {
	id        int64
	object    any
	typ       reflect.Type
	identity  any
	synthetic bool
}

// ID returns the working-memory sequence number of the fact.
func (f *Fact) ID() int64 {
	return f.id
}

// Object returns the wrapped object.
func (f *Fact) Object() any {
	return f.object
}

// Value returns the wrapped object. It makes Fact usable as an aggregate.Fact.
func (f *Fact) Value() any {
	return f.object
}

// Type returns the runtime type the fact is matched under.
func (f *Fact) Type() reflect.Type {
	return f.typ
}

// Synthetic reports whether the fact was produced by an aggregate node
// rather than inserted by a session.
func (f *Fact) Synthetic() bool {
	return f.synthetic
}

// String returns a short description for logs.
func (f *Fact) String() string {
	return fmt.Sprintf("fact#%d(%s)", f.id, f.typ)
}

// identityKey scopes an Identifiable key by concrete type.
type identityKey struct {
	typ reflect.Type
	key any
}

// ErrNilFact is returned for nil objects.
var ErrNilFact = errors.New("fact is nil")

// IdentityOf returns the working-memory identity of obj.
func IdentityOf(obj any) (any, error) {
	if obj == nil {
		return nil, ErrNilFact
	}
	t := reflect.TypeOf(obj)
	if id, ok := obj.(Identifiable); ok {
		key := id.FactIdentity()
		if key != nil && !reflect.TypeOf(key).Comparable() {
			return nil, NewUnsupportedFactError(obj, "FactIdentity must return a comparable value")
		}
		return identityKey{typ: t, key: key}, nil
	}
	if !t.Comparable() {
		return nil, NewUnsupportedFactError(obj, "type is not comparable; use a pointer or implement Identifiable")
	}
	return obj, nil
}
