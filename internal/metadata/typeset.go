package metadata

import (
	"fmt"
	"reflect"
)

// TypeSet is the closed, ordered collection of entity types a document is
// built from. Membership is the sole criterion separating data properties
// from navigation properties. A set is immutable once handed to Build.
type TypeSet struct {
	types   []reflect.Type
	members map[reflect.Type]struct{}
}

// NewTypeSet builds a set from struct types or pointers to struct types,
// preserving order. Duplicate or non-struct entries are rejected.
func NewTypeSet(types ...reflect.Type) (*TypeSet, error) {
	set := &TypeSet{members: make(map[reflect.Type]struct{}, len(types))}
	for _, t := range types {
		if err := set.add(t); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// NewTypeSetOf builds a set from example values, preserving order.
func NewTypeSetOf(entities ...interface{}) (*TypeSet, error) {
	set := &TypeSet{members: make(map[reflect.Type]struct{}, len(entities))}
	for _, e := range entities {
		if e == nil {
			return nil, fmt.Errorf("entity type set: nil entity")
		}
		if err := set.add(reflect.TypeOf(e)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s *TypeSet) add(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("entity type set: nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("entity type set: %s is not a struct type", t)
	}
	if _, ok := s.members[t]; ok {
		return fmt.Errorf("entity type set: %s already registered", t.Name())
	}
	s.types = append(s.types, t)
	s.members[t] = struct{}{}
	return nil
}

// Contains reports whether t (after pointer dereference) is a member.
func (s *TypeSet) Contains(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	_, ok := s.members[t]
	return ok
}

// Types returns the member types in registration order.
func (s *TypeSet) Types() []reflect.Type {
	return s.types
}

// Len returns the number of member types.
func (s *TypeSet) Len() int {
	return len(s.types)
}
