package metadata

import (
	"reflect"
	"testing"
)

func TestNewTypeSetOf_Order(t *testing.T) {
	set, err := NewTypeSetOf(Person{}, &Customer{}, Order{})
	if err != nil {
		t.Fatalf("NewTypeSetOf() error: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}
	want := []string{"Person", "Customer", "Order"}
	for i, typ := range set.Types() {
		if typ.Name() != want[i] {
			t.Errorf("Types()[%d] = %s, want %s", i, typ.Name(), want[i])
		}
	}
}

func TestNewTypeSetOf_Duplicate(t *testing.T) {
	if _, err := NewTypeSetOf(Person{}, &Person{}); err == nil {
		t.Error("NewTypeSetOf() should reject a duplicate type")
	}
}

func TestNewTypeSetOf_NonStruct(t *testing.T) {
	if _, err := NewTypeSetOf(42); err == nil {
		t.Error("NewTypeSetOf() should reject non-struct entries")
	}
	if _, err := NewTypeSetOf(nil); err == nil {
		t.Error("NewTypeSetOf() should reject nil entries")
	}
}

func TestTypeSet_Contains(t *testing.T) {
	set, err := NewTypeSetOf(Person{})
	if err != nil {
		t.Fatalf("NewTypeSetOf() error: %v", err)
	}
	if !set.Contains(reflect.TypeOf(Person{})) {
		t.Error("Contains(Person) = false, want true")
	}
	if !set.Contains(reflect.TypeOf(&Person{})) {
		t.Error("Contains(*Person) = false, want true")
	}
	if set.Contains(reflect.TypeOf(Order{})) {
		t.Error("Contains(Order) = true, want false")
	}
	if set.Contains(nil) {
		t.Error("Contains(nil) = true, want false")
	}
}
