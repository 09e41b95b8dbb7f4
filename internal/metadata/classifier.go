package metadata

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	anyType      = reflect.TypeOf((*interface{})(nil)).Elem()
)

// derefType strips pointer indirections.
func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// isCollectionType reports whether t yields a sequence of elements: slices,
// arrays, channels, and functions with the iterator seq shape
// func(yield func(T) bool). Byte slices and byte arrays are binary scalars,
// not collections.
func isCollectionType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Chan:
		return true
	case reflect.Func:
		return isSeqFunc(t)
	}
	return false
}

// isSeqFunc matches func(yield func(T) bool) and the degenerate
// func(yield func() bool).
func isSeqFunc(t reflect.Type) bool {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() > 1 {
		return false
	}
	return yield.NumOut() == 1 && yield.Out(0).Kind() == reflect.Bool
}

// elementType returns the declared element type of a collection, or t itself
// for non-collections. A seq function without a typed yield parameter falls
// back to the untyped element.
func elementType(t reflect.Type) reflect.Type {
	if !isCollectionType(t) {
		return t
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Chan:
		return t.Elem()
	case reflect.Func:
		if yield := t.In(0); yield.NumIn() == 1 {
			return yield.In(0)
		}
	}
	return anyType
}

// unwrapOptional strips optional wrapping until a plain type remains:
// pointers, and Null-style carriers (the database/sql Null types,
// sql.Null[T], uuid.NullUUID, decimal.NullDecimal) that pair one value field
// with a Valid flag. The second result reports whether anything was stripped.
func unwrapOptional(t reflect.Type) (reflect.Type, bool) {
	wrapped := false
	for {
		u, ok := unwrapOnce(t)
		if !ok {
			return t, wrapped
		}
		wrapped = true
		t = u
	}
}

func unwrapOnce(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Ptr {
		return t.Elem(), true
	}
	if t.Kind() == reflect.Struct && strings.HasPrefix(t.Name(), "Null") && t.NumField() == 2 {
		var value reflect.Type
		valid := false
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Name == "Valid" && field.Type.Kind() == reflect.Bool {
				valid = true
				continue
			}
			value = field.Type
		}
		if valid && value != nil {
			return value, true
		}
	}
	return t, false
}

// isReferenceKind reports whether values of the kind can be nil.
func isReferenceKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// dataTypeFor maps an unwrapped Go type onto the client's data type
// vocabulary. Enumerations report their own short name; anything without a
// mapping reports Undefined.
func dataTypeFor(t reflect.Type) string {
	if _, ok := enumMembersOf(t); ok {
		return t.Name()
	}
	switch t {
	case timeType:
		return "DateTime"
	case durationType:
		return "Time"
	case uuidType:
		return "Guid"
	case decimalType:
		return "Decimal"
	}
	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.Uint8 {
		return "Binary"
	}
	if t.Kind() == reflect.Struct && t.ConvertibleTo(timeType) {
		return "DateTime"
	}
	switch t.Kind() {
	case reflect.String:
		return "String"
	case reflect.Bool:
		return "Boolean"
	case reflect.Int, reflect.Int64:
		return "Int64"
	case reflect.Int32:
		return "Int32"
	case reflect.Int16, reflect.Int8:
		return "Int16"
	case reflect.Uint8:
		return "Byte"
	case reflect.Uint16:
		return "Int32"
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "Int64"
	case reflect.Float64:
		return "Double"
	case reflect.Float32:
		return "Single"
	}
	return "Undefined"
}
