package metadata

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestIsCollectionType(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
		want bool
	}{
		{"slice", reflect.TypeOf([]Order{}), true},
		{"array", reflect.TypeOf([3]int{}), true},
		{"chan", reflect.TypeOf(make(chan Order)), true},
		{"seq func", reflect.TypeOf((func(func(Order) bool))(nil)), true},
		{"byte slice", reflect.TypeOf([]byte{}), false},
		{"byte array", reflect.TypeOf([16]byte{}), false},
		{"string", reflect.TypeOf(""), false},
		{"struct", reflect.TypeOf(Order{}), false},
		{"plain func", reflect.TypeOf(func() {}), false},
		{"func with result", reflect.TypeOf(func(func(Order) bool) error { return nil }), false},
	}
	for _, c := range cases {
		if got := isCollectionType(c.typ); got != c.want {
			t.Errorf("isCollectionType(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestElementType(t *testing.T) {
	orderType := reflect.TypeOf(Order{})
	cases := []struct {
		name string
		typ  reflect.Type
		want reflect.Type
	}{
		{"slice", reflect.TypeOf([]Order{}), orderType},
		{"pointer slice", reflect.TypeOf([]*Order{}), reflect.TypeOf(&Order{})},
		{"array", reflect.TypeOf([3]int{}), reflect.TypeOf(0)},
		{"chan", reflect.TypeOf(make(chan Order)), orderType},
		{"seq func", reflect.TypeOf((func(func(Order) bool))(nil)), orderType},
		{"untyped seq func", reflect.TypeOf(func(func() bool) {}), anyType},
		{"non-collection", orderType, orderType},
	}
	for _, c := range cases {
		if got := elementType(c.typ); got != c.want {
			t.Errorf("elementType(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestUnwrapOptional(t *testing.T) {
	cases := []struct {
		name    string
		typ     reflect.Type
		want    reflect.Type
		wrapped bool
	}{
		{"pointer", reflect.TypeOf((*string)(nil)), reflect.TypeOf(""), true},
		{"sql.NullString", reflect.TypeOf(sql.NullString{}), reflect.TypeOf(""), true},
		{"sql.NullInt64", reflect.TypeOf(sql.NullInt64{}), reflect.TypeOf(int64(0)), true},
		{"sql.NullTime", reflect.TypeOf(sql.NullTime{}), timeType, true},
		{"generic sql.Null", reflect.TypeOf(Null[time.Time]{}), timeType, true},
		{"uuid.NullUUID", reflect.TypeOf(uuid.NullUUID{}), uuidType, true},
		{"decimal.NullDecimal", reflect.TypeOf(decimal.NullDecimal{}), decimalType, true},
		{"double wrap", reflect.TypeOf((*sql.NullString)(nil)), reflect.TypeOf(""), true},
		{"plain int", reflect.TypeOf(0), reflect.TypeOf(0), false},
		{"plain struct", reflect.TypeOf(Order{}), reflect.TypeOf(Order{}), false},
	}
	for _, c := range cases {
		got, wrapped := unwrapOptional(c.typ)
		if got != c.want || wrapped != c.wrapped {
			t.Errorf("unwrapOptional(%s) = %v, %v, want %v, %v", c.name, got, wrapped, c.want, c.wrapped)
		}
	}
}

func TestDataTypeFor(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeOf(""), "String"},
		{reflect.TypeOf(true), "Boolean"},
		{reflect.TypeOf(int(0)), "Int64"},
		{reflect.TypeOf(int64(0)), "Int64"},
		{reflect.TypeOf(int32(0)), "Int32"},
		{reflect.TypeOf(int16(0)), "Int16"},
		{reflect.TypeOf(int8(0)), "Int16"},
		{reflect.TypeOf(uint8(0)), "Byte"},
		{reflect.TypeOf(uint16(0)), "Int32"},
		{reflect.TypeOf(uint64(0)), "Int64"},
		{reflect.TypeOf(float64(0)), "Double"},
		{reflect.TypeOf(float32(0)), "Single"},
		{reflect.TypeOf(time.Time{}), "DateTime"},
		{reflect.TypeOf(time.Duration(0)), "Time"},
		{reflect.TypeOf(uuid.UUID{}), "Guid"},
		{reflect.TypeOf(decimal.Decimal{}), "Decimal"},
		{reflect.TypeOf([]byte{}), "Binary"},
		{reflect.TypeOf(OrderStatus(0)), "OrderStatus"},
		{reflect.TypeOf([]string{}), "Undefined"},
		{reflect.TypeOf(map[string]int{}), "Undefined"},
		{reflect.TypeOf(struct{ X int }{}), "Undefined"},
	}
	for _, c := range cases {
		if got := dataTypeFor(c.typ); got != c.want {
			t.Errorf("dataTypeFor(%v) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestIsReferenceKind(t *testing.T) {
	if !isReferenceKind(reflect.Map) || !isReferenceKind(reflect.Interface) {
		t.Error("maps and interfaces should be reference kinds")
	}
	if isReferenceKind(reflect.String) || isReferenceKind(reflect.Struct) {
		t.Error("strings and structs are not reference kinds")
	}
}
