package metadata

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestDefaultNamingPolicy_Pluralization(t *testing.T) {
	policy := DefaultNamingPolicy{}
	cases := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeOf(Order{}), "Orders"},
		{reflect.TypeOf(Category{}), "Categories"},
		// the naive suffix rule is specified behavior, not English
		{reflect.TypeOf(Bus{}), "Buss"},
	}
	for _, c := range cases {
		if got := policy.ResourceName(c.typ); got != c.want {
			t.Errorf("ResourceName(%s) = %q, want %q", c.typ.Name(), got, c.want)
		}
	}
}

func TestDefaultNamingPolicy_KeyAndVersion(t *testing.T) {
	policy := DefaultNamingPolicy{}
	personType := reflect.TypeOf(Person{})

	keyField, _ := personType.FieldByName("EntityKey")
	if !policy.IsKeyProperty(personType, keyField) {
		t.Error("IsKeyProperty(EntityKey) = false, want true")
	}
	nameField, _ := personType.FieldByName("FirstName")
	if policy.IsKeyProperty(personType, nameField) {
		t.Error("IsKeyProperty(FirstName) = true, want false")
	}
	if policy.IsVersionProperty(personType, keyField) {
		t.Error("IsVersionProperty() = true, want false")
	}
	if got := policy.AutoGeneratedKeyType(personType); got != AutoKeyIdentity {
		t.Errorf("AutoGeneratedKeyType() = %q, want Identity", got)
	}
}

type namedResource struct {
	EntityKey int64
}

func (namedResource) ResourceName() string { return "Inventory" }

type versionedRow struct {
	ID         int64
	RowVersion int64
}

type uuidKeyed struct {
	ID uuid.UUID
}

type stringKeyed struct {
	StringKeyedID string
	Note          string
}

func TestConventionNamingPolicy_ResourceName(t *testing.T) {
	policy := ConventionNamingPolicy{}
	if got := policy.ResourceName(reflect.TypeOf(namedResource{})); got != "Inventory" {
		t.Errorf("ResourceName() = %q, want method result Inventory", got)
	}
	cases := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeOf(Bus{}), "Buses"},
		{reflect.TypeOf(Category{}), "Categories"},
		{reflect.TypeOf(Order{}), "Orders"},
	}
	for _, c := range cases {
		if got := policy.ResourceName(c.typ); got != c.want {
			t.Errorf("ResourceName(%s) = %q, want %q", c.typ.Name(), got, c.want)
		}
	}
}

func TestConventionNamingPolicy_Pluralize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Box", "Boxes"},
		{"City", "Cities"},
		{"Day", "Days"},
		{"Bus", "Buses"},
		{"Batch", "Batches"},
		{"Dish", "Dishes"},
		{"Order", "Orders"},
	}
	for _, c := range cases {
		if got := pluralize(c.in); got != c.want {
			t.Errorf("pluralize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConventionNamingPolicy_Keys(t *testing.T) {
	policy := ConventionNamingPolicy{}

	rowType := reflect.TypeOf(versionedRow{})
	idField, _ := rowType.FieldByName("ID")
	if !policy.IsKeyProperty(rowType, idField) {
		t.Error("IsKeyProperty(ID) = false, want true")
	}
	versionField, _ := rowType.FieldByName("RowVersion")
	if !policy.IsVersionProperty(rowType, versionField) {
		t.Error("IsVersionProperty(RowVersion) = false, want true")
	}

	stringType := reflect.TypeOf(stringKeyed{})
	typedKey, _ := stringType.FieldByName("StringKeyedID")
	if !policy.IsKeyProperty(stringType, typedKey) {
		t.Error("IsKeyProperty(<TypeName>ID) = false, want true")
	}
	noteField, _ := stringType.FieldByName("Note")
	if policy.IsKeyProperty(stringType, noteField) {
		t.Error("IsKeyProperty(Note) = true, want false")
	}

	if got := policy.AutoGeneratedKeyType(rowType); got != AutoKeyIdentity {
		t.Errorf("AutoGeneratedKeyType(int key) = %q, want Identity", got)
	}
	if got := policy.AutoGeneratedKeyType(reflect.TypeOf(uuidKeyed{})); got != AutoKeyKeyGenerator {
		t.Errorf("AutoGeneratedKeyType(uuid key) = %q, want KeyGenerator", got)
	}
	if got := policy.AutoGeneratedKeyType(stringType); got != AutoKeyKeyGenerator {
		t.Errorf("AutoGeneratedKeyType(string key) = %q, want KeyGenerator", got)
	}
}
