package metadata

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// LocalQueryComparisonOptions is emitted verbatim so clients evaluate local
// cache queries with the same string semantics as the backing store.
const LocalQueryComparisonOptions = "caseInsensitiveSQL"

// AutoGeneratedKeyType describes how an entity's primary key value is produced.
type AutoGeneratedKeyType string

const (
	// AutoKeyNone means the client supplies final key values.
	AutoKeyNone AutoGeneratedKeyType = "None"
	// AutoKeyIdentity means the store assigns key values on insert.
	AutoKeyIdentity AutoGeneratedKeyType = "Identity"
	// AutoKeyKeyGenerator means a registered generator assigns key values
	// before insert.
	AutoKeyKeyGenerator AutoGeneratedKeyType = "KeyGenerator"
)

// Document is the aggregate metadata document for one closed set of entity
// types. StructuralTypes preserves registration order. ForeignKeys is a side
// channel for the save pipeline and is never serialized.
type Document struct {
	LocalQueryComparisonOptions string            `json:"localQueryComparisonOptions"`
	StructuralTypes             []*StructuralType `json:"structuralTypes"`
	ResourceEntityTypeMap       map[string]string `json:"resourceEntityTypeMap"`
	EnumTypes                   []*EnumType       `json:"enumTypes"`

	// ForeignKeys maps association names to the foreign key property that
	// backs the relationship, used at save time to re-link foreign key
	// values to navigation references.
	ForeignKeys map[string]string `json:"-"`
}

// StructuralType describes one entity's shape.
type StructuralType struct {
	// Type is the Go type the descriptor was built from.
	Type reflect.Type `json:"-"`

	ShortName            string                `json:"shortName"`
	Namespace            string                `json:"namespace"`
	BaseTypeName         string                `json:"baseTypeName,omitempty"`
	AutoGeneratedKeyType AutoGeneratedKeyType  `json:"autoGeneratedKeyType,omitempty"`
	DefaultResourceName  string                `json:"defaultResourceName"`
	DataProperties       []*DataProperty       `json:"dataProperties"`
	NavigationProperties []*NavigationProperty `json:"navigationProperties,omitempty"`
}

// DataProperty describes a scalar or value-carrying member of an entity.
type DataProperty struct {
	NameOnServer    string      `json:"nameOnServer"`
	DataType        string      `json:"dataType"`
	IsNullable      bool        `json:"isNullable"`
	IsPartOfKey     bool        `json:"isPartOfKey,omitempty"`
	ConcurrencyMode string      `json:"concurrencyMode,omitempty"`
	DefaultValue    interface{} `json:"defaultValue,omitempty"`
	MaxLength       int         `json:"maxLength,omitempty"`
	MinLength       int         `json:"minLength,omitempty"`
	IsComputed      bool        `json:"isComputed,omitempty"`
	ForeignKey      string      `json:"foreignKey,omitempty"`
	InverseProperty string      `json:"inverseProperty,omitempty"`
	Validators      []Validator `json:"validators,omitempty"`
}

// NavigationProperty describes a member referencing another entity in the set.
type NavigationProperty struct {
	NameOnServer    string `json:"nameOnServer"`
	EntityTypeName  string `json:"entityTypeName"`
	IsScalar        bool   `json:"isScalar"`
	AssociationName string `json:"associationName"`
	ForeignKey      string `json:"foreignKey,omitempty"`
	InverseProperty string `json:"inverseProperty,omitempty"`
}

// EnumType describes one enumeration with its ordered member names.
type EnumType struct {
	ShortName string   `json:"shortName"`
	Namespace string   `json:"namespace"`
	Values    []string `json:"values"`
}

// Validator is one entry in a data property's validators list. Entries are
// single-pair objects: the leading entry names the validator and each
// following entry carries one annotation parameter.
type Validator map[string]interface{}

// TypeKey formats the unique identifier clients use to reference a type.
func TypeKey(shortName, namespace string) string {
	return shortName + ":#" + namespace
}

// TypeKey returns the structural type's unique identifier.
func (s *StructuralType) TypeKey() string {
	return TypeKey(s.ShortName, s.Namespace)
}

// KeyProperties returns the data properties that form the entity key.
func (s *StructuralType) KeyProperties() []*DataProperty {
	var keys []*DataProperty
	for _, p := range s.DataProperties {
		if p.IsPartOfKey {
			keys = append(keys, p)
		}
	}
	return keys
}

// Property returns the named data property, if present.
func (s *StructuralType) Property(name string) (*DataProperty, bool) {
	for _, p := range s.DataProperties {
		if p.NameOnServer == name {
			return p, true
		}
	}
	return nil, false
}

// Navigation returns the named navigation property, if present.
func (s *StructuralType) Navigation(name string) (*NavigationProperty, bool) {
	for _, n := range s.NavigationProperties {
		if n.NameOnServer == name {
			return n, true
		}
	}
	return nil, false
}

// TypeByKey returns the structural type with the given type key.
func (d *Document) TypeByKey(key string) (*StructuralType, bool) {
	for _, s := range d.StructuralTypes {
		if s.TypeKey() == key {
			return s, true
		}
	}
	return nil, false
}

// TypeFor returns the structural type built from the given Go type.
// Pointer types are dereferenced before matching.
func (d *Document) TypeFor(t reflect.Type) (*StructuralType, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for _, s := range d.StructuralTypes {
		if s.Type == t {
			return s, true
		}
	}
	return nil, false
}

// ForeignKeyFor returns the foreign key property backing the named
// association, if one was declared.
func (d *Document) ForeignKeyFor(associationName string) (string, bool) {
	fk, ok := d.ForeignKeys[associationName]
	return fk, ok
}

// Fingerprint returns a stable hash of the serialized document, usable as a
// cache validator for clients that poll metadata.
func (d *Document) Fingerprint() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal metadata document: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
