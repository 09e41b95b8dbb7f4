package metadata

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NamingPolicy supplies the naming and key decisions a build cannot derive
// from type structure alone. Implementations must be safe for reuse across
// builds.
type NamingPolicy interface {
	// AutoGeneratedKeyType reports how the entity's key values are produced.
	// An empty result omits the field from the descriptor.
	AutoGeneratedKeyType(t reflect.Type) AutoGeneratedKeyType
	// ResourceName returns the collection name clients use to address
	// instances of the type.
	ResourceName(t reflect.Type) string
	// IsKeyProperty reports whether the field is part of the entity key.
	IsKeyProperty(t reflect.Type, field reflect.StructField) bool
	// IsVersionProperty reports whether the field carries the optimistic
	// concurrency version.
	IsVersionProperty(t reflect.Type, field reflect.StructField) bool
}

// DefaultNamingPolicy is the reference policy: key mode is always Identity,
// resource names use a naive suffix pluralization (trailing "y" becomes
// "ies", anything else appends "s"), the key property is the member named
// EntityKey, and nothing is a version property. The pluralization is
// deliberately simplistic; swap in another policy where it matters.
type DefaultNamingPolicy struct{}

func (DefaultNamingPolicy) AutoGeneratedKeyType(reflect.Type) AutoGeneratedKeyType {
	return AutoKeyIdentity
}

func (DefaultNamingPolicy) ResourceName(t reflect.Type) string {
	name := t.Name()
	if strings.HasSuffix(name, "y") {
		return name[:len(name)-1] + "ies"
	}
	return name + "s"
}

func (DefaultNamingPolicy) IsKeyProperty(_ reflect.Type, field reflect.StructField) bool {
	return field.Name == "EntityKey"
}

func (DefaultNamingPolicy) IsVersionProperty(reflect.Type, reflect.StructField) bool {
	return false
}

// ConventionNamingPolicy derives names from common Go entity conventions:
// a ResourceName() string method wins over pluralization, key fields are
// EntityKey, ID, or <TypeName>ID (matching the type name's leading rune
// case-insensitively), RowVersion marks the concurrency version, and string
// or UUID keys switch the key mode to KeyGenerator.
type ConventionNamingPolicy struct{}

func (p ConventionNamingPolicy) AutoGeneratedKeyType(t reflect.Type) AutoGeneratedKeyType {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !p.IsKeyProperty(t, field) {
			continue
		}
		keyType, _ := unwrapOptional(field.Type)
		switch keyType.Kind() {
		case reflect.String:
			return AutoKeyKeyGenerator
		case reflect.Array:
			// uuid.UUID and friends are byte arrays
			if keyType.Elem().Kind() == reflect.Uint8 {
				return AutoKeyKeyGenerator
			}
		}
		return AutoKeyIdentity
	}
	return AutoKeyIdentity
}

func (ConventionNamingPolicy) ResourceName(t reflect.Type) string {
	if name, ok := resourceNameFromMethod(t); ok {
		return name
	}
	return pluralize(t.Name())
}

func (ConventionNamingPolicy) IsKeyProperty(t reflect.Type, field reflect.StructField) bool {
	switch field.Name {
	case "EntityKey", "ID":
		return true
	}
	name := t.Name()
	if name == "" {
		return false
	}
	// key fields are exported even when the type name is not, so the
	// leading rune is compared case-insensitively
	r, size := utf8.DecodeRuneInString(name)
	return field.Name == string(unicode.ToUpper(r))+name[size:]+"ID"
}

func (ConventionNamingPolicy) IsVersionProperty(_ reflect.Type, field reflect.StructField) bool {
	return field.Name == "RowVersion"
}

// resourceNameFromMethod checks for a ResourceName() string method on the
// type or its pointer and returns its result when present.
func resourceNameFromMethod(t reflect.Type) (string, bool) {
	ptr := reflect.New(t)
	for _, v := range []reflect.Value{ptr, ptr.Elem()} {
		method := v.MethodByName("ResourceName")
		if !method.IsValid() {
			continue
		}
		mt := method.Type()
		if mt.NumIn() != 0 || mt.NumOut() != 1 || mt.Out(0).Kind() != reflect.String {
			continue
		}
		if name := method.Call(nil)[0].String(); name != "" {
			return name, true
		}
	}
	return "", false
}

// pluralize converts an entity name to its plural form following basic
// English rules.
func pluralize(name string) string {
	if name == "" {
		return name
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, "y") && len(name) > 1 && !isVowel(lower[len(lower)-2]) {
		return name[:len(name)-1] + "ies"
	}
	if strings.HasSuffix(lower, "s") || strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") || strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh") {
		return name + "es"
	}
	return name + "s"
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
