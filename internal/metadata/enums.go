package metadata

import "reflect"

// Enumerated is implemented by enumeration types to expose their ordered
// member names. Either value or pointer receivers work.
type Enumerated interface {
	EnumMembers() []string
}

var enumeratedType = reflect.TypeOf((*Enumerated)(nil)).Elem()

// enumMembersOf returns the ordered member names of an enumeration type.
func enumMembersOf(t reflect.Type) ([]string, bool) {
	if t.Implements(enumeratedType) {
		return reflect.Zero(t).Interface().(Enumerated).EnumMembers(), true
	}
	if reflect.PointerTo(t).Implements(enumeratedType) {
		return reflect.New(t).Interface().(Enumerated).EnumMembers(), true
	}
	return nil, false
}

// EnumDetection selects which property shapes feed the enum collector. The
// original behavior only collected optional-wrapped enums; both paths are on
// by default here and tests pin them to identical results.
type EnumDetection int

const (
	// DetectBareEnums collects enums from properties typed directly as the
	// enumeration.
	DetectBareEnums EnumDetection = 1 << iota
	// DetectWrappedEnums collects enums from optional-wrapped enumeration
	// properties.
	DetectWrappedEnums
)

// enumCollector accumulates the distinct enumerations seen during one build.
type enumCollector struct {
	list []*EnumType
	seen map[string]struct{}
}

func newEnumCollector() *enumCollector {
	return &enumCollector{list: []*EnumType{}, seen: make(map[string]struct{})}
}

// collect appends the enumeration unless its short name was already seen.
// Non-enumeration types are ignored.
func (c *enumCollector) collect(t reflect.Type) {
	name := t.Name()
	if _, ok := c.seen[name]; ok {
		return
	}
	members, ok := enumMembersOf(t)
	if !ok {
		return
	}
	c.seen[name] = struct{}{}
	c.list = append(c.list, &EnumType{
		ShortName: name,
		Namespace: t.PkgPath(),
		Values:    members,
	})
}
