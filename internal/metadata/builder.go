package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cseils/breeze.tooling/internal/annotation"
)

// TagName is the struct tag key carrying declarative annotations.
const TagName = "breeze"

var (
	// ErrEmptyTypeSet reports a build attempted with no entity types.
	ErrEmptyTypeSet = errors.New("empty entity type set")
	// ErrResourceCollision reports two types mapping to the same resource name.
	ErrResourceCollision = errors.New("resource name collision")
)

// Option adjusts how one build runs.
type Option func(*buildConfig)

type buildConfig struct {
	mapper        *attributeMapper
	enumDetection EnumDetection
}

func newBuildConfig(opts ...Option) *buildConfig {
	cfg := &buildConfig{
		mapper:        newAttributeMapper(),
		enumDetection: DetectBareEnums | DetectWrappedEnums,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithValidatorKind replaces the predicate deciding which unrecognized
// annotation kinds describe client-side validators.
func WithValidatorKind(pred ValidatorKindFunc) Option {
	return func(cfg *buildConfig) { cfg.mapper.isValidator = pred }
}

// WithEnumDetection selects which property shapes populate enumTypes.
func WithEnumDetection(d EnumDetection) Option {
	return func(cfg *buildConfig) { cfg.enumDetection = d }
}

// WithAttributeHandler registers or replaces the data property handler for an
// annotation kind.
func WithAttributeHandler(kind string, h AttributeHandler) Option {
	return func(cfg *buildConfig) { cfg.mapper.register(kind, h) }
}

// buildContext carries the accumulation state for exactly one build. Every
// invocation constructs a fresh context, so Build is safe for concurrent
// callers even over a shared type set.
type buildContext struct {
	set    *TypeSet
	policy NamingPolicy
	cfg    *buildConfig
	doc    *Document
	enums  *enumCollector
}

// member is one enumerated field of an entity type with its parsed
// annotations.
type member struct {
	field reflect.StructField
	anns  []annotation.Annotation
}

// navMember is a member already classified as a navigation property.
type navMember struct {
	member
	target reflect.Type
}

// Build walks the type set in registration order and produces its metadata
// document. A nil policy falls back to DefaultNamingPolicy.
func Build(set *TypeSet, policy NamingPolicy, opts ...Option) (*Document, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptyTypeSet
	}
	if policy == nil {
		policy = DefaultNamingPolicy{}
	}
	bc := &buildContext{
		set:    set,
		policy: policy,
		cfg:    newBuildConfig(opts...),
		doc: &Document{
			LocalQueryComparisonOptions: LocalQueryComparisonOptions,
			StructuralTypes:             []*StructuralType{},
			ResourceEntityTypeMap:       make(map[string]string),
			ForeignKeys:                 make(map[string]string),
		},
		enums: newEnumCollector(),
	}
	for _, t := range set.Types() {
		st, err := bc.buildStructuralType(t)
		if err != nil {
			return nil, fmt.Errorf("build metadata for %s: %w", t.Name(), err)
		}
		bc.doc.StructuralTypes = append(bc.doc.StructuralTypes, st)
	}
	bc.doc.EnumTypes = bc.enums.list
	return bc.doc, nil
}

func (bc *buildContext) buildStructuralType(t reflect.Type) (*StructuralType, error) {
	st := &StructuralType{
		Type:                 t,
		ShortName:            t.Name(),
		Namespace:            t.PkgPath(),
		AutoGeneratedKeyType: bc.policy.AutoGeneratedKeyType(t),
		DefaultResourceName:  bc.policy.ResourceName(t),
		DataProperties:       []*DataProperty{},
	}
	if existing, ok := bc.doc.ResourceEntityTypeMap[st.DefaultResourceName]; ok {
		return nil, fmt.Errorf("resource %q already maps to %s: %w",
			st.DefaultResourceName, existing, ErrResourceCollision)
	}
	bc.doc.ResourceEntityTypeMap[st.DefaultResourceName] = st.TypeKey()

	members, base, err := ownMembers(bc.set, t, true)
	if err != nil {
		return nil, err
	}
	if base != nil {
		st.BaseTypeName = TypeKey(base.Name(), base.PkgPath())
	}

	// Data properties and enums first, associations second; relationship
	// naming then never sees a half-processed member list.
	var navs []navMember
	for _, m := range members {
		if target, ok := bc.navigationTarget(m.field); ok {
			navs = append(navs, navMember{member: m, target: target})
			continue
		}
		prop, err := bc.buildDataProperty(t, m)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", m.field.Name, err)
		}
		st.DataProperties = append(st.DataProperties, prop)
	}
	for _, nm := range navs {
		nav, err := bc.buildNavigationProperty(t, nm)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", nm.field.Name, err)
		}
		st.NavigationProperties = append(st.NavigationProperties, nav)
	}
	return st, nil
}

// ownMembers enumerates the type's own exported members. The first embedded
// type-set member is the base type and contributes nothing (its members are
// described once, on its own descriptor); embedded non-member structs are
// flattened into their exported fields; a further embedded set member stays
// a member and classifies as a scalar navigation property.
func ownMembers(set *TypeSet, t reflect.Type, allowBase bool) ([]member, reflect.Type, error) {
	var (
		members []member
		base    reflect.Type
	)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get(TagName) == "-" {
			continue
		}
		if field.Anonymous {
			embedded := derefType(field.Type)
			if set.Contains(embedded) {
				if allowBase && base == nil {
					base = embedded
					continue
				}
			} else if embedded.Kind() == reflect.Struct {
				// embedded non-member structs contribute their promoted
				// fields, exported embed or not
				nested, _, err := ownMembers(set, embedded, false)
				if err != nil {
					return nil, nil, err
				}
				members = append(members, nested...)
				continue
			}
		}
		if field.PkgPath != "" {
			continue
		}
		anns, err := annotationsOf(field)
		if err != nil {
			return nil, nil, err
		}
		members = append(members, member{field: field, anns: anns})
	}
	return members, base, nil
}

// annotationsOf parses the member's breeze tag.
func annotationsOf(field reflect.StructField) ([]annotation.Annotation, error) {
	tag := field.Tag.Get(TagName)
	if tag == "" || tag == "-" {
		return nil, nil
	}
	anns, err := annotation.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", field.Name, err)
	}
	return anns, nil
}

// navigationTarget resolves the entity type a member references, when its
// element type is in the set.
func (bc *buildContext) navigationTarget(field reflect.StructField) (reflect.Type, bool) {
	elem := derefType(elementType(derefType(field.Type)))
	if bc.set.Contains(elem) {
		return elem, true
	}
	return nil, false
}

func (bc *buildContext) buildDataProperty(owner reflect.Type, m member) (*DataProperty, error) {
	unwrapped, wrapped := unwrapOptional(m.field.Type)
	prop := &DataProperty{
		NameOnServer: m.field.Name,
		DataType:     dataTypeFor(unwrapped),
		IsNullable:   wrapped || isReferenceKind(unwrapped.Kind()),
	}
	if bc.policy.IsKeyProperty(owner, m.field) {
		prop.IsPartOfKey = true
	}
	if bc.policy.IsVersionProperty(owner, m.field) {
		prop.ConcurrencyMode = "Fixed"
	}
	if err := bc.cfg.mapper.applyData(prop, m.anns); err != nil {
		return nil, err
	}
	bc.collectEnum(unwrapped, wrapped)
	return prop, nil
}

// collectEnum feeds the enum collector through the configured detection
// paths: the bare enumeration type of a property, or the enumeration inside
// an optional wrapper.
func (bc *buildContext) collectEnum(unwrapped reflect.Type, wrapped bool) {
	if _, ok := enumMembersOf(unwrapped); !ok {
		return
	}
	if wrapped {
		if bc.cfg.enumDetection&DetectWrappedEnums != 0 {
			bc.enums.collect(unwrapped)
		}
		return
	}
	if bc.cfg.enumDetection&DetectBareEnums != 0 {
		bc.enums.collect(unwrapped)
	}
}

func (bc *buildContext) buildNavigationProperty(owner reflect.Type, nm navMember) (*NavigationProperty, error) {
	nav := &NavigationProperty{
		NameOnServer:   nm.field.Name,
		EntityTypeName: TypeKey(nm.target.Name(), nm.target.PkgPath()),
		IsScalar:       !isCollectionType(derefType(nm.field.Type)),
	}
	if err := bc.cfg.mapper.applyNavigation(nav, nm.anns); err != nil {
		return nil, err
	}
	inverseFK, err := bc.inverseForeignKey(owner, nav.InverseProperty, nm.target)
	if err != nil {
		return nil, err
	}
	columns := mergeColumns(splitColumns(nav.ForeignKey), splitColumns(inverseFK))
	nav.AssociationName = AssociationName(owner.Name(), nm.target.Name(), columns)
	if nav.ForeignKey != "" {
		if _, ok := bc.doc.ForeignKeys[nav.AssociationName]; !ok {
			bc.doc.ForeignKeys[nav.AssociationName] = nav.ForeignKey
		}
	}
	return nav, nil
}

// inverseForeignKey finds the foreign key declared on the relation's other
// endpoint so both sides derive the same canonical column list. The inverse
// member is the one named by inverseProperty or, failing that, the only
// member of the target that references the owner.
func (bc *buildContext) inverseForeignKey(owner reflect.Type, inverseName string, target reflect.Type) (string, error) {
	var inverse *reflect.StructField
	if inverseName != "" {
		if f, ok := target.FieldByName(inverseName); ok {
			inverse = &f
		}
	} else {
		var match reflect.StructField
		count := 0
		for i := 0; i < target.NumField(); i++ {
			f := target.Field(i)
			if f.PkgPath != "" || f.Anonymous {
				continue
			}
			if derefType(elementType(derefType(f.Type))) == owner {
				match = f
				count++
			}
		}
		if count == 1 {
			inverse = &match
		}
	}
	if inverse == nil {
		return "", nil
	}
	anns, err := annotationsOf(*inverse)
	if err != nil {
		return "", fmt.Errorf("inverse member %s.%s: %w", target.Name(), inverse.Name, err)
	}
	for _, ann := range anns {
		if strings.EqualFold(ann.Kind, "foreignKey") {
			if name, ok := ann.Arg("Name", 0); ok {
				return name, nil
			}
		}
	}
	return "", nil
}
