package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cseils/breeze.tooling/internal/annotation"
)

// AttributeHandler applies one recognized annotation kind to a data
// property. Handlers fail when an argument they require is absent or
// malformed; that surfaces as a build error rather than a silent default.
type AttributeHandler func(prop *DataProperty, ann annotation.Annotation) error

// ValidatorKindFunc decides whether an unrecognized annotation kind names a
// client-side validator.
type ValidatorKindFunc func(kind string) bool

// defaultValidatorKind keeps the original substring heuristic, case relaxed
// so tag-style lowerCamel kinds match too.
func defaultValidatorKind(kind string) bool {
	return strings.Contains(strings.ToLower(kind), "validat")
}

// attributeMapper converts a member's annotations into normalized metadata
// fields. Recognized kinds dispatch through an explicit registry keyed by
// lower-cased kind name; everything else either matches the validator
// predicate or is ignored.
type attributeMapper struct {
	handlers    map[string]AttributeHandler
	isValidator ValidatorKindFunc
}

func newAttributeMapper() *attributeMapper {
	m := &attributeMapper{
		handlers:    make(map[string]AttributeHandler),
		isValidator: defaultValidatorKind,
	}
	m.register("key", markKey)
	m.register("primaryKey", markKey)
	m.register("concurrencyCheck", markConcurrencyCheck)
	m.register("required", markRequired)
	m.register("defaultValue", setDefaultValue)
	m.register("maxLength", setMaxLength)
	m.register("stringLength", setStringLength)
	m.register("databaseGenerated", markComputed)
	m.register("foreignKey", setForeignKey)
	m.register("inverseProperty", setInverseProperty)
	return m
}

func (m *attributeMapper) register(kind string, h AttributeHandler) {
	m.handlers[strings.ToLower(kind)] = h
}

// applyData runs every annotation on a data property.
func (m *attributeMapper) applyData(prop *DataProperty, anns []annotation.Annotation) error {
	for _, ann := range anns {
		if h, ok := m.handlers[strings.ToLower(ann.Kind)]; ok {
			if err := h(prop, ann); err != nil {
				return err
			}
			continue
		}
		if m.isValidator(ann.Kind) {
			appendValidator(prop, ann)
		}
	}
	return nil
}

// applyNavigation runs annotations on a navigation property. Only foreignKey
// and inverseProperty are recognized here.
func (m *attributeMapper) applyNavigation(nav *NavigationProperty, anns []annotation.Annotation) error {
	for _, ann := range anns {
		switch strings.ToLower(ann.Kind) {
		case "foreignkey":
			name, ok := ann.Arg("Name", 0)
			if !ok {
				return fmt.Errorf("annotation foreignKey: missing Name argument")
			}
			nav.ForeignKey = name
		case "inverseproperty":
			prop, ok := ann.Arg("Property", 0)
			if !ok {
				return fmt.Errorf("annotation inverseProperty: missing Property argument")
			}
			nav.InverseProperty = prop
		}
	}
	return nil
}

// appendValidator emits the generic validator entries: one naming the
// validator, then one per named non-empty parameter.
func appendValidator(prop *DataProperty, ann annotation.Annotation) {
	prop.Validators = append(prop.Validators, Validator{"name": annotation.LowerCamel(ann.Kind)})
	for _, param := range ann.Params {
		if param.Name == "" || param.Value == "" {
			continue
		}
		prop.Validators = append(prop.Validators, Validator{
			annotation.LowerCamel(param.Name): annotation.Literal(param.Value),
		})
	}
}

func markKey(prop *DataProperty, _ annotation.Annotation) error {
	prop.IsPartOfKey = true
	return nil
}

func markConcurrencyCheck(prop *DataProperty, _ annotation.Annotation) error {
	prop.ConcurrencyMode = "Fixed"
	return nil
}

func markRequired(prop *DataProperty, _ annotation.Annotation) error {
	prop.IsNullable = false
	return nil
}

func markComputed(prop *DataProperty, _ annotation.Annotation) error {
	prop.IsComputed = true
	return nil
}

func setDefaultValue(prop *DataProperty, ann annotation.Annotation) error {
	raw, ok := ann.Arg("Value", 0)
	if !ok {
		return fmt.Errorf("annotation defaultValue: missing Value argument")
	}
	prop.DefaultValue = annotation.Literal(raw)
	return nil
}

func setMaxLength(prop *DataProperty, ann annotation.Annotation) error {
	raw, ok := ann.Arg("Length", 0)
	if !ok {
		return fmt.Errorf("annotation maxLength: missing Length argument")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("annotation maxLength: parse Length %q: %w", raw, err)
	}
	prop.MaxLength = n
	return nil
}

func setStringLength(prop *DataProperty, ann annotation.Annotation) error {
	raw, ok := ann.Arg("MaximumLength", 0)
	if !ok {
		return fmt.Errorf("annotation stringLength: missing MaximumLength argument")
	}
	max, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("annotation stringLength: parse MaximumLength %q: %w", raw, err)
	}
	prop.MaxLength = max
	if raw, ok := ann.Arg("MinimumLength", 1); ok {
		min, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("annotation stringLength: parse MinimumLength %q: %w", raw, err)
		}
		if min > 0 {
			prop.MinLength = min
		}
	}
	return nil
}

func setForeignKey(prop *DataProperty, ann annotation.Annotation) error {
	name, ok := ann.Arg("Name", 0)
	if !ok {
		return fmt.Errorf("annotation foreignKey: missing Name argument")
	}
	prop.ForeignKey = name
	return nil
}

func setInverseProperty(prop *DataProperty, ann annotation.Annotation) error {
	name, ok := ann.Arg("Property", 0)
	if !ok {
		return fmt.Errorf("annotation inverseProperty: missing Property argument")
	}
	prop.InverseProperty = name
	return nil
}
