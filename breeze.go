// Package breeze introspects a closed set of Go struct types and produces a
// Breeze-style metadata document describing their shape: data properties,
// keys, relationships, and enumerations. Remote clients consume the document
// to drive data binding and query construction against the described
// entities.
//
// # Annotations
//
// Declarative metadata comes from the "breeze" struct tag. Entries are comma
// separated; each is a bare kind, kind=value, or kind(Param=value, ...):
//
//	type Product struct {
//	    EntityKey int64
//	    Name      string  `breeze:"required,maxLength=80"`
//	    Price     float64 `breeze:"rangeValidator(Minimum=0,Maximum=10000)"`
//	    VendorID  int64
//	    Vendor    *Vendor `breeze:"foreignKey(VendorID)"`
//	}
//
// Recognized kinds map onto normalized metadata fields (key, required,
// maxLength, stringLength, defaultValue, concurrencyCheck, databaseGenerated,
// foreignKey, inverseProperty). Kinds whose name contains "Validat" become
// generic validator descriptors; anything else is ignored. A member tagged
// breeze:"-" is skipped entirely.
//
// # Enumerations
//
// A named type is an enumeration when it implements EnumMembers() []string
// (value or pointer receiver). Each enumeration appears in the document's
// enumTypes at most once, however many properties reference it, bare or
// wrapped in an optional carrier.
//
// # Saving
//
// A Provider bound to a database via SetDB accepts client change sets through
// SaveChanges. The save pipeline runs in one transaction, generates keys per
// each type's auto-generated key mode, and re-links foreign key columns from
// the document's relationship side channel. Entities may implement save
// hooks to participate in the transaction:
//
//	func (p *Product) BeforeSave(ctx context.Context) error {
//	    tx, ok := breeze.TransactionFromContext(ctx)
//	    if !ok {
//	        return fmt.Errorf("transaction unavailable")
//	    }
//	    _, err := tx.Exec("INSERT INTO audit_log (action) VALUES (?)", "save")
//	    return err
//	}
//
// Any error returned from a hook rolls back the whole save.
package breeze

import (
	"context"
	"database/sql"

	"github.com/cseils/breeze.tooling/internal/annotation"
	"github.com/cseils/breeze.tooling/internal/metadata"
	"github.com/cseils/breeze.tooling/internal/save"
)

// Re-exported metadata and save types. The internal packages hold the
// implementations; these aliases are the public surface.
type (
	// Document is the aggregate metadata document for one set of entities.
	Document = metadata.Document

	// StructuralType describes one entity's shape.
	StructuralType = metadata.StructuralType

	// DataProperty describes a scalar or value-carrying member.
	DataProperty = metadata.DataProperty

	// NavigationProperty describes a member referencing another entity.
	NavigationProperty = metadata.NavigationProperty

	// EnumType describes one enumeration with its ordered member names.
	EnumType = metadata.EnumType

	// Validator is one entry in a data property's validators list.
	Validator = metadata.Validator

	// Enumerated is implemented by enumeration types to expose their
	// ordered member names.
	Enumerated = metadata.Enumerated

	// NamingPolicy supplies naming and key decisions during a build.
	NamingPolicy = metadata.NamingPolicy

	// DefaultNamingPolicy is the reference policy with naive pluralization.
	DefaultNamingPolicy = metadata.DefaultNamingPolicy

	// ConventionNamingPolicy derives names from common Go entity conventions.
	ConventionNamingPolicy = metadata.ConventionNamingPolicy

	// AutoGeneratedKeyType describes how an entity's key values are produced.
	AutoGeneratedKeyType = metadata.AutoGeneratedKeyType

	// BuildOption adjusts how metadata construction runs.
	BuildOption = metadata.Option

	// EnumDetection selects which property shapes populate enumTypes.
	EnumDetection = metadata.EnumDetection

	// Annotation is one declarative marker parsed from a breeze struct tag.
	Annotation = annotation.Annotation

	// AttributeHandler applies one recognized annotation kind to a data
	// property.
	AttributeHandler = metadata.AttributeHandler

	// ValidatorKindFunc decides whether an annotation kind names a
	// client-side validator.
	ValidatorKindFunc = metadata.ValidatorKindFunc

	// EntityState describes what a save request wants done with an entity.
	EntityState = save.EntityState

	// EntityInfo is one entity in a save request.
	EntityInfo = save.EntityInfo

	// KeyMapping records a key value the save pipeline replaced.
	KeyMapping = save.KeyMapping

	// SaveResult is what a completed save returns to the client.
	SaveResult = save.Result

	// KeyGenerator produces a key value for a new entity.
	KeyGenerator = save.KeyGenerator

	// KeyGeneratorNamer is implemented by entities that want a specific
	// registered key generator; types without it use the "uuid" generator.
	KeyGeneratorNamer = save.KeyGeneratorNamer
)

// Auto-generated key modes.
const (
	AutoKeyNone         = metadata.AutoKeyNone
	AutoKeyIdentity     = metadata.AutoKeyIdentity
	AutoKeyKeyGenerator = metadata.AutoKeyKeyGenerator
)

// Entity states accepted by SaveChanges.
const (
	StateAdded     = save.StateAdded
	StateModified  = save.StateModified
	StateDeleted   = save.StateDeleted
	StateUnchanged = save.StateUnchanged
)

// Enum detection paths for WithEnumDetection.
const (
	DetectBareEnums    = metadata.DetectBareEnums
	DetectWrappedEnums = metadata.DetectWrappedEnums
)

// Build options re-exported from the metadata package.
var (
	// WithEnumDetection selects which property shapes populate enumTypes.
	WithEnumDetection = metadata.WithEnumDetection

	// WithValidatorKind replaces the predicate deciding which annotation
	// kinds describe client-side validators.
	WithValidatorKind = metadata.WithValidatorKind

	// WithAttributeHandler registers or replaces the handler for an
	// annotation kind.
	WithAttributeHandler = metadata.WithAttributeHandler
)

// Sentinel errors surfaced by builds and saves.
var (
	ErrEmptyTypeSet         = metadata.ErrEmptyTypeSet
	ErrResourceCollision    = metadata.ErrResourceCollision
	ErrConcurrencyViolation = save.ErrConcurrencyViolation
)

// AssociationName derives the deterministic relationship name shared by both
// endpoints of a bidirectional relationship.
func AssociationName(nameA, nameB string, columns []string) string {
	return metadata.AssociationName(nameA, nameB, columns)
}

// TransactionFromContext returns the *sql.Tx a save request is running in.
// Save hooks opt into the shared transaction by calling this helper with the
// context they receive; statements issued on it commit or roll back together
// with the save.
func TransactionFromContext(ctx context.Context) (*sql.Tx, bool) {
	return save.TransactionFromContext(ctx)
}
