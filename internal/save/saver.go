package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cseils/breeze.tooling/internal/metadata"
	"github.com/cseils/breeze.tooling/internal/observability"
)

// EntityState describes what a save request wants done with an entity.
type EntityState string

const (
	StateAdded     EntityState = "Added"
	StateModified  EntityState = "Modified"
	StateDeleted   EntityState = "Deleted"
	StateUnchanged EntityState = "Unchanged"
)

var (
	// ErrUnknownEntity reports an entity whose type is not in the metadata
	// document the saver was built from.
	ErrUnknownEntity = errors.New("entity type not in metadata document")
	// ErrConcurrencyViolation reports an update whose concurrency guard
	// matched no row.
	ErrConcurrencyViolation = errors.New("concurrency violation")
)

// EntityInfo is one entity in a save request. OriginalValues carries the
// client's pre-change values keyed by property name; values for properties
// with concurrency mode Fixed guard the update.
type EntityInfo struct {
	Entity         interface{}
	State          EntityState
	OriginalValues map[string]interface{}
}

// KeyMapping records a key value the save pipeline replaced, so the client
// can re-key its cached entities.
type KeyMapping struct {
	EntityTypeName string      `json:"entityTypeName"`
	TempValue      interface{} `json:"tempValue"`
	RealValue      interface{} `json:"realValue"`
}

// Result is what a completed save returns to the client.
type Result struct {
	Entities    []interface{} `json:"entities"`
	KeyMappings []KeyMapping  `json:"keyMappings"`
}

// KeyGenerator produces a key value for a new entity.
type KeyGenerator func(ctx context.Context) (interface{}, error)

// BeforeSaver is implemented by entities that want to run logic inside the
// save transaction before they are persisted. Returning an error aborts the
// whole save and rolls the transaction back. The transaction is available
// through TransactionFromContext.
type BeforeSaver interface {
	BeforeSave(ctx context.Context) error
}

// AfterSaver is implemented by entities that want to run logic inside the
// save transaction after they are persisted. Returning an error still rolls
// the whole save back.
type AfterSaver interface {
	AfterSave(ctx context.Context) error
}

// KeyGeneratorNamer is implemented by entities that want a specific
// registered key generator to produce their keys. Types without it use the
// default "uuid" generator.
type KeyGeneratorNamer interface {
	KeyGeneratorName() string
}

// defaultGeneratorName is the generator used for KeyGenerator-mode keys when
// the entity names no other.
const defaultGeneratorName = "uuid"

// Saver persists save requests against a database using the metadata
// document's foreign key side channel to re-link relationships. A Saver is
// safe for concurrent use.
type Saver struct {
	db     *gorm.DB
	doc    *metadata.Document
	logger *slog.Logger
	obs    *observability.Config

	generatorsMu sync.RWMutex
	generators   map[string]KeyGenerator
}

// NewSaver binds a saver to a database handle and a built metadata document.
// A uuid key generator is registered by default.
func NewSaver(db *gorm.DB, doc *metadata.Document, logger *slog.Logger) (*Saver, error) {
	if db == nil {
		return nil, fmt.Errorf("save: database handle is required")
	}
	if doc == nil {
		return nil, fmt.Errorf("save: metadata document is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Saver{
		db:         db,
		doc:        doc,
		logger:     logger,
		generators: make(map[string]KeyGenerator),
	}
	if err := s.RegisterKeyGenerator(defaultGeneratorName, func(context.Context) (interface{}, error) {
		return uuid.New(), nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger replaces the saver's logger. A nil logger falls back to
// slog.Default().
func (s *Saver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// SetObservability attaches tracing and metrics to save requests.
func (s *Saver) SetObservability(obs *observability.Config) {
	s.obs = obs
}

// RegisterKeyGenerator registers a key generator under the provided name,
// replacing any existing generator with that name. Inserts resolve the name
// the entity's KeyGeneratorName method returns, or "uuid" when the entity
// does not name one.
func (s *Saver) RegisterKeyGenerator(name string, generator KeyGenerator) error {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return fmt.Errorf("key generator name cannot be empty")
	}
	if generator == nil {
		return fmt.Errorf("key generator %q cannot be nil", trimmed)
	}
	s.generatorsMu.Lock()
	s.generators[trimmed] = generator
	s.generatorsMu.Unlock()
	return nil
}

func (s *Saver) resolveKeyGenerator(name string) (KeyGenerator, bool) {
	s.generatorsMu.RLock()
	defer s.generatorsMu.RUnlock()
	generator, ok := s.generators[strings.ToLower(strings.TrimSpace(name))]
	return generator, ok
}

// Save persists the request in one transaction, ordered Added then Modified
// then Deleted. Any error rolls everything back and nothing partial is
// returned.
func (s *Saver) Save(ctx context.Context, infos []EntityInfo) (*Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "breeze.save",
		attribute.Int("breeze.save.entities", len(infos)))
	result := &Result{Entities: []interface{}{}, KeyMappings: []KeyMapping{}}
	err := s.runInTransaction(ctx, func(tx *gorm.DB, sqlTx *sql.Tx) error {
		hookCtx := withTransaction(ctx, sqlTx)
		for _, state := range []EntityState{StateAdded, StateModified, StateDeleted} {
			for i := range infos {
				if infos[i].State != state {
					continue
				}
				if err := s.saveOne(hookCtx, tx, &infos[i], result); err != nil {
					return err
				}
			}
		}
		return nil
	})
	s.obs.RecordSave(ctx, len(infos), err)
	observability.EndSpan(span, err)
	if err != nil {
		s.logger.Error("Save failed", "entities", len(infos), "error", err)
		return nil, err
	}
	s.logger.Debug("Save completed",
		"entities", len(result.Entities),
		"keyMappings", len(result.KeyMappings))
	return result, nil
}

// runInTransaction reuses an ambient transaction from the context when one
// exists; otherwise it opens a new one and extracts the underlying *sql.Tx
// for hook consumption.
func (s *Saver) runInTransaction(ctx context.Context, fn func(tx *gorm.DB, sqlTx *sql.Tx) error) error {
	if ctxTx, ok := TransactionFromContext(ctx); ok {
		return fn(s.db.WithContext(ctx), ctxTx)
	}
	return s.db.WithContext(ctx).Transaction(func(gormTx *gorm.DB) error {
		var sqlTx *sql.Tx
		if gormTx.Statement != nil && gormTx.Statement.ConnPool != nil {
			if tx, ok := gormTx.Statement.ConnPool.(*sql.Tx); ok {
				sqlTx = tx
			}
		}
		if sqlTx == nil {
			return errors.New("failed to extract *sql.Tx from transaction")
		}
		return fn(gormTx, sqlTx)
	})
}

func (s *Saver) saveOne(ctx context.Context, tx *gorm.DB, info *EntityInfo, result *Result) error {
	v := reflect.ValueOf(info.Entity)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("save: entity must be a non-nil pointer to struct, got %T", info.Entity)
	}
	st, ok := s.doc.TypeFor(v.Type())
	if !ok {
		return fmt.Errorf("save %T: %w", info.Entity, ErrUnknownEntity)
	}
	if before, ok := info.Entity.(BeforeSaver); ok {
		if err := before.BeforeSave(ctx); err != nil {
			return fmt.Errorf("before save %s: %w", st.ShortName, err)
		}
	}
	if info.State != StateDeleted {
		if err := s.fixupForeignKeys(st, v.Elem()); err != nil {
			return fmt.Errorf("save %s: %w", st.ShortName, err)
		}
	}
	var err error
	switch info.State {
	case StateAdded:
		err = s.insertEntity(ctx, tx, st, v.Elem(), info, result)
	case StateModified:
		err = s.updateEntity(tx, st, info)
	case StateDeleted:
		err = tx.Delete(info.Entity).Error
	default:
		err = fmt.Errorf("unknown entity state %q", info.State)
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", st.ShortName, err)
	}
	result.Entities = append(result.Entities, info.Entity)
	if after, ok := info.Entity.(AfterSaver); ok {
		if err := after.AfterSave(ctx); err != nil {
			return fmt.Errorf("after save %s: %w", st.ShortName, err)
		}
	}
	return nil
}

// insertEntity persists a new entity, generating its key first when the type
// uses KeyGenerator mode. Identity keys come back from the insert itself.
// Every replaced key value is recorded as a KeyMapping.
func (s *Saver) insertEntity(ctx context.Context, tx *gorm.DB, st *metadata.StructuralType, ev reflect.Value, info *EntityInfo, result *Result) error {
	keyName, hasKey := keyPropertyName(st)
	var temp interface{}
	if hasKey {
		if field := ev.FieldByName(keyName); field.IsValid() {
			temp = field.Interface()
		}
	}
	if st.AutoGeneratedKeyType == metadata.AutoKeyKeyGenerator && hasKey {
		generatorName := defaultGeneratorName
		if namer, ok := info.Entity.(KeyGeneratorNamer); ok {
			if name := strings.TrimSpace(namer.KeyGeneratorName()); name != "" {
				generatorName = name
			}
		}
		generator, ok := s.resolveKeyGenerator(generatorName)
		if !ok {
			return fmt.Errorf("no key generator %q registered for %s", generatorName, st.ShortName)
		}
		value, err := generator(ctx)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		field := ev.FieldByName(keyName)
		if !field.IsValid() {
			return fmt.Errorf("key property %s not found", keyName)
		}
		if err := assignValue(field, reflect.ValueOf(value)); err != nil {
			return fmt.Errorf("assign generated key to %s: %w", keyName, err)
		}
	}
	// relationships are linked through the foreign key fixup, never by
	// cascading writes
	if err := tx.Omit(clause.Associations).Create(info.Entity).Error; err != nil {
		return err
	}
	if hasKey {
		if field := ev.FieldByName(keyName); field.IsValid() {
			real := field.Interface()
			if !reflect.DeepEqual(temp, real) {
				result.KeyMappings = append(result.KeyMappings, KeyMapping{
					EntityTypeName: st.TypeKey(),
					TempValue:      temp,
					RealValue:      real,
				})
			}
		}
	}
	return nil
}

// updateEntity writes all columns of a modified entity. Properties with
// concurrency mode Fixed guard the update with their original values; a
// guarded update that matches no row is a concurrency violation.
func (s *Saver) updateEntity(tx *gorm.DB, st *metadata.StructuralType, info *EntityInfo) error {
	q := tx.Model(info.Entity).Omit(clause.Associations)
	guarded := false
	for _, p := range st.DataProperties {
		if p.ConcurrencyMode != "Fixed" {
			continue
		}
		original, ok := info.OriginalValues[p.NameOnServer]
		if !ok {
			continue
		}
		q = q.Where(toSnakeCase(p.NameOnServer)+" = ?", original)
		guarded = true
	}
	res := q.Select("*").Updates(info.Entity)
	if res.Error != nil {
		return res.Error
	}
	if guarded && res.RowsAffected == 0 {
		return ErrConcurrencyViolation
	}
	return nil
}

// fixupForeignKeys copies each referenced entity's key value into the foreign
// key property the metadata document declared for the relationship, so keys
// rewritten earlier in the same save still land in the row.
func (s *Saver) fixupForeignKeys(st *metadata.StructuralType, ev reflect.Value) error {
	for _, nav := range st.NavigationProperties {
		if !nav.IsScalar {
			continue
		}
		fk, ok := s.doc.ForeignKeyFor(nav.AssociationName)
		if !ok {
			continue
		}
		ref := ev.FieldByName(nav.NameOnServer)
		for ref.IsValid() && ref.Kind() == reflect.Ptr {
			if ref.IsNil() {
				ref = reflect.Value{}
				break
			}
			ref = ref.Elem()
		}
		if !ref.IsValid() || ref.Kind() != reflect.Struct {
			continue
		}
		target, ok := s.doc.TypeByKey(nav.EntityTypeName)
		if !ok {
			continue
		}
		targetKey, ok := keyPropertyName(target)
		if !ok {
			continue
		}
		keyValue := ref.FieldByName(targetKey)
		fkField := ev.FieldByName(fk)
		if !keyValue.IsValid() || !fkField.IsValid() {
			return fmt.Errorf("relationship %s: foreign key property %s not found on %s",
				nav.AssociationName, fk, st.ShortName)
		}
		if err := assignValue(fkField, keyValue); err != nil {
			return fmt.Errorf("relationship %s: %w", nav.AssociationName, err)
		}
	}
	return nil
}

// keyPropertyName returns the first key property of the type.
func keyPropertyName(st *metadata.StructuralType) (string, bool) {
	for _, p := range st.DataProperties {
		if p.IsPartOfKey {
			return p.NameOnServer, true
		}
	}
	return "", false
}

// assignValue sets dst from src, converting where the types allow it and
// allocating through pointers. UUID-style values stringify into string
// fields.
func assignValue(dst reflect.Value, src reflect.Value) error {
	for dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	for src.Kind() == reflect.Ptr {
		if src.IsNil() {
			return fmt.Errorf("cannot assign nil value")
		}
		src = src.Elem()
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()) && dst.Kind() != reflect.String:
		dst.Set(src.Convert(dst.Type()))
	case dst.Kind() == reflect.String:
		if stringer, ok := src.Interface().(fmt.Stringer); ok {
			dst.SetString(stringer.String())
			return nil
		}
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return nil
		}
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	default:
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	return nil
}

// toSnakeCase converts a Go property name to its database column form,
// keeping initialisms together: CustomerID becomes customer_id.
func toSnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
