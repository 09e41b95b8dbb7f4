package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cseils/breeze.tooling/internal/metadata"
)

type saveCustomer struct {
	EntityKey int64 `gorm:"primaryKey;autoIncrement"`
	Name      string
	Orders    []saveOrder `breeze:"inverseProperty(Customer)" gorm:"foreignKey:CustomerID"`
}

type saveOrder struct {
	EntityKey  int64 `gorm:"primaryKey;autoIncrement"`
	CustomerID int64
	Total      float64
	Customer   *saveCustomer `breeze:"foreignKey(CustomerID)" gorm:"foreignKey:CustomerID"`
}

type saveSession struct {
	EntityKey string `gorm:"primaryKey"`
	Note      string
}

type saveTicket struct {
	EntityKey string `gorm:"primaryKey"`
	Subject   string
}

func (saveTicket) KeyGeneratorName() string { return "sequence" }

type saveNote struct {
	EntityKey int64 `gorm:"primaryKey;autoIncrement"`
	Body      string
	Revision  int `breeze:"concurrencyCheck"`
}

var (
	hookObservedTransaction bool
	hookRowsInserted        int
)

type auditedItem struct {
	EntityKey int64 `gorm:"primaryKey;autoIncrement"`
	Name      string
	Abort     bool `breeze:"-" gorm:"-"`
}

func (a *auditedItem) BeforeSave(ctx context.Context) error {
	tx, ok := TransactionFromContext(ctx)
	if !ok {
		return fmt.Errorf("transaction not available in context")
	}
	// query through the shared transaction to prove it is live
	var pending int
	if err := tx.QueryRow("SELECT count(*) FROM audited_items").Scan(&pending); err != nil {
		return fmt.Errorf("query through transaction: %w", err)
	}
	hookObservedTransaction = true
	if a.Abort {
		return fmt.Errorf("abort save for test")
	}
	return nil
}

func (a *auditedItem) AfterSave(context.Context) error {
	hookRowsInserted++
	return nil
}

func openTestDB(t *testing.T, dsn string, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func buildDoc(t *testing.T, policy metadata.NamingPolicy, entities ...interface{}) *metadata.Document {
	t.Helper()
	set, err := metadata.NewTypeSetOf(entities...)
	if err != nil {
		t.Fatalf("NewTypeSetOf() error: %v", err)
	}
	doc, err := metadata.Build(set, policy)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return doc
}

func newTestSaver(t *testing.T, db *gorm.DB, doc *metadata.Document) *Saver {
	t.Helper()
	saver, err := NewSaver(db, doc, slog.Default())
	if err != nil {
		t.Fatalf("NewSaver() error: %v", err)
	}
	return saver
}

func TestSave_InsertWithRelationshipFixup(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveCustomer{}, &saveOrder{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, saveCustomer{}, saveOrder{})
	saver := newTestSaver(t, db, doc)

	customer := &saveCustomer{Name: "Acme"}
	order := &saveOrder{Total: 99.50, Customer: customer}

	result, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: customer, State: StateAdded},
		{Entity: order, State: StateAdded},
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("result has %d entities, want 2", len(result.Entities))
	}
	if customer.EntityKey == 0 {
		t.Fatal("identity key was not assigned on insert")
	}
	// the fixup must carry the database-assigned key into the foreign key column
	if order.CustomerID != customer.EntityKey {
		t.Errorf("order.CustomerID = %d, want %d", order.CustomerID, customer.EntityKey)
	}

	var persisted saveOrder
	if err := db.First(&persisted, order.EntityKey).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if persisted.CustomerID != customer.EntityKey {
		t.Errorf("persisted CustomerID = %d, want %d", persisted.CustomerID, customer.EntityKey)
	}

	found := false
	for _, km := range result.KeyMappings {
		if km.EntityTypeName == doc.StructuralTypes[0].TypeKey() {
			found = true
			if km.RealValue != customer.EntityKey {
				t.Errorf("KeyMapping.RealValue = %v, want %d", km.RealValue, customer.EntityKey)
			}
		}
	}
	if !found {
		t.Errorf("no KeyMapping recorded for the identity insert: %+v", result.KeyMappings)
	}
}

func TestSave_KeyGeneratorAssignsKey(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveSession{})
	// ConventionNamingPolicy switches string keys to KeyGenerator mode
	doc := buildDoc(t, metadata.ConventionNamingPolicy{}, saveSession{})
	saver := newTestSaver(t, db, doc)

	session := &saveSession{Note: "first"}
	result, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: session, State: StateAdded},
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if len(session.EntityKey) != 36 {
		t.Errorf("EntityKey = %q, want a generated uuid string", session.EntityKey)
	}
	if len(result.KeyMappings) != 1 {
		t.Fatalf("KeyMappings has %d entries, want 1", len(result.KeyMappings))
	}
	km := result.KeyMappings[0]
	if km.TempValue != "" {
		t.Errorf("TempValue = %v, want the empty client value", km.TempValue)
	}
	if km.RealValue != session.EntityKey {
		t.Errorf("RealValue = %v, want %q", km.RealValue, session.EntityKey)
	}
}

func TestSave_CustomKeyGenerator(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveSession{})
	doc := buildDoc(t, metadata.ConventionNamingPolicy{}, saveSession{})
	saver := newTestSaver(t, db, doc)

	if err := saver.RegisterKeyGenerator("uuid", func(context.Context) (interface{}, error) {
		return "fixed-key", nil
	}); err != nil {
		t.Fatalf("RegisterKeyGenerator() error: %v", err)
	}
	session := &saveSession{Note: "custom"}
	if _, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: session, State: StateAdded},
	}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if session.EntityKey != "fixed-key" {
		t.Errorf("EntityKey = %q, want fixed-key", session.EntityKey)
	}
}

func TestSave_NamedKeyGeneratorResolved(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveTicket{})
	doc := buildDoc(t, metadata.ConventionNamingPolicy{}, saveTicket{})
	saver := newTestSaver(t, db, doc)

	next := 0
	if err := saver.RegisterKeyGenerator("sequence", func(context.Context) (interface{}, error) {
		next++
		return fmt.Sprintf("ticket-%d", next), nil
	}); err != nil {
		t.Fatalf("RegisterKeyGenerator() error: %v", err)
	}

	first := &saveTicket{Subject: "printer"}
	second := &saveTicket{Subject: "monitor"}
	if _, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: first, State: StateAdded},
		{Entity: second, State: StateAdded},
	}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if first.EntityKey != "ticket-1" || second.EntityKey != "ticket-2" {
		t.Errorf("keys = %q, %q, want ticket-1, ticket-2", first.EntityKey, second.EntityKey)
	}
}

func TestSave_NamedKeyGeneratorMissing(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveTicket{})
	doc := buildDoc(t, metadata.ConventionNamingPolicy{}, saveTicket{})
	saver := newTestSaver(t, db, doc)

	_, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: &saveTicket{Subject: "orphan"}, State: StateAdded},
	})
	if err == nil || !strings.Contains(err.Error(), `"sequence"`) {
		t.Fatalf("Save() error = %v, want missing sequence generator", err)
	}
}

func TestSave_UpdateHonorsConcurrencyGuard(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveNote{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, saveNote{})
	saver := newTestSaver(t, db, doc)

	note := &saveNote{Body: "draft", Revision: 1}
	if err := db.Create(note).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}

	stale := &saveNote{EntityKey: note.EntityKey, Body: "stale edit", Revision: 2}
	_, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: stale, State: StateModified, OriginalValues: map[string]interface{}{"Revision": 99}},
	})
	if !errors.Is(err, ErrConcurrencyViolation) {
		t.Fatalf("Save() error = %v, want ErrConcurrencyViolation", err)
	}

	fresh := &saveNote{EntityKey: note.EntityKey, Body: "good edit", Revision: 2}
	if _, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: fresh, State: StateModified, OriginalValues: map[string]interface{}{"Revision": 1}},
	}); err != nil {
		t.Fatalf("Save() with matching original error: %v", err)
	}

	var persisted saveNote
	if err := db.First(&persisted, note.EntityKey).Error; err != nil {
		t.Fatalf("reload note: %v", err)
	}
	if persisted.Body != "good edit" || persisted.Revision != 2 {
		t.Errorf("persisted note = %+v, want the guarded update applied", persisted)
	}
}

func TestSave_DeleteRemovesRow(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveNote{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, saveNote{})
	saver := newTestSaver(t, db, doc)

	note := &saveNote{Body: "short lived"}
	if err := db.Create(note).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	if _, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: &saveNote{EntityKey: note.EntityKey}, State: StateDeleted},
	}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	var count int64
	if err := db.Model(&saveNote{}).Count(&count).Error; err != nil {
		t.Fatalf("count notes: %v", err)
	}
	if count != 0 {
		t.Errorf("note count = %d after delete, want 0", count)
	}
}

func TestSave_UnknownEntityRejected(t *testing.T) {
	db := openTestDB(t, ":memory:", &saveNote{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, saveNote{})
	saver := newTestSaver(t, db, doc)

	type stranger struct {
		EntityKey int64
	}
	_, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: &stranger{}, State: StateAdded},
	})
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Save() error = %v, want ErrUnknownEntity", err)
	}
}

func TestSave_HookAbortRollsBackEverything(t *testing.T) {
	hookObservedTransaction = false
	hookRowsInserted = 0

	db := openTestDB(t, ":memory:", &auditedItem{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, auditedItem{})
	saver := newTestSaver(t, db, doc)

	_, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: &auditedItem{Name: "kept?"}, State: StateAdded},
		{Entity: &auditedItem{Name: "poison", Abort: true}, State: StateAdded},
	})
	if err == nil {
		t.Fatal("Save() should fail when a hook aborts")
	}
	if !hookObservedTransaction {
		t.Error("hook did not observe the shared transaction")
	}
	var count int64
	if err := db.Model(&auditedItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Errorf("item count = %d after rollback, want 0", count)
	}
}

func TestSave_RawDatabaseVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	db := openTestDB(t, path, &saveCustomer{}, &saveOrder{})
	doc := buildDoc(t, metadata.DefaultNamingPolicy{}, saveCustomer{}, saveOrder{})
	saver := newTestSaver(t, db, doc)

	customer := &saveCustomer{Name: "Raw Inc"}
	if _, err := saver.Save(context.Background(), []EntityInfo{
		{Entity: customer, State: StateAdded},
		{Entity: &saveOrder{Total: 12, Customer: customer}, State: StateAdded},
	}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw database: %v", err)
	}
	defer raw.Close()

	var customerID int64
	if err := raw.QueryRow("SELECT customer_id FROM save_orders LIMIT 1").Scan(&customerID); err != nil {
		t.Fatalf("query order row: %v", err)
	}
	if customerID != customer.EntityKey {
		t.Errorf("customer_id column = %d, want %d", customerID, customer.EntityKey)
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"CustomerID": "customer_id",
		"Revision":   "revision",
		"RowVersion": "row_version",
		"ID":         "id",
	}
	for in, want := range cases {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
