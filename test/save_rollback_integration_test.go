package breeze_test

import (
	"context"
	"fmt"
	"testing"

	breeze "github.com/cseils/breeze.tooling"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type RollbackEntity struct {
	EntityKey int64 `gorm:"primaryKey;autoIncrement"`
	Name      string
}

type RollbackAudit struct {
	ID      uint `gorm:"primaryKey"`
	Counter int
}

var (
	rollbackHookObserved  bool
	rollbackHookAttempted bool
)

func (e *RollbackEntity) BeforeSave(ctx context.Context) error {
	rollbackHookAttempted = true
	tx, ok := breeze.TransactionFromContext(ctx)
	if !ok {
		return fmt.Errorf("transaction not available in context")
	}
	rollbackHookObserved = true
	// Write through the shared transaction, then abort; both the audit
	// update and the entity write must roll back together.
	if _, err := tx.Exec("UPDATE rollback_audits SET counter = counter + 1 WHERE id = ?", 1); err != nil {
		return err
	}
	return fmt.Errorf("abort save for test")
}

func resetRollbackHookFlags() {
	rollbackHookObserved = false
	rollbackHookAttempted = false
}

func TestSaveHookRollsBackOnAbort(t *testing.T) {
	resetRollbackHookFlags()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&RollbackEntity{}, &RollbackAudit{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&RollbackAudit{ID: 1, Counter: 0}).Error; err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	provider := breeze.NewProvider(breeze.ProviderConfig{})
	if err := provider.RegisterEntity(RollbackEntity{}); err != nil {
		t.Fatalf("register entity: %v", err)
	}
	if err := provider.SetDB(db); err != nil {
		t.Fatalf("SetDB() error: %v", err)
	}

	_, err = provider.SaveChanges(context.Background(), []breeze.EntityInfo{
		{Entity: &RollbackEntity{Name: "doomed"}, State: breeze.StateAdded},
	})
	if err == nil {
		t.Fatal("SaveChanges() should fail when a hook aborts")
	}

	if !rollbackHookAttempted {
		t.Fatal("hook did not execute")
	}
	if !rollbackHookObserved {
		t.Fatal("hook did not observe transaction")
	}

	var count int64
	if err := db.Model(&RollbackEntity{}).Count(&count).Error; err != nil {
		t.Fatalf("count entities: %v", err)
	}
	if count != 0 {
		t.Fatalf("entity insert was committed despite rollback: count=%d", count)
	}

	var audit RollbackAudit
	if err := db.First(&audit, 1).Error; err != nil {
		t.Fatalf("reload audit: %v", err)
	}
	if audit.Counter != 0 {
		t.Fatalf("audit update was committed despite rollback: counter=%d", audit.Counter)
	}
}
