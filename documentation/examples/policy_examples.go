//go:build example

// Package main demonstrates naming policies and save hooks in breeze.tooling.
//
// This example shows how to:
// 1. Implement a custom NamingPolicy for resource naming and key selection
// 2. Register a custom key generator for KeyGenerator-mode entities
// 3. Use save hooks with the shared transaction
// 4. Serve the metadata document fingerprint for client cache validation
//
// Note: This is a standalone example file demonstrating the public API.
package main

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"

	breeze "github.com/cseils/breeze.tooling"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Example 1: Custom NamingPolicy
// ==============================

// LegacyPolicy maps entities onto an existing API surface: resource names
// carry a fixed prefix, keys are columns named Code, and the Stamp column
// carries the optimistic concurrency version.
type LegacyPolicy struct{}

func (LegacyPolicy) AutoGeneratedKeyType(t reflect.Type) breeze.AutoGeneratedKeyType {
	// legacy rows carry client-assigned codes
	return breeze.AutoKeyNone
}

func (LegacyPolicy) ResourceName(t reflect.Type) string {
	return "legacy_" + strings.ToLower(t.Name()) + "s"
}

func (LegacyPolicy) IsKeyProperty(_ reflect.Type, field reflect.StructField) bool {
	return field.Name == "Code"
}

func (LegacyPolicy) IsVersionProperty(_ reflect.Type, field reflect.StructField) bool {
	return field.Name == "Stamp"
}

// Example 2: Entities with save hooks
// ===================================

type Invoice struct {
	Code   string `gorm:"primaryKey"`
	Amount float64
	Stamp  int64
}

// BeforeSave validates the invoice and writes an audit row inside the same
// transaction as the save itself. Returning an error rolls everything back.
func (i *Invoice) BeforeSave(ctx context.Context) error {
	if i.Amount < 0 {
		return fmt.Errorf("invoice amount cannot be negative")
	}
	tx, ok := breeze.TransactionFromContext(ctx)
	if !ok {
		return fmt.Errorf("transaction unavailable")
	}
	_, err := tx.Exec("INSERT INTO invoice_audits (code, action) VALUES (?, ?)", i.Code, "SAVE")
	return err
}

type InvoiceAudit struct {
	ID     uint `gorm:"primaryKey"`
	Code   string
	Action string
}

func main() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&Invoice{}, &InvoiceAudit{}); err != nil {
		log.Fatal(err)
	}

	provider := breeze.NewProvider(breeze.ProviderConfig{
		NamingPolicy: LegacyPolicy{},
	})
	if err := provider.RegisterEntity(Invoice{}); err != nil {
		log.Fatal(err)
	}

	// Example 3: custom key generator for KeyGenerator-mode types
	if err := provider.RegisterKeyGenerator("uuid", func(context.Context) (interface{}, error) {
		return "inv-" + uuid.NewString(), nil
	}); err != nil {
		log.Fatal(err)
	}

	// Example 4: metadata document and its fingerprint
	doc, err := provider.Metadata(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fingerprint, err := provider.Fingerprint(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("document describes %d types, fingerprint %s\n",
		len(doc.StructuralTypes), fingerprint)
	for resource, typeKey := range doc.ResourceEntityTypeMap {
		fmt.Printf("  %s -> %s\n", resource, typeKey)
	}

	// Saving through the provider runs the hooks above in one transaction.
	if err := provider.SetDB(db); err != nil {
		log.Fatal(err)
	}
	result, err := provider.SaveChanges(context.Background(), []breeze.EntityInfo{
		{Entity: &Invoice{Code: "INV-1", Amount: 250}, State: breeze.StateAdded},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("saved %d entities\n", len(result.Entities))
}
