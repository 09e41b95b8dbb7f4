package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	breeze "github.com/cseils/breeze.tooling"
)

// OrderStatus is the demo model's enumeration.
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderShipped
	OrderDelivered
)

func (OrderStatus) EnumMembers() []string {
	return []string{"Pending", "Shipped", "Delivered"}
}

// Customer and Order form the demo model breezectl builds its document from.
type Customer struct {
	EntityKey int64   `gorm:"primaryKey;autoIncrement"`
	Name      string  `breeze:"required,maxLength=100"`
	Orders    []Order `breeze:"inverseProperty(Customer)" gorm:"foreignKey:CustomerID"`
}

type Order struct {
	EntityKey  int64 `gorm:"primaryKey;autoIncrement"`
	CustomerID int64
	Total      decimal.Decimal `gorm:"type:numeric"`
	Status     OrderStatus
	PlacedAt   time.Time
	Customer   *Customer `breeze:"foreignKey(CustomerID)" gorm:"foreignKey:CustomerID"`
}

func newDemoCmd() *cobra.Command {
	var (
		outPath string
		dialect string
		dsn     string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Build the demo model's metadata document, optionally saving through a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := breeze.NewProvider(breeze.ProviderConfig{})
			if err := provider.RegisterEntities(Customer{}, Order{}); err != nil {
				return err
			}
			doc, err := provider.Metadata(cmd.Context())
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal document: %w", err)
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("write document: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(data))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}

			if dsn == "" {
				return nil
			}
			return runDemoSave(cmd, provider, dialect, dsn)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the document to a file instead of stdout")
	cmd.Flags().StringVar(&dialect, "dialect", "sqlite", "database dialect for the demo save (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN; when set, a demo save runs through the pipeline")
	return cmd
}

// runDemoSave persists one customer and one linked order, exercising key
// generation and the relationship fixup against a real database.
func runDemoSave(cmd *cobra.Command, provider *breeze.Provider, dialect, dsn string) error {
	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unknown dialect %q (want sqlite or postgres)", dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.AutoMigrate(&Customer{}, &Order{}); err != nil {
		return fmt.Errorf("migrate demo model: %w", err)
	}
	if err := provider.SetDB(db); err != nil {
		return err
	}

	customer := &Customer{Name: "Demo Customer"}
	order := &Order{
		Total:    decimal.NewFromFloat(42.50),
		Status:   OrderPending,
		PlacedAt: time.Now().UTC(),
		Customer: customer,
	}
	result, err := provider.SaveChanges(cmd.Context(), []breeze.EntityInfo{
		{Entity: customer, State: breeze.StateAdded},
		{Entity: order, State: breeze.StateAdded},
	})
	if err != nil {
		return fmt.Errorf("demo save: %w", err)
	}

	ok := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s saved %d entities via %s\n",
		ok("ok"), len(result.Entities), dialect)
	for _, km := range result.KeyMappings {
		fmt.Fprintf(cmd.OutOrStdout(), "  key %v -> %v (%s)\n", km.TempValue, km.RealValue, km.EntityTypeName)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  order %d linked to customer %d\n", order.EntityKey, order.CustomerID)
	return nil
}
