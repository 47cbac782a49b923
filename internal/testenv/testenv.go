// Package testenv opens throwaway SQLite databases with the domain schema for tests.
package testenv

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/partsdesk/internal/datastore"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/pkg/db"
)

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, datastore.Migrate(context.Background(), gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func NewStore(t *testing.T) (*datastore.Store, *gorm.DB) {
	t.Helper()

	gdb := NewDB(t)
	s, err := datastore.New(gdb)
	require.NoError(t, err)
	return s, gdb
}

type Fixtures struct {
	Supplier  models.Supplier
	Stock     []models.StockItem
	Customers []models.Customer
}

// Seed inserts a supplier, three stock items and two customers.
func Seed(t *testing.T, gdb *gorm.DB) Fixtures {
	t.Helper()

	f := Fixtures{Supplier: models.Supplier{Name: "Bosch SA", Email: "orders@bosch.example"}}
	require.NoError(t, gdb.Create(&f.Supplier).Error)

	f.Stock = []models.StockItem{
		{
			Name:           "Brake pad set",
			OEMNumber:      "BP-1001",
			Manufacturer:   "Bosch",
			EngineNumber:   "2NZ",
			SellingPrice:   decimal.NewFromInt(100),
			QuantityOnHand: 3,
			SupplierID:     &f.Supplier.ID,
		},
		{
			Name:           "Oil filter",
			OEMNumber:      "OF-2002",
			Manufacturer:   "Mann",
			VIN:            "AHT123",
			SellingPrice:   decimal.NewFromInt(50),
			QuantityOnHand: 10,
		},
		{
			Name:           "Brake disc",
			OEMNumber:      "BD-3003",
			Manufacturer:   "Brembo",
			SellingPrice:   decimal.RequireFromString("420.50"),
			QuantityOnHand: 0,
		},
	}
	require.NoError(t, gdb.Create(&f.Stock).Error)

	f.Customers = []models.Customer{
		{Name: "Thabo Nkosi", CompanyName: "Nkosi Motors", Phone: "0821234567"},
		{Name: "Anna Botha", CompanyName: "Botha Panelbeaters"},
	}
	require.NoError(t, gdb.Create(&f.Customers).Error)
	return f
}
