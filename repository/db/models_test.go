package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Customer struct {
	ID     int64 `gorm:"primaryKey"`
	Name   string
	Orders []Order
}

func (c Customer) GetID() int64 { return c.ID }

type Order struct {
	ID         int `gorm:"primaryKey"`
	CustomerID *int64
	Total      decimal.Decimal `gorm:"type:decimal(20,2)"`
	Note       string
	Lines      []OrderLine
}

func (o Order) GetID() int { return o.ID }

type OrderLine struct {
	ID      int64 `gorm:"primaryKey"`
	OrderID int
	Product string
	Qty     int
}

func (l OrderLine) GetID() int64 { return l.ID }

type Vendor struct {
	ID      int64 `gorm:"primaryKey"`
	Name    string
	POLines []POLine
}

func (v Vendor) GetID() int64 { return v.ID }

type POLine struct {
	ID       int64 `gorm:"primaryKey"`
	VendorID int64
	Item     string
}

func (l POLine) GetID() int64 { return l.ID }

var testModels = MapEntityTypes(&Customer{}, &Order{}, &OrderLine{}, &Vendor{}, &POLine{})

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func openDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

// openUnit opens a unit of work on dsn. Units opened on the same dsn share
// the database while at least one of them is alive.
func openUnit(t *testing.T, dsn string, ops ...OptionFunc) *UnitOfWork {
	t.Helper()

	ops = append([]OptionFunc{WithMaxOpenConns(1)}, ops...)
	u, err := New(openDialector(dsn), testModels, ops...)
	require.NoError(t, err)

	t.Cleanup(func() {
		u.SetPreventDisposal(false)
		_ = u.Dispose()
	})
	return u
}

func orderRepo(t *testing.T, u *UnitOfWork) *Repository[Order, int] {
	t.Helper()

	repo, err := GetRepository[Order, int](u)
	require.NoError(t, err)
	return repo
}

func customerRepo(t *testing.T, u *UnitOfWork) *Repository[Customer, int64] {
	t.Helper()

	repo, err := GetInt64Repository[Customer](u)
	require.NoError(t, err)
	return repo
}
