package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"

	SaleTypeCash   = "cash"
	SaleTypeLaybye = "laybye"
	SaleTypeCredit = "credit"

	RoleAdmin = "admin"
	RoleClerk = "clerk"
)

type Supplier struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"not null"                 json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CarModel struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Make  string `gorm:"not null"                 json:"make"`
	Model string `gorm:"not null"                 json:"model"`
	Year  int    `json:"year"`
}

type StockItem struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"            json:"id"`
	Name           string          `gorm:"not null"                            json:"name"`
	Description    string          `json:"description"`
	OEMNumber      string          `gorm:"column:oem_number;index"             json:"OEM_number"`
	Manufacturer   string          `json:"manufacturer"`
	VIN            string          `gorm:"column:vin"                          json:"VIN"`
	EngineNumber   string          `json:"engine_number"`
	ModelRange     string          `json:"model_range"`
	SellingPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"         json:"selling_price"`
	QuantityOnHand int             `gorm:"not null;default:0"                  json:"quantity_on_hand"`
	SupplierID     *uint           `json:"supplier_id"`
	Supplier       *Supplier       `gorm:"foreignKey:SupplierID"               json:"supplier,omitempty"`
	CarModelID     *uint           `json:"car_model_id"`
	CarModel       *CarModel       `gorm:"foreignKey:CarModelID"               json:"car_model,omitempty"`
}

func (StockItem) TableName() string {
	return "stock"
}

type Customer struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

type SalesOrder struct {
	ID          uint             `gorm:"primaryKey;autoIncrement"       json:"id"`
	OrderDate   time.Time        `json:"order_date"`
	CustomerID  *uint            `gorm:"index"                          json:"customer_id"`
	Customer    *Customer        `gorm:"foreignKey:CustomerID"          json:"customer,omitempty"`
	Status      string           `gorm:"not null;default:pending"       json:"status"`
	SaleType    string           `gorm:"not null;default:cash"          json:"sale_type"`
	TotalAmount decimal.Decimal  `gorm:"type:numeric(12,2);not null"    json:"total_amount"`
	CreatedAt   time.Time        `json:"created_at"`
	Items       []SalesOrderItem `gorm:"foreignKey:SalesOrderID"        json:"items,omitempty"`
}

type SalesOrderItem struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"        json:"id"`
	SalesOrderID uint            `gorm:"index;not null"                  json:"sales_order_id"`
	ProductID    uint            `gorm:"not null"                        json:"product_id"`
	Quantity     int             `gorm:"not null;check:quantity>0"       json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"     json:"unit_price"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type VATRate struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name       string          `gorm:"not null"                  json:"name"`
	Percentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percentage"`
}

func (VATRate) TableName() string {
	return "vat_rates"
}

var maxPercentage = decimal.NewFromInt(100)

func (v VATRate) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("name is required")
	}
	if v.Percentage.IsNegative() || v.Percentage.GreaterThan(maxPercentage) {
		return errors.New("percentage must be between 0 and 100")
	}
	return nil
}

// Validator is implemented by models whose rows carry rules beyond column types.
// The datastore checks them on every write.
type Validator interface {
	Validate() error
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Supplier{},
		&CarModel{},
		&StockItem{},
		&Customer{},
		&SalesOrder{},
		&SalesOrderItem{},
		&User{},
		&VATRate{},
	}
}
