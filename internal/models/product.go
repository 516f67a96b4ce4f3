package models

import "github.com/google/uuid"

// Product is a catalog item. Catalog CRUD lives outside this service; the
// core only reads product rows for pricing snapshots and stock references.
type Product struct {
	BaseModel
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit"`
	IsActive bool    `gorm:"default:true" json:"is_active"`
}

// Discount types.
const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
	DiscountTypeBuyXGetX   = "BUYXGETX"
)

// Discount is a read-only promotion input. For PERCENTAGE the value is the
// percent off the line total, for FIXED a flat amount, for BUYXGETX the bonus
// quantity granted on the matching line.
type Discount struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
}
