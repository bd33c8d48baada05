package models

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StoreID     uint   `json:"store_id" gorm:"not null;index"`
	Store       Store  `json:"store,omitempty" gorm:"foreignKey:StoreID"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"index"`

	Price float64 `json:"price" gorm:"not null"`
	Unit  string  `json:"unit" gorm:"default:'pcs'"`

	// StockQuantity never goes negative: decrements happen with a guarded
	// UPDATE (see handlers), restores add back the ordered quantity.
	StockQuantity int `json:"stock_quantity" gorm:"not null;default:0"`

	Images []string `json:"images" gorm:"serializer:json"`

	Rating      float64 `json:"rating" gorm:"default:0"`
	ReviewCount int     `json:"review_count" gorm:"default:0"`

	IsFeatured bool `json:"is_featured" gorm:"default:false"`
	IsActive   bool `json:"is_active" gorm:"default:true;index"`

	// Derived, never stored.
	IsAvailable bool `json:"is_available" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AfterFind derives availability from stock so every read path agrees.
func (p *Product) AfterFind(*gorm.DB) error {
	p.Refresh()
	return nil
}

// Refresh recomputes the derived availability flag.
func (p *Product) Refresh() {
	p.IsAvailable = p.IsActive && p.StockQuantity > 0
}

// ApplyRating folds one new review into the running average.
func (p *Product) ApplyRating(rating int) {
	total := p.Rating*float64(p.ReviewCount) + float64(rating)
	p.ReviewCount++
	p.Rating = total / float64(p.ReviewCount)
}

type Category struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	ImageURL  string    `json:"image_url"`
	SortOrder int       `json:"sort_order" gorm:"default:0"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
