package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item listed by a user.
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	// ImageURL is the external reference of the stored image. ImageKey is the
	// object-storage key it was uploaded under; rows without a key predate it.
	ImageURL  string    `json:"image_url,omitempty" gorm:"type:varchar(255)"`
	ImageKey  string    `json:"image_key,omitempty" gorm:"type:varchar(255)"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	User      *User     `json:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	SignedImageURL string `json:"signed_image_url,omitempty" gorm:"-"`
}

// HasImage reports whether the product references a stored image.
func (p *Product) HasImage() bool {
	return p.ImageKey != "" || p.ImageURL != ""
}
