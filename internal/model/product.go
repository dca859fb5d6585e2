package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item. Code is the external identifier and is
// immutable once created; name and price are mutable.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
