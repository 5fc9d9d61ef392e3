package models

import "time"

// Product is a catalog article that gets mirrored to shelf labels.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Unit      string    `json:"unit,omitempty"`
	Barcode   string    `json:"barcode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceUpdate is one entry of a bulk price push to a catalog target.
type PriceUpdate struct {
	Code  string  `json:"code"`
	Price float64 `json:"price"`
}
