package catalog

import "errors"

var (
	ErrNotFound = errors.New("product not found")
	// ErrStorage wraps every failure to read or persist the catalog document.
	ErrStorage = errors.New("catalog storage error")
)

// Product is one catalog record. Images hold base64-encoded blobs.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	CreatedAt   Timestamp `json:"created_at"`
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Stock       *int      `json:"stock,omitempty"`
	Images      *[]string `json:"images,omitempty"`
}

func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
	if pp.Images != nil {
		p.Images = append([]string{}, (*pp.Images)...)
	}
}

func cloneProducts(src []Product) []Product {
	out := make([]Product, len(src))
	for i, p := range src {
		out[i] = cloneProduct(p)
	}
	return out
}

func cloneProduct(p Product) Product {
	if p.Images != nil {
		p.Images = append([]string{}, p.Images...)
	}
	return p
}
