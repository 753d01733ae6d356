// Package catalog defines the read-only interface to the external product
// catalog. The engine only ever snapshots a product into an order line at
// creation time; catalog storage, search and images live elsewhere.
package catalog

import (
	"context"
	"errors"
)

var ErrUnknownProduct = errors.New("unknown product")

type Product struct {
	Ref   string
	Title string
	Price float64
}

type Lookup interface {
	Product(ctx context.Context, ref string) (Product, error)
}

// Static serves a fixed product set. Used for wiring and tests; a real
// deployment plugs in a client for the catalog service here.
type Static map[string]Product

func (s Static) Product(_ context.Context, ref string) (Product, error) {
	p, ok := s[ref]
	if !ok {
		return Product{}, ErrUnknownProduct
	}
	return p, nil
}
