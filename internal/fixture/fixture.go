// Package fixture carries the sample catalog and matching SQLite schema the
// package tests and the CLI's init command share.
package fixture

import (
	_ "embed"

	"github.com/mesh-intelligence/graphfill/internal/catalog"
)

//go:embed catalog.yaml
var CatalogYAML []byte

//go:embed schema.sql
var SchemaSQL string

// Catalog parses and links the sample catalog.
func Catalog() (*catalog.Catalog, error) {
	return catalog.Parse(CatalogYAML)
}

// MustCatalog is Catalog for test setup; it panics on error.
func MustCatalog() *catalog.Catalog {
	c, err := Catalog()
	if err != nil {
		panic(err)
	}
	return c
}
