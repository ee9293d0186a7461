package cli

import (
	"fmt"

	"github.com/mesh-intelligence/graphfill/internal/catalog"
	"github.com/mesh-intelligence/graphfill/internal/filler"
	"github.com/mesh-intelligence/graphfill/internal/keygen"
	"github.com/mesh-intelligence/graphfill/internal/sqlite"
)

// store is an attached backend with the catalog it serves.
type store struct {
	catalog *catalog.Catalog
	backend *sqlite.Backend
}

// openStore loads the configured catalog and attaches the SQLite backend.
// The caller must call close.
func (a *app) openStore() (*store, error) {
	cat, err := catalog.Load(a.config.CatalogFile)
	if err != nil {
		return nil, userError(fmt.Errorf("load catalog: %w", err))
	}
	backend := sqlite.NewBackend(cat, sqlite.WithLogger(a.logger))
	if err := backend.Attach(a.config); err != nil {
		return nil, sysError(fmt.Errorf("attach backend: %w", err))
	}
	return &store{catalog: cat, backend: backend}, nil
}

// session starts a fill session on s with the configured key generator.
func (a *app) session(s *store) (*filler.Filler, error) {
	keys, err := keygen.New(a.config.KeyGenerator)
	if err != nil {
		return nil, userError(err)
	}
	return filler.New(s.backend, s.catalog,
		filler.WithLogger(a.logger),
		filler.WithKeyGenerator(keys)), nil
}

func (s *store) close() error {
	return s.backend.Detach()
}
