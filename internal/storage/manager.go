// Package storage wires the table stores behind a single manager.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	badgerstore "github.com/bobmcallan/argus/internal/storage/badger"
)

// Manager owns the embedded database and hands out table stores.
type Manager struct {
	store    *badgerstore.Store
	logger   *common.Logger
	dataPath string

	market    interfaces.MarketStore
	discovery interfaces.DiscoveryStore
	watchlist interfaces.WatchlistStore
	portfolio interfaces.PortfolioStore
	dossier   interfaces.DossierStore
	events    interfaces.EventStore
	jobRuns   interfaces.JobRunStore
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the database under dataPath/badger and builds every
// table store.
func NewManager(cfg *common.Config, logger *common.Logger) (*Manager, error) {
	dataPath := cfg.Storage.Path
	if dataPath == "" {
		dataPath = "./data"
	}

	store, err := badgerstore.NewStore(logger, filepath.Join(dataPath, "badger"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := &Manager{
		store:     store,
		logger:    logger,
		dataPath:  dataPath,
		market:    badgerstore.NewMarketStorage(store, logger),
		discovery: badgerstore.NewDiscoveryStorage(store, logger),
		watchlist: badgerstore.NewWatchlistStorage(store, logger),
		portfolio: badgerstore.NewPortfolioStorage(store, logger),
		dossier:   badgerstore.NewDossierStorage(store, logger),
		events:    badgerstore.NewEventStorage(store, logger),
		jobRuns:   badgerstore.NewJobRunStorage(store, logger),
	}

	logger.Info().Str("data_path", dataPath).Msg("Storage manager initialized")
	return m, nil
}

func (m *Manager) MarketStore() interfaces.MarketStore       { return m.market }
func (m *Manager) DiscoveryStore() interfaces.DiscoveryStore { return m.discovery }
func (m *Manager) WatchlistStore() interfaces.WatchlistStore { return m.watchlist }
func (m *Manager) PortfolioStore() interfaces.PortfolioStore { return m.portfolio }
func (m *Manager) DossierStore() interfaces.DossierStore     { return m.dossier }
func (m *Manager) EventStore() interfaces.EventStore         { return m.events }
func (m *Manager) JobRunStore() interfaces.JobRunStore       { return m.jobRuns }

// DataPath returns the base data directory.
func (m *Manager) DataPath() string { return m.dataPath }

// WriteRaw writes data to dataPath/subdir/key atomically via a temp file
// rename. Key characters outside [a-zA-Z0-9._-] become underscores.
func (m *Manager) WriteRaw(subdir, key string, data []byte) error {
	dir := filepath.Join(m.dataPath, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	name := sanitizeKey(key)
	target := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %s: %w", target, err)
	}
	return nil
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.store.Close()
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
