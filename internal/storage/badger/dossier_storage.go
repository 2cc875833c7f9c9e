package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

type dossierStorage struct {
	store  *Store
	logger *common.Logger
}

// NewDossierStorage creates the analysis artifact store.
func NewDossierStorage(store *Store, logger *common.Logger) *dossierStorage {
	return &dossierStorage{store: store, logger: logger}
}

func (s *dossierStorage) SaveScorecard(_ context.Context, card *models.QuantScorecard) error {
	lock := s.store.tableLock("scorecards")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(card.Symbol, card.GeneratedAt.UTC().Format(time.RFC3339))
	return wrapStoreErr("scorecards", "upsert", s.store.db.Upsert(key, *card))
}

func (s *dossierStorage) LatestScorecard(_ context.Context, symbol string) (*models.QuantScorecard, error) {
	var cards []models.QuantScorecard
	if err := s.store.db.Find(&cards, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("scorecards", "find", err)
	}
	if len(cards) == 0 {
		return nil, wrapStoreErr("scorecards", "latest", badgerhold.ErrNotFound)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].GeneratedAt.After(cards[j].GeneratedAt) })
	return &cards[0], nil
}

// SaveDossier stores a new dossier version. The version number is assigned
// here: one past the current latest for the symbol.
func (s *dossierStorage) SaveDossier(_ context.Context, dossier *models.TickerDossier) error {
	lock := s.store.tableLock("dossiers")
	lock.Lock()
	defer lock.Unlock()

	if dossier.Version == 0 {
		var existing []models.TickerDossier
		if err := s.store.db.Find(&existing, badgerhold.Where("Symbol").Eq(dossier.Symbol)); err != nil {
			return wrapStoreErr("dossiers", "find", err)
		}
		max := 0
		for _, d := range existing {
			if d.Version > max {
				max = d.Version
			}
		}
		dossier.Version = max + 1
	}

	key := compositeKey(dossier.Symbol, versionKey(dossier.Version))
	return wrapStoreErr("dossiers", "upsert", s.store.db.Upsert(key, *dossier))
}

func (s *dossierStorage) LatestDossier(_ context.Context, symbol string) (*models.TickerDossier, error) {
	dossiers, err := s.listDossiers(symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(dossiers) == 0 {
		return nil, wrapStoreErr("dossiers", "latest", badgerhold.ErrNotFound)
	}
	return dossiers[0], nil
}

func (s *dossierStorage) ListDossiers(_ context.Context, symbol string, limit int) ([]*models.TickerDossier, error) {
	return s.listDossiers(symbol, limit)
}

func (s *dossierStorage) listDossiers(symbol string, limit int) ([]*models.TickerDossier, error) {
	var dossiers []models.TickerDossier
	if err := s.store.db.Find(&dossiers, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("dossiers", "find", err)
	}
	sort.Slice(dossiers, func(i, j int) bool { return dossiers[i].Version > dossiers[j].Version })
	if limit > 0 && len(dossiers) > limit {
		dossiers = dossiers[:limit]
	}
	out := make([]*models.TickerDossier, len(dossiers))
	for i := range dossiers {
		out[i] = &dossiers[i]
	}
	return out, nil
}

func versionKey(v int) string {
	// Zero-padded so lexicographic key order matches version order
	return fmt.Sprintf("%06d", v)
}
