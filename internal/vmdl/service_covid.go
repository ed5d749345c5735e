package vmdl

import (
	"context"

	"github.com/google/uuid"

	"vacme/internal/vmdl/models"
	"vacme/internal/vmdl/store"
)

// covidService reports Covid vaccinations. The Covid schema supports two
// fixed dose slots plus open-ended boosters, so the pending query prefers the
// cheap direct appointment join and falls back to the generic dossier-entry
// table for whatever quota remains. Covid additionally reports the Medstat
// region code.
type covidService struct {
	runner     batchRunner
	threeQuery bool
}

func newCovidService(deps Deps) *covidService {
	return &covidService{
		runner:     newBatchRunner(models.DiseaseCovid, deps),
		threeQuery: deps.ThreeQueryStrategy,
	}
}

func (s *covidService) Disease() models.Disease { return models.DiseaseCovid }

func (s *covidService) RunBatch(ctx context.Context) (int, error) {
	return s.runner.run(ctx, s.fetchPending, s.enrich)
}

// fetchPending fills the quota from the direct dose-1/2 appointment join
// first, then from the generic dossier-entry table. No query is issued once
// the quota is exhausted.
func (s *covidService) fetchPending(ctx context.Context, limit int) ([]models.PendingRecord, error) {
	st := s.runner.deps.Store
	var records []models.PendingRecord

	if s.threeQuery {
		dose1, err := st.PendingByTermin(ctx, models.DiseaseCovid, store.TerminOne, limit)
		if err != nil {
			return nil, err
		}
		records = append(records, dose1...)

		if remaining := limit - len(records); remaining > 0 {
			dose2, err := st.PendingByTermin(ctx, models.DiseaseCovid, store.TerminTwo, remaining)
			if err != nil {
				return nil, err
			}
			records = append(records, dose2...)
		}
	} else {
		both, err := st.PendingByTermin(ctx, models.DiseaseCovid, store.TerminOneOrTwo, limit)
		if err != nil {
			return nil, err
		}
		records = append(records, both...)
	}

	if remaining := limit - len(records); remaining > 0 {
		boosters, err := st.PendingByDossierEntry(ctx, models.DiseaseCovid, remaining)
		if err != nil {
			return nil, err
		}
		records = append(records, boosters...)
	}
	return records, nil
}

func (s *covidService) enrich(rec models.PendingRecord, entry *models.UploadEntry) {
	resolver := s.runner.deps.Resolver
	entry.Kanton = resolver.Kanton(rec.PLZ)
	entry.Medstat = resolver.Medstat(rec.PLZ, rec.ForeignAddress)
}

func (s *covidService) DeleteRecord(ctx context.Context, impfungID uuid.UUID) error {
	return s.runner.deleteRecord(ctx, impfungID)
}

func (s *covidService) WasEverSent(ctx context.Context, impfungID uuid.UUID) (bool, error) {
	return s.runner.deps.Store.WasEverSent(ctx, impfungID)
}
