package vmdl

import (
	"context"

	"github.com/google/uuid"

	"vacme/internal/vmdl/models"
)

// mpoxService reports Monkeypox vaccinations. Mpox dossiers only use
// booster-style dossier entries, so a single generic query bounded by the
// chunk limit suffices, and the registry schema has no Medstat field.
type mpoxService struct {
	runner batchRunner
}

func newMpoxService(deps Deps) *mpoxService {
	return &mpoxService{runner: newBatchRunner(models.DiseaseMpox, deps)}
}

func (s *mpoxService) Disease() models.Disease { return models.DiseaseMpox }

func (s *mpoxService) RunBatch(ctx context.Context) (int, error) {
	return s.runner.run(ctx, s.fetchPending, s.enrich)
}

func (s *mpoxService) fetchPending(ctx context.Context, limit int) ([]models.PendingRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.runner.deps.Store.PendingByDossierEntry(ctx, models.DiseaseMpox, limit)
}

func (s *mpoxService) enrich(rec models.PendingRecord, entry *models.UploadEntry) {
	entry.Kanton = s.runner.deps.Resolver.Kanton(rec.PLZ)
}

func (s *mpoxService) DeleteRecord(ctx context.Context, impfungID uuid.UUID) error {
	return s.runner.deleteRecord(ctx, impfungID)
}

func (s *mpoxService) WasEverSent(ctx context.Context, impfungID uuid.UUID) (bool, error) {
	return s.runner.deps.Store.WasEverSent(ctx, impfungID)
}
