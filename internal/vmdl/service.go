package vmdl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vacme/internal/geo"
	"vacme/internal/vmdl/metrics"
	"vacme/internal/vmdl/models"
	"vacme/internal/vmdl/store"
)

// Service runs the registry reporting cycle for one disease: query pending
// records in bounded batches, enrich them, upload them and mark them
// reported.
type Service interface {
	Disease() models.Disease

	// RunBatch executes one full cycle and returns the number of records
	// delivered. A delivery failure aborts the cycle without marking
	// anything; the next run re-queries the same records.
	RunBatch(ctx context.Context) (int, error)

	// DeleteRecord synchronously removes a single previously uploaded
	// record from the registry, independent of the batch cycle.
	DeleteRecord(ctx context.Context, impfungID uuid.UUID) error

	// WasEverSent reports whether the record was delivered at any point in
	// time, including deliveries later cleared by a correction.
	WasEverSent(ctx context.Context, impfungID uuid.UUID) (bool, error)
}

// Deps bundles what every disease service needs. Metrics may be nil.
type Deps struct {
	Store    store.PendingStore
	Client   Client
	Resolver *geo.Resolver
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	ReportingUnitID string
	ChunkLimit      int

	// ThreeQueryStrategy only affects the Covid service.
	ThreeQueryStrategy bool
}

// batchRunner is the shared enrich-upload-mark pipeline. Each disease service
// supplies its fetch strategy and enrichment rule.
type batchRunner struct {
	disease models.Disease
	deps    Deps
	now     func() time.Time
}

func newBatchRunner(disease models.Disease, deps Deps) batchRunner {
	return batchRunner{disease: disease, deps: deps, now: time.Now}
}

func (r *batchRunner) run(
	ctx context.Context,
	fetch func(ctx context.Context, limit int) ([]models.PendingRecord, error),
	enrich func(rec models.PendingRecord, entry *models.UploadEntry),
) (int, error) {
	start := r.now()

	records, err := fetch(ctx, r.deps.ChunkLimit)
	if err != nil {
		r.recordRun(start, "error", 0)
		return 0, err
	}
	if len(records) == 0 {
		r.recordRun(start, "empty", 0)
		return 0, nil
	}

	entries := make([]models.UploadEntry, len(records))
	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		entries[i] = r.toUploadEntry(rec)
		enrich(rec, &entries[i])
		ids[i] = rec.ImpfungID
	}

	if err := r.deps.Client.UploadVaccinationData(ctx, entries); err != nil {
		r.recordRun(start, "error", 0)
		return 0, err
	}

	// One capture-time timestamp for the whole batch. If marking fails after
	// a successful upload the registry already holds the data; the only
	// effect is a harmless duplicate resend on the next cycle.
	reportedAt := r.now()
	if err := r.deps.Store.MarkReported(ctx, ids, reportedAt); err != nil {
		r.recordRun(start, "error", 0)
		return 0, err
	}

	r.recordRun(start, "ok", len(records))
	r.deps.Log.Info("registry batch delivered",
		zap.String("disease", string(r.disease)),
		zap.Int("records", len(records)),
		zap.Time("reported_at", reportedAt))
	return len(records), nil
}

func (r *batchRunner) toUploadEntry(rec models.PendingRecord) models.UploadEntry {
	return models.UploadEntry{
		RecordID:          rec.ImpfungID.String(),
		ReportingUnitID:   r.deps.ReportingUnitID,
		Disease:           string(r.disease),
		VaccinationDate:   rec.VaccinationDate.Format("2006-01-02"),
		Serie:             rec.Serie,
		VaccineCode:       rec.VaccineCode,
		LotNumber:         rec.LotNumber,
		AdministeringUnit: rec.AdministeringUnit,
		PLZ:               rec.PLZ,
	}
}

func (r *batchRunner) deleteRecord(ctx context.Context, impfungID uuid.UUID) error {
	return r.deps.Client.DeleteVaccinationData(ctx, []models.DeleteEntry{{
		RecordID:        impfungID.String(),
		ReportingUnitID: r.deps.ReportingUnitID,
	}})
}

func (r *batchRunner) recordRun(start time.Time, result string, records int) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.RecordRun(string(r.disease), result, r.now().Sub(start).Seconds(), records)
}
