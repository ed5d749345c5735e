package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vacme/internal/vmdl/models"
)

// TerminQuery selects which direct-join query variant runs. The direct join
// over the dossier's appointment links is cheaper than walking the generic
// dossier-entry table, so it is tried first.
type TerminQuery int

const (
	// TerminOneOrTwo fetches dose-1 and dose-2 candidates in one pass.
	TerminOneOrTwo TerminQuery = iota
	// TerminOne and TerminTwo split that pass into two queries; the
	// combined OR-join was found slow under some data distributions.
	TerminOne
	TerminTwo
)

// PendingStore produces upload candidates and records successful deliveries.
// A vaccination is a candidate while its reported timestamp is null, it is
// not externally administered and its disease is supported by the registry.
type PendingStore interface {
	// PendingByTermin returns up to limit candidates whose vaccination is
	// linked through the dossier's dose-1/dose-2 appointment slots.
	PendingByTermin(ctx context.Context, disease models.Disease, q TerminQuery, limit int) ([]models.PendingRecord, error)

	// PendingByDossierEntry returns up to limit candidates from the generic
	// per-entry table: all booster doses, plus dose-1/2 for dossiers that
	// never used the direct appointment link.
	PendingByDossierEntry(ctx context.Context, disease models.Disease, limit int) ([]models.PendingRecord, error)

	// MarkReported stamps every given vaccination with the same delivery
	// timestamp inside one dedicated transaction.
	MarkReported(ctx context.Context, ids []uuid.UUID, reportedAt time.Time) error

	// WasEverSent reports whether the vaccination was delivered at any point
	// in time: either the live reported timestamp is set, or the audit
	// history holds a revision where it was. A correction workflow may clear
	// the live timestamp to force a resend; historical delivery must still
	// be detectable.
	WasEverSent(ctx context.Context, impfungID uuid.UUID) (bool, error)
}
