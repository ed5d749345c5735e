//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"vacme/internal/vmdl/models"
	"vacme/internal/vmdl/store"
	"vacme/pkg/testutil/containers"
)

const schemaSQL = `
	CREATE TABLE registrierung (
		id UUID PRIMARY KEY,
		plz TEXT,
		foreign_address BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE impfslot (
		id UUID PRIMARY KEY,
		disease TEXT NOT NULL
	);
	CREATE TABLE impftermin (
		id UUID PRIMARY KEY,
		slot_id UUID NOT NULL REFERENCES impfslot (id)
	);
	CREATE TABLE impfdossier (
		id UUID PRIMARY KEY,
		registrierung_id UUID NOT NULL REFERENCES registrierung (id),
		disease TEXT NOT NULL,
		termin1_id UUID REFERENCES impftermin (id),
		termin2_id UUID REFERENCES impftermin (id)
	);
	CREATE TABLE impfung (
		id UUID PRIMARY KEY,
		termin_id UUID REFERENCES impftermin (id),
		vaccination_date TIMESTAMPTZ NOT NULL,
		vaccine_code TEXT NOT NULL,
		lot_number TEXT NOT NULL,
		administering_unit TEXT NOT NULL,
		externally_administered BOOLEAN NOT NULL DEFAULT FALSE,
		vmdl_reported_at TIMESTAMPTZ
	);
	CREATE TABLE impfdossiereintrag (
		id UUID PRIMARY KEY,
		impfdossier_id UUID NOT NULL REFERENCES impfdossier (id),
		impffolge_nr INT NOT NULL,
		impfung_id UUID REFERENCES impfung (id)
	);
	CREATE TABLE impfung_aud (
		rev BIGSERIAL,
		id UUID NOT NULL,
		vmdl_reported_at TIMESTAMPTZ
	);
`

type PostgresStoreIntegrationSuite struct {
	suite.Suite
	db    *sql.DB
	store *store.PostgresStore
	ctx   context.Context
}

func TestPostgresStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreIntegrationSuite))
}

func (s *PostgresStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	s.db = pg.DB

	_, err := s.db.ExecContext(s.ctx, schemaSQL)
	s.Require().NoError(err)

	s.store = store.NewPostgres(s.db, zap.NewNop())
}

func (s *PostgresStoreIntegrationSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `
		TRUNCATE impfung_aud, impfdossiereintrag, impfung, impfdossier, impftermin, impfslot, registrierung
	`)
	s.Require().NoError(err)
}

// seedRegistrierung inserts a person with the given postal code.
func (s *PostgresStoreIntegrationSuite) seedRegistrierung(plz string, foreign bool) uuid.UUID {
	id := uuid.New()
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO registrierung (id, plz, foreign_address) VALUES ($1, $2, $3)`,
		id, plz, foreign)
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreIntegrationSuite) seedTermin(disease models.Disease) uuid.UUID {
	slotID := uuid.New()
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO impfslot (id, disease) VALUES ($1, $2)`, slotID, string(disease))
	s.Require().NoError(err)

	terminID := uuid.New()
	_, err = s.db.ExecContext(s.ctx,
		`INSERT INTO impftermin (id, slot_id) VALUES ($1, $2)`, terminID, slotID)
	s.Require().NoError(err)
	return terminID
}

func (s *PostgresStoreIntegrationSuite) seedDossier(regID uuid.UUID, disease models.Disease, termin1, termin2 uuid.UUID) uuid.UUID {
	id := uuid.New()
	var t1, t2 any
	if termin1 != uuid.Nil {
		t1 = termin1
	}
	if termin2 != uuid.Nil {
		t2 = termin2
	}
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO impfdossier (id, registrierung_id, disease, termin1_id, termin2_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, regID, string(disease), t1, t2)
	s.Require().NoError(err)
	return id
}

type seedImpfung struct {
	terminID   uuid.UUID
	external   bool
	reportedAt *time.Time
}

func (s *PostgresStoreIntegrationSuite) seedImpfung(seed seedImpfung) uuid.UUID {
	id := uuid.New()
	var terminID any
	if seed.terminID != uuid.Nil {
		terminID = seed.terminID
	}
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO impfung (id, termin_id, vaccination_date, vaccine_code, lot_number,
		                      administering_unit, externally_administered, vmdl_reported_at)
		 VALUES ($1, $2, $3, 'EU/1/20/1528', 'LOT-42', 'ODI-BERN', $4, $5)`,
		id, terminID, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), seed.external, seed.reportedAt)
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreIntegrationSuite) seedDossierEntry(dossierID uuid.UUID, folgeNr int, impfungID uuid.UUID) {
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO impfdossiereintrag (id, impfdossier_id, impffolge_nr, impfung_id)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), dossierID, folgeNr, impfungID)
	s.Require().NoError(err)
}

func (s *PostgresStoreIntegrationSuite) TestPendingByTermin() {
	regID := s.seedRegistrierung("3011", false)
	termin1 := s.seedTermin(models.DiseaseCovid)
	termin2 := s.seedTermin(models.DiseaseCovid)
	s.seedDossier(regID, models.DiseaseCovid, termin1, termin2)

	dose1 := s.seedImpfung(seedImpfung{terminID: termin1})
	dose2 := s.seedImpfung(seedImpfung{terminID: termin2})

	// Externally administered and already reported records never surface.
	extTermin := s.seedTermin(models.DiseaseCovid)
	s.seedDossier(s.seedRegistrierung("3012", false), models.DiseaseCovid, extTermin, uuid.Nil)
	s.seedImpfung(seedImpfung{terminID: extTermin, external: true})

	reported := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repTermin := s.seedTermin(models.DiseaseCovid)
	s.seedDossier(s.seedRegistrierung("3013", false), models.DiseaseCovid, repTermin, uuid.Nil)
	s.seedImpfung(seedImpfung{terminID: repTermin, reportedAt: &reported})

	combined, err := s.store.PendingByTermin(s.ctx, models.DiseaseCovid, store.TerminOneOrTwo, 10)
	s.Require().NoError(err)
	s.Require().Len(combined, 2)

	bySeries := map[int]models.PendingRecord{}
	for _, rec := range combined {
		bySeries[rec.Serie] = rec
	}
	s.Equal(dose1, bySeries[1].ImpfungID)
	s.Equal(dose2, bySeries[2].ImpfungID)
	s.Equal("3011", bySeries[1].PLZ)
	s.Equal("EU/1/20/1528", bySeries[1].VaccineCode)
	s.False(bySeries[1].ForeignAddress)

	first, err := s.store.PendingByTermin(s.ctx, models.DiseaseCovid, store.TerminOne, 10)
	s.Require().NoError(err)
	s.Require().Len(first, 1)
	s.Equal(dose1, first[0].ImpfungID)
	s.Equal(1, first[0].Serie)

	second, err := s.store.PendingByTermin(s.ctx, models.DiseaseCovid, store.TerminTwo, 10)
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.Equal(dose2, second[0].ImpfungID)
	s.Equal(2, second[0].Serie)
}

func (s *PostgresStoreIntegrationSuite) TestPendingByTerminRespectsLimit() {
	for i := 0; i < 3; i++ {
		regID := s.seedRegistrierung("3011", false)
		termin := s.seedTermin(models.DiseaseCovid)
		s.seedDossier(regID, models.DiseaseCovid, termin, uuid.Nil)
		s.seedImpfung(seedImpfung{terminID: termin})
	}

	records, err := s.store.PendingByTermin(s.ctx, models.DiseaseCovid, store.TerminOneOrTwo, 2)
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *PostgresStoreIntegrationSuite) TestPendingByDossierEntry() {
	regID := s.seedRegistrierung("8000", false)
	termin1 := s.seedTermin(models.DiseaseCovid)
	dossierID := s.seedDossier(regID, models.DiseaseCovid, termin1, uuid.Nil)

	// Directly linked doses belong to the termin queries, not this one.
	dose1 := s.seedImpfung(seedImpfung{terminID: termin1})
	s.seedDossierEntry(dossierID, 1, dose1)

	booster := s.seedImpfung(seedImpfung{})
	s.seedDossierEntry(dossierID, 3, booster)

	records, err := s.store.PendingByDossierEntry(s.ctx, models.DiseaseCovid, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(booster, records[0].ImpfungID)
	s.Equal(3, records[0].Serie)
}

func (s *PostgresStoreIntegrationSuite) TestPendingByDossierEntryFiltersDisease() {
	regID := s.seedRegistrierung("", true)
	dossierID := s.seedDossier(regID, models.DiseaseMpox, uuid.Nil, uuid.Nil)
	vacc := s.seedImpfung(seedImpfung{})
	s.seedDossierEntry(dossierID, 1, vacc)

	mpox, err := s.store.PendingByDossierEntry(s.ctx, models.DiseaseMpox, 10)
	s.Require().NoError(err)
	s.Require().Len(mpox, 1)
	s.Equal(vacc, mpox[0].ImpfungID)
	s.Empty(mpox[0].PLZ)
	s.True(mpox[0].ForeignAddress)

	covid, err := s.store.PendingByDossierEntry(s.ctx, models.DiseaseCovid, 10)
	s.Require().NoError(err)
	s.Empty(covid)
}

func (s *PostgresStoreIntegrationSuite) TestMarkReported() {
	regID := s.seedRegistrierung("3011", false)
	termin := s.seedTermin(models.DiseaseCovid)
	s.seedDossier(regID, models.DiseaseCovid, termin, uuid.Nil)
	vacc := s.seedImpfung(seedImpfung{terminID: termin})

	reportedAt := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	err := s.store.MarkReported(s.ctx, []uuid.UUID{vacc}, reportedAt)
	s.Require().NoError(err)

	pending, err := s.store.PendingByTermin(s.ctx, models.DiseaseCovid, store.TerminOneOrTwo, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	var stored time.Time
	err = s.db.QueryRowContext(s.ctx,
		`SELECT vmdl_reported_at FROM impfung WHERE id = $1`, vacc).Scan(&stored)
	s.Require().NoError(err)
	s.True(stored.Equal(reportedAt))

	sent, err := s.store.WasEverSent(s.ctx, vacc)
	s.Require().NoError(err)
	s.True(sent)
}

func (s *PostgresStoreIntegrationSuite) TestWasEverSentAuditFallback() {
	vacc := s.seedImpfung(seedImpfung{})

	sent, err := s.store.WasEverSent(s.ctx, vacc)
	s.Require().NoError(err)
	s.False(sent)

	// A correction cleared the live timestamp but the revision history kept it.
	reported := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	_, err = s.db.ExecContext(s.ctx,
		`INSERT INTO impfung_aud (id, vmdl_reported_at) VALUES ($1, $2)`, vacc, reported)
	s.Require().NoError(err)

	sent, err = s.store.WasEverSent(s.ctx, vacc)
	s.Require().NoError(err)
	s.True(sent)
}
