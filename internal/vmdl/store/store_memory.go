package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vacme/internal/vmdl/models"
)

type memoryRecord struct {
	record  models.PendingRecord
	disease models.Disease
	// dose is 1 or 2 for records reachable through the direct appointment
	// link, 0 for generic dossier-entry records.
	dose int
}

// MemoryStore is an in-memory PendingStore for tests and local development.
// It mirrors the two query paths of the PostgreSQL store and counts the
// queries it receives.
type MemoryStore struct {
	mu       sync.Mutex
	records  []memoryRecord
	reported map[uuid.UUID]time.Time
	audited  map[uuid.UUID]bool

	TerminQueries int
	EntryQueries  int
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		reported: map[uuid.UUID]time.Time{},
		audited:  map[uuid.UUID]bool{},
	}
}

// AddTerminRecord seeds a candidate reachable through the direct dose-1/2
// appointment link.
func (s *MemoryStore) AddTerminRecord(disease models.Disease, dose int, rec models.PendingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Serie = dose
	s.records = append(s.records, memoryRecord{record: rec, disease: disease, dose: dose})
}

// AddEntryRecord seeds a candidate reachable only through the generic
// dossier-entry table.
func (s *MemoryStore) AddEntryRecord(disease models.Disease, serie int, rec models.PendingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Serie = serie
	s.records = append(s.records, memoryRecord{record: rec, disease: disease})
}

// AddAuditedReport records a historical delivery revision for WasEverSent.
func (s *MemoryStore) AddAuditedReport(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audited[id] = true
}

// ReportedAt returns the stamped delivery timestamp, if any.
func (s *MemoryStore) ReportedAt(id uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.reported[id]
	return at, ok
}

func (s *MemoryStore) PendingByTermin(_ context.Context, disease models.Disease, q TerminQuery, limit int) ([]models.PendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TerminQueries++

	var out []models.PendingRecord
	for _, mr := range s.records {
		if len(out) >= limit {
			break
		}
		if mr.disease != disease || mr.dose == 0 {
			continue
		}
		if q == TerminOne && mr.dose != 1 {
			continue
		}
		if q == TerminTwo && mr.dose != 2 {
			continue
		}
		if _, sent := s.reported[mr.record.ImpfungID]; sent {
			continue
		}
		out = append(out, mr.record)
	}
	return out, nil
}

func (s *MemoryStore) PendingByDossierEntry(_ context.Context, disease models.Disease, limit int) ([]models.PendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EntryQueries++

	var out []models.PendingRecord
	for _, mr := range s.records {
		if len(out) >= limit {
			break
		}
		if mr.disease != disease || mr.dose != 0 {
			continue
		}
		if _, sent := s.reported[mr.record.ImpfungID]; sent {
			continue
		}
		out = append(out, mr.record)
	}
	return out, nil
}

func (s *MemoryStore) MarkReported(_ context.Context, ids []uuid.UUID, reportedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.reported[id] = reportedAt
	}
	return nil
}

func (s *MemoryStore) WasEverSent(_ context.Context, impfungID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reported[impfungID]; ok {
		return true, nil
	}
	return s.audited[impfungID], nil
}
