package models

import (
	"time"

	"github.com/google/uuid"
)

// Disease identifies a vaccination programme reported to the registry. The
// set is closed; the registry only accepts data for these programmes.
type Disease string

const (
	DiseaseCovid Disease = "covid"
	DiseaseMpox  Disease = "mpox"
)

// PendingRecord is a read-only projection of a vaccination event that has not
// been reported yet, joined with its dossier and registration. It exists only
// for the duration of one batch run; nothing but the reported timestamp is
// ever written back.
type PendingRecord struct {
	ImpfungID         uuid.UUID
	VaccinationDate   time.Time
	Serie             int
	VaccineCode       string
	LotNumber         string
	AdministeringUnit string
	PLZ               string
	ForeignAddress    bool
}

// UploadEntry is one element of the JSON array pushed to the registry. Kanton
// and Medstat are filled in by enrichment before upload.
type UploadEntry struct {
	RecordID          string `json:"recordId"`
	ReportingUnitID   string `json:"reportingUnitId"`
	Disease           string `json:"disease"`
	VaccinationDate   string `json:"vaccinationDate"`
	Serie             int    `json:"serie"`
	VaccineCode       string `json:"vaccineCode"`
	LotNumber         string `json:"lotNumber"`
	AdministeringUnit string `json:"administeringUnitId"`
	PLZ               string `json:"plz"`
	Kanton            string `json:"kanton"`
	Medstat           string `json:"medstat,omitempty"`
}

// DeleteEntry requests removal of a single previously uploaded record.
type DeleteEntry struct {
	RecordID        string `json:"recordId"`
	ReportingUnitID string `json:"reportingUnitId"`
}
