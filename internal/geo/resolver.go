package geo

import (
	"go.uber.org/zap"

	"vacme/internal/geo/metrics"
)

// Canton and Medstat sentinel codes reported to the registry when a postal
// code cannot be resolved.
const (
	KantonUnknown  = "UNB"
	MedstatAbroad  = "AUSLAND"
	MedstatUnknown = "UNBEKANNT"

	// Two foreign micro-enclaves carry a Swiss postal code and a Swiss
	// canton in the reference table but must be reported under their own
	// country code: Büsingen am Hochrhein (DE) and Campione d'Italia (IT).
	plzBuesingen    = "8238"
	plzCampione     = "6911"
	kantonBuesingen = "D"
	kantonCampione  = "I"
)

// Resolver translates postal codes into canton and Medstat codes. Both
// lookups run through an independent, bounded, time-expiring cache so a batch
// of records does not re-query the reference tables per record.
//
// The resolver is an explicitly constructed component, not a process-wide
// singleton; tests get a fresh instance each.
type Resolver struct {
	kantonCache  *Cache
	medstatCache *Cache
}

// NewResolver builds a resolver over the bundled reference data.
// kantonTenant breaks ties for postal codes mapped to several cantons; when
// the tenant's canton is among the matches it wins, otherwise the first match
// is used. metrics may be nil.
func NewResolver(ref *ReferenceData, kantonTenant string, m *metrics.Metrics, log *zap.Logger) *Resolver {
	kantonLoad := func(plz string) (string, bool, error) {
		switch plz {
		case plzBuesingen:
			return kantonBuesingen, true, nil
		case plzCampione:
			return kantonCampione, true, nil
		}
		kantone, err := ref.KantoneForPLZ(plz)
		if err != nil {
			return "", false, err
		}
		if len(kantone) == 0 {
			return "", false, nil
		}
		for _, k := range kantone {
			if k == kantonTenant {
				return k, true, nil
			}
		}
		return kantone[0], true, nil
	}

	medstatLoad := func(plz string) (string, bool, error) {
		return ref.MedstatForPLZ(plz)
	}

	return &Resolver{
		kantonCache:  NewCache("kanton", kantonLoad, m, log),
		medstatCache: NewCache("medstat", medstatLoad, m, log),
	}
}

// Kanton resolves the residence canton code. Unresolvable postal codes map to
// the unknown sentinel, never to an empty string or an error.
func (r *Resolver) Kanton(plz string) string {
	if kanton, ok := r.kantonCache.Get(plz); ok {
		return kanton
	}
	return KantonUnknown
}

// Medstat resolves the Medstat region code. A cache hit wins even for records
// flagged as foreign (the reference data carries dedicated codes for some
// neighboring regions); otherwise a foreign address maps to the abroad
// sentinel and anything else to the unknown sentinel.
func (r *Resolver) Medstat(plz string, foreignAddress bool) string {
	if code, ok := r.medstatCache.Get(plz); ok {
		return code
	}
	if foreignAddress {
		return MedstatAbroad
	}
	return MedstatUnknown
}
