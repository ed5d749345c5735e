package geo

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
)

//go:embed data/plz_kanton.csv data/plz_medstat.csv
var referenceFiles embed.FS

// ReferenceData holds the bundled PLZ lookup tables. Both tables are parsed
// lazily on first use and are immutable afterwards; a refreshed dataset ships
// with a new build.
//
// A postal code may map to more than one canton (border regions such as 8212
// or 6000), so the canton table keeps all matches. The Medstat table includes
// Liechtenstein postal codes with their dedicated FL region code.
type ReferenceData struct {
	once sync.Once
	err  error

	kantone map[string][]string
	medstat map[string]string
}

// NewReferenceData returns an unparsed reference dataset. Parsing happens on
// the first lookup.
func NewReferenceData() *ReferenceData {
	return &ReferenceData{}
}

// KantoneForPLZ returns every canton abbreviation recorded for the postal
// code, in file order. An unmapped postal code returns an empty slice.
func (d *ReferenceData) KantoneForPLZ(plz string) ([]string, error) {
	if err := d.parse(); err != nil {
		return nil, err
	}
	return d.kantone[plz], nil
}

// MedstatForPLZ returns the Medstat region code for the postal code.
func (d *ReferenceData) MedstatForPLZ(plz string) (string, bool, error) {
	if err := d.parse(); err != nil {
		return "", false, err
	}
	code, ok := d.medstat[plz]
	return code, ok, nil
}

func (d *ReferenceData) parse() error {
	d.once.Do(func() {
		d.kantone = map[string][]string{}
		d.medstat = map[string]string{}

		err := readDelimited("data/plz_kanton.csv", func(plz, kanton string) {
			d.kantone[plz] = append(d.kantone[plz], kanton)
		})
		if err != nil {
			d.err = err
			return
		}
		d.err = readDelimited("data/plz_medstat.csv", func(plz, code string) {
			d.medstat[plz] = code
		})
	})
	return d.err
}

func readDelimited(name string, row func(plz, value string)) error {
	f, err := referenceFiles.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = 2
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		row(record[0], record[1])
	}
}
