// Package store defines the persistence boundary consumed by the pipeline
// and provides its GORM implementation.
//
// The pipeline only sees a unit of work: entities are
// registered with Persist and written out on Flush. Lookups always go to
// the backing database, never to pending entities - that is why stages
// keep their own resolver maps, and why the update-place stage flushes
// mid-stage before running its hierarchy query.
package store

import "github.com/geosync/geosync/internal/entity"

// PlaceCriteria is the composite search used for administrative-hierarchy
// inference. CountryCode and the admin codes are always compared exactly,
// an empty string matching only empty columns. FeatureClass/FeatureCode
// restrict by the place's feature leaf code and its parent class letter,
// and are applied only when non-empty.
type PlaceCriteria struct {
	CountryCode string
	Admin1Code  string
	Admin2Code  string
	Admin3Code  string

	FeatureClass string
	FeatureCode  string
}

// Store is the persistence unit of work.
//
// All finders return (nil, nil) when no row matches; an error means the
// lookup itself failed.
type Store interface {
	// Persist registers an entity (new or modified) for the next Flush.
	// Registering the same entity twice is a no-op.
	Persist(v interface{})

	// Flush writes all pending entities in registration order.
	Flush() error

	// Meta returns the singleton checkpoint row, creating it with the
	// initial install status when absent.
	Meta() (*entity.Meta, error)

	Place(id int) (*entity.Place, error)
	AltName(id int) (*entity.AltName, error)

	// FeatureByCode resolves a leaf feature by its upstream natural key
	// "{class}.{code}", e.g. "A.ADM1".
	FeatureByCode(code string) (*entity.Feature, error)
	// FeatureByClass resolves a root-level feature by its class letter.
	FeatureByClass(class string) (*entity.Feature, error)

	CountryByISO2(code string) (*entity.Country, error)
	TimezoneByCode(code string) (*entity.Timezone, error)

	// Language resolves by any of iso3, iso2, iso1 matching code,
	// returning at most one row.
	Language(code string) (*entity.Language, error)
	// LanguageByISO2 resolves by the two-letter code only (the locale
	// stub path).
	LanguageByISO2(code string) (*entity.Language, error)

	// FindPlace returns the first place matching the criteria.
	FindPlace(crit PlaceCriteria) (*entity.Place, error)
}
