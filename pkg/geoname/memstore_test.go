package geoname

import (
	"sort"
	"strings"

	"github.com/geosync/geosync/internal/entity"
	"github.com/geosync/geosync/pkg/store"
)

// memStore is an in-memory store.Store for stage tests. It mirrors the
// real unit of work: lookups only see flushed entities, Flush assigns
// surrogate IDs and materializes association foreign keys.
type memStore struct {
	meta       *entity.Meta
	places     map[int]*entity.Place
	altNames   map[int]*entity.AltName
	features   []*entity.Feature
	countries  []*entity.Country
	timezones  []*entity.Timezone
	languages  []*entity.Language
	currencies []*entity.Currency
	locales    []*entity.Locale

	pending []interface{}
	seen    map[interface{}]struct{}
	nextID  uint
	flushes int
}

func newMemStore() *memStore {
	return &memStore{
		places:   make(map[int]*entity.Place),
		altNames: make(map[int]*entity.AltName),
		seen:     make(map[interface{}]struct{}),
	}
}

func (m *memStore) Persist(v interface{}) {
	if _, ok := m.seen[v]; ok {
		return
	}
	m.seen[v] = struct{}{}
	m.pending = append(m.pending, v)
}

func (m *memStore) id(cur uint) uint {
	if cur != 0 {
		return cur
	}
	m.nextID++
	return m.nextID
}

func (m *memStore) Flush() error {
	m.flushes++
	for _, v := range m.pending {
		switch e := v.(type) {
		case *entity.Meta:
			m.meta = e
		case *entity.Place:
			if e.Feature != nil {
				m.saveFeature(e.Feature)
				e.FeatureID = &e.Feature.ID
			}
			if e.Timezone != nil {
				m.saveTimezone(e.Timezone)
				e.TimezoneID = &e.Timezone.ID
			}
			m.places[e.ID] = e
		case *entity.AltName:
			if e.Language != nil {
				m.saveLanguage(e.Language)
				e.LanguageID = &e.Language.ID
			}
			m.altNames[e.ID] = e
		case *entity.Feature:
			m.saveFeature(e)
		case *entity.Country:
			m.saveCountry(e)
		case *entity.Timezone:
			m.saveTimezone(e)
		case *entity.Language:
			m.saveLanguage(e)
		case *entity.Currency:
			m.saveCurrency(e)
		case *entity.Locale:
			m.saveLocale(e)
		}
	}
	m.pending = nil
	m.seen = make(map[interface{}]struct{})
	return nil
}

func (m *memStore) saveFeature(e *entity.Feature) {
	if e.Parent != nil {
		m.saveFeature(e.Parent)
		e.ParentID = &e.Parent.ID
	}
	if e.ID == 0 {
		e.ID = m.id(0)
		m.features = append(m.features, e)
		return
	}
	for _, f := range m.features {
		if f == e {
			return
		}
	}
	m.features = append(m.features, e)
}

func (m *memStore) saveCountry(e *entity.Country) {
	if e.Currency != nil {
		m.saveCurrency(e.Currency)
		e.CurrencyID = &e.Currency.ID
	}
	if e.MainLocale != nil {
		m.saveLocale(e.MainLocale)
		e.MainLocaleID = &e.MainLocale.ID
	}
	for _, loc := range e.Locales {
		m.saveLocale(loc)
	}
	if e.ID == 0 {
		e.ID = m.id(0)
		m.countries = append(m.countries, e)
	}
}

func (m *memStore) saveTimezone(e *entity.Timezone) {
	if e.ID == 0 {
		e.ID = m.id(0)
		m.timezones = append(m.timezones, e)
	}
}

func (m *memStore) saveLanguage(e *entity.Language) {
	if e.ID == 0 {
		e.ID = m.id(0)
		m.languages = append(m.languages, e)
	}
}

func (m *memStore) saveCurrency(e *entity.Currency) {
	if e.ID == 0 {
		e.ID = m.id(0)
		m.currencies = append(m.currencies, e)
	}
}

func (m *memStore) saveLocale(e *entity.Locale) {
	if e.Language != nil {
		m.saveLanguage(e.Language)
		e.LanguageID = &e.Language.ID
	}
	if e.ID == 0 {
		e.ID = m.id(0)
		m.locales = append(m.locales, e)
	}
}

func (m *memStore) Meta() (*entity.Meta, error) {
	if m.meta == nil {
		m.meta = &entity.Meta{ID: 1, Status: entity.StatusInstallDownload}
	}
	return m.meta, nil
}

func (m *memStore) Place(id int) (*entity.Place, error) {
	return m.places[id], nil
}

func (m *memStore) AltName(id int) (*entity.AltName, error) {
	return m.altNames[id], nil
}

func (m *memStore) FeatureByCode(code string) (*entity.Feature, error) {
	class, leaf, ok := strings.Cut(code, ".")
	if !ok {
		return nil, nil
	}
	for _, f := range m.features {
		if f.Code == leaf && f.Parent != nil && f.Parent.Code == class {
			return f, nil
		}
	}
	return nil, nil
}

func (m *memStore) FeatureByClass(class string) (*entity.Feature, error) {
	for _, f := range m.features {
		if f.Code == class && f.Parent == nil {
			return f, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountryByISO2(code string) (*entity.Country, error) {
	for _, c := range m.countries {
		if c.Iso2 == code {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) TimezoneByCode(code string) (*entity.Timezone, error) {
	for _, tz := range m.timezones {
		if tz.Code == code {
			return tz, nil
		}
	}
	return nil, nil
}

func (m *memStore) Language(code string) (*entity.Language, error) {
	for _, l := range m.languages {
		if l.Iso3 == code || l.Iso2 == code || l.Iso1 == code {
			return l, nil
		}
	}
	return nil, nil
}

func (m *memStore) LanguageByISO2(code string) (*entity.Language, error) {
	for _, l := range m.languages {
		if l.Iso2 == code {
			return l, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindPlace(crit store.PlaceCriteria) (*entity.Place, error) {
	ids := make([]int, 0, len(m.places))
	for id := range m.places {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := m.places[id]
		if p.CountryCode != crit.CountryCode ||
			p.Admin1Code != crit.Admin1Code ||
			p.Admin2Code != crit.Admin2Code ||
			p.Admin3Code != crit.Admin3Code {
			continue
		}
		if crit.FeatureClass != "" || crit.FeatureCode != "" {
			var f *entity.Feature
			if p.FeatureID != nil {
				for _, x := range m.features {
					if x.ID == *p.FeatureID {
						f = x
						break
					}
				}
			}
			if f == nil {
				continue
			}
			if crit.FeatureCode != "" && f.Code != crit.FeatureCode {
				continue
			}
			if crit.FeatureClass != "" && (f.Parent == nil || f.Parent.Code != crit.FeatureClass) {
				continue
			}
		}
		return p, nil
	}
	return nil, nil
}
