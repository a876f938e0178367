package geoname

import (
	"github.com/geosync/geosync/internal/entity"
	"github.com/geosync/geosync/pkg/store"
)

// Entity lookups only see flushed rows, so stages keep small read-through
// caches for anything they resolve repeatedly within one chunk. Only hits
// are cached: a miss may be satisfied later in the same stage.

type countryCache struct {
	st     store.Store
	byISO2 map[string]*entity.Country
}

func newCountryCache(st store.Store) *countryCache {
	return &countryCache{st: st, byISO2: make(map[string]*entity.Country)}
}

func (c *countryCache) resolve(iso2 string) (*entity.Country, error) {
	if v, ok := c.byISO2[iso2]; ok {
		return v, nil
	}
	v, err := c.st.CountryByISO2(iso2)
	if err != nil {
		return nil, err
	}
	if v != nil {
		c.byISO2[iso2] = v
	}
	return v, nil
}

type languageCache struct {
	st     store.Store
	byCode map[string]*entity.Language
}

func newLanguageCache(st store.Store) *languageCache {
	return &languageCache{st: st, byCode: make(map[string]*entity.Language)}
}

// resolve matches code against any of the ISO columns, the way the
// alternate-names dump mixes iso1, iso2 and iso3 codes in one field.
func (c *languageCache) resolve(code string) (*entity.Language, error) {
	if v, ok := c.byCode[code]; ok {
		return v, nil
	}
	v, err := c.st.Language(code)
	if err != nil {
		return nil, err
	}
	if v != nil {
		c.byCode[code] = v
	}
	return v, nil
}

type placeCache struct {
	st   store.Store
	byID map[int]*entity.Place
}

func newPlaceCache(st store.Store) *placeCache {
	return &placeCache{st: st, byID: make(map[int]*entity.Place)}
}

func (c *placeCache) resolve(id int) (*entity.Place, error) {
	if v, ok := c.byID[id]; ok {
		return v, nil
	}
	v, err := c.st.Place(id)
	if err != nil {
		return nil, err
	}
	if v != nil {
		c.byID[id] = v
	}
	return v, nil
}
