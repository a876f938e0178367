package geoname

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/geosync/geosync/internal/entity"
	"github.com/geosync/geosync/pkg/filelock"
)

// continentPlaces maps continent codes from countryInfo.txt to the
// GeoNames id of the continent's own place record.
var continentPlaces = map[string]int{
	"AF": 6255146,
	"AS": 6255147,
	"EU": 6255148,
	"NA": 6255149,
	"SA": 6255150,
	"OC": 6255151,
	"AN": 6255152,
}

// classDescriptions names the nine feature classes, which the feature
// codes file itself never spells out.
var classDescriptions = map[string]string{
	"A": "country, state, region",
	"H": "stream, lake",
	"L": "parks, area",
	"P": "city, village",
	"R": "road, railroad",
	"S": "spot, building, farm",
	"T": "mountain, hill, rock",
	"U": "undersea",
	"V": "forest, heath",
}

func (s *Service) installDownload(ctx context.Context) error {
	s.cli.Task("downloading dump files")
	for _, name := range dumpFiles {
		url := s.baseURL + "/" + name
		s.cli.Item(url)
		if _, err := s.fetcher.Download(ctx, url, filepath.Join(s.dataDir, name)); err != nil {
			// a missing or unreachable file means no entities from that
			// source; later stages treat the absent file as empty input
			s.cli.Err(url + ": " + err.Error())
		}
	}
	return nil
}

// installPrepare extracts the downloaded archives and splits the big
// text dumps into chunk files. Each archive is handled under the marker
// protocol so a crash mid-extraction restarts that archive only.
func (s *Service) installPrepare() error {
	s.cli.Task("preparing chunks")
	archives := []struct {
		zip   string
		txt   string
		dir   string
		lines int
	}{
		{"allCountries.zip", "allCountries.txt", "allCountries", s.chunks.AllCountries},
		{"hierarchy.zip", "hierarchy.txt", "hierarchy", s.chunks.Hierarchy},
		{"alternateNames.zip", "alternateNames.txt", "alternateNames", s.chunks.AlternateNames},
	}
	for _, a := range archives {
		zipPath := filepath.Join(s.dataDir, a.zip)
		if !filelock.Acquire(zipPath) {
			continue
		}
		s.cli.Item(a.zip)
		if err := filelock.Unzip(zipPath+".lock", s.dataDir); err != nil {
			return err
		}
		dir := filepath.Join(s.dataDir, a.dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := filelock.Split(filepath.Join(s.dataDir, a.txt), dir, a.lines); err != nil {
			return err
		}
		filelock.Complete(zipPath)
	}
	return nil
}

func (s *Service) installLanguage() error {
	s.cli.Task("installing languages")
	path := filepath.Join(s.dataDir, "iso-languagecodes.txt")
	err := eachLine(path, 1, func(line string) error {
		c := cols(line, 4)
		s.store.Persist(&entity.Language{
			Iso3: c[0],
			Iso2: c[1],
			Iso1: c[2],
			Name: c[3],
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

func (s *Service) installFeature() error {
	s.cli.Task("installing features")
	path := filepath.Join(s.dataDir, "featureCodes_en.txt")
	classes := make(map[string]*entity.Feature)
	err := eachLine(path, 0, func(line string) error {
		c := cols(line, 3)
		if c[0] == "null" {
			return nil
		}
		class, code, ok := strings.Cut(c[0], ".")
		if !ok {
			return nil
		}
		parent, ok := classes[class]
		if !ok {
			parent = &entity.Feature{Code: class, Description: classDescriptions[class]}
			s.store.Persist(parent)
			classes[class] = parent
		}
		s.store.Persist(&entity.Feature{
			Code:        code,
			Description: c[1],
			Comment:     c[2],
			Parent:      parent,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

// installPlace ingests one chunk of the main dump per invocation.
// Feature links resolve against the already installed feature table;
// timezone links wait for their own stage, countries are not installed
// yet at this point.
func (s *Service) installPlace() (bool, error) {
	s.cli.Task("installing places")
	dir := filepath.Join(s.dataDir, "allCountries")
	return s.processChunkDir(dir, func(path string) error {
		features := make(map[string]*entity.Feature)
		err := eachLine(path, 0, func(line string) error {
			c := cols(line, 19)
			place := &entity.Place{
				ID:           intVal(c[0]),
				Name:         c[1],
				Latitude:     floatVal(c[4]),
				Longitude:    floatVal(c[5]),
				CountryCode:  c[8],
				Admin1Code:   c[10],
				Admin2Code:   c[11],
				Admin3Code:   c[12],
				Admin4Code:   c[13],
				Population:   int64Ptr(c[14]),
				Elevation:    intPtr(c[15]),
				DigiEleModel: intPtr(c[16]),
			}
			if c[6] != "" && c[7] != "" {
				key := c[6] + "." + c[7]
				f, ok := features[key]
				if !ok {
					var err error
					f, err = s.store.FeatureByCode(key)
					if err != nil {
						return err
					}
					if f != nil {
						features[key] = f
					}
				}
				if f != nil {
					place.FeatureID = &f.ID
				}
			}
			s.store.Persist(place)
			return nil
		})
		if err != nil {
			return err
		}
		return s.store.Flush()
	})
}

func (s *Service) installCountryCurrencyLocale() error {
	s.cli.Task("installing countries, currencies and locales")
	path := filepath.Join(s.dataDir, "countryInfo.txt")
	currencies := make(map[string]*entity.Currency)
	locales := make(map[string]*entity.Locale)
	err := eachLine(path, 0, func(line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		c := cols(line, 19)
		country := &entity.Country{
			Iso2:            c[0],
			Iso3:            c[1],
			IsoNum:          c[2],
			Capital:         c[5],
			Tld:             c[9],
			Phone:           c[12],
			PostalCode:      c[13],
			PostalCodeRegex: c[14],
			PlaceID:         intPtr(c[16]),
		}
		if c[6] != "NA" {
			country.Area = floatPtr(c[6])
		}
		if c[7] != "NA" {
			country.Population = int64Ptr(c[7])
		}
		if id, ok := continentPlaces[c[8]]; ok {
			cid := id
			country.ContinentID = &cid
		}
		if c[10] != "" {
			cur, ok := currencies[c[10]]
			if !ok {
				cur = &entity.Currency{Code: c[10], Name: c[11]}
				s.store.Persist(cur)
				currencies[c[10]] = cur
			}
			country.Currency = cur
		}
		for i, code := range strings.Split(c[15], ",") {
			code = strings.ReplaceAll(strings.TrimSpace(code), "-", "_")
			if code == "" {
				continue
			}
			loc, ok := locales[code]
			if !ok {
				loc = &entity.Locale{Code: code}
				iso2, _, _ := strings.Cut(code, "_")
				lang, err := s.store.LanguageByISO2(iso2)
				if err != nil {
					return err
				}
				if lang == nil {
					// placeholder for a language the iso table does not carry
					lang = &entity.Language{Iso2: iso2}
					s.store.Persist(lang)
				}
				loc.Language = lang
				s.store.Persist(loc)
				locales[code] = loc
			}
			if i == 0 {
				country.MainLocale = loc
			}
			country.Locales = append(country.Locales, loc)
		}
		s.store.Persist(country)
		return nil
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

func (s *Service) installTimezone() error {
	s.cli.Task("installing timezones")
	path := filepath.Join(s.dataDir, "timeZones.txt")
	countries := newCountryCache(s.store)
	err := eachLine(path, 1, func(line string) error {
		c := cols(line, 5)
		tz := &entity.Timezone{
			Code:      c[1],
			OffsetJan: floatVal(c[2]),
			OffsetJul: floatVal(c[3]),
			Offset:    floatVal(c[4]),
		}
		country, err := countries.resolve(c[0])
		if err != nil {
			return err
		}
		if country != nil {
			tz.CountryID = &country.ID
		}
		s.store.Persist(tz)
		return nil
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

// installNeighbour records country adjacency. The dump lists each border
// from both sides; the pair is stored once, in whichever direction shows
// up first.
func (s *Service) installNeighbour() error {
	s.cli.Task("installing neighbours")
	path := filepath.Join(s.dataDir, "countryInfo.txt")
	countries := newCountryCache(s.store)
	err := eachLine(path, 0, func(line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		c := cols(line, 19)
		if c[17] == "" {
			return nil
		}
		country, err := countries.resolve(c[0])
		if err != nil {
			return err
		}
		if country == nil {
			return nil
		}
		for _, code := range strings.Split(c[17], ",") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			neighbour, err := countries.resolve(code)
			if err != nil {
				return err
			}
			if neighbour == nil {
				continue
			}
			if hasNeighbour(country, neighbour) || hasNeighbour(neighbour, country) {
				continue
			}
			country.Neighbours = append(country.Neighbours, neighbour)
		}
		s.store.Persist(country)
		return nil
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

func hasNeighbour(c, n *entity.Country) bool {
	for _, x := range c.Neighbours {
		if x.Iso2 == n.Iso2 {
			return true
		}
	}
	return false
}

// installPlaceTimezone walks the main dump a second time to attach
// timezones, which need the country table that did not exist when the
// places themselves were ingested. Timezones missing from timeZones.txt
// are created on the fly.
func (s *Service) installPlaceTimezone() (bool, error) {
	s.cli.Task("linking place timezones")
	dir := filepath.Join(s.dataDir, "allCountries")
	return s.processChunkDir(dir, func(path string) error {
		countries := newCountryCache(s.store)
		err := eachLine(path, 0, func(line string) error {
			c := cols(line, 19)
			if c[17] == "" {
				return nil
			}
			place, err := s.store.Place(intVal(c[0]))
			if err != nil {
				return err
			}
			if place == nil {
				return nil
			}
			tz, err := s.store.TimezoneByCode(c[17])
			if err != nil {
				return err
			}
			if tz == nil {
				tz = &entity.Timezone{Code: c[17]}
				country, err := countries.resolve(c[8])
				if err != nil {
					return err
				}
				if country != nil {
					tz.CountryID = &country.ID
				}
				s.store.Persist(tz)
			}
			place.Timezone = tz
			s.store.Persist(place)
			return nil
		})
		if err != nil {
			return err
		}
		return s.store.Flush()
	})
}

func (s *Service) installHierarchy() (bool, error) {
	s.cli.Task("installing hierarchy")
	dir := filepath.Join(s.dataDir, "hierarchy")
	return s.processChunkDir(dir, func(path string) error {
		err := eachLine(path, 0, func(line string) error {
			c := cols(line, 3)
			parent, err := s.store.Place(intVal(c[0]))
			if err != nil {
				return err
			}
			child, err := s.store.Place(intVal(c[1]))
			if err != nil {
				return err
			}
			if parent == nil || child == nil {
				return nil
			}
			child.ParentID = &parent.ID
			s.store.Persist(child)
			return nil
		})
		if err != nil {
			return err
		}
		return s.store.Flush()
	})
}

func (s *Service) installAltName() (bool, error) {
	s.cli.Task("installing alternate names")
	dir := filepath.Join(s.dataDir, "alternateNames")
	return s.processChunkDir(dir, func(path string) error {
		places := newPlaceCache(s.store)
		languages := newLanguageCache(s.store)
		err := eachLine(path, 0, func(line string) error {
			c := cols(line, 8)
			alt := &entity.AltName{
				ID:           intVal(c[0]),
				Name:         c[3],
				IsPreferred:  truthy(c[4]),
				IsShort:      truthy(c[5]),
				IsColloquial: truthy(c[6]),
				IsHistoric:   truthy(c[7]),
			}
			place, err := places.resolve(intVal(c[1]))
			if err != nil {
				return err
			}
			if place != nil {
				alt.PlaceID = &place.ID
			}
			if c[2] != "" {
				lang, err := languages.resolve(c[2])
				if err != nil {
					return err
				}
				if lang != nil {
					alt.LanguageID = &lang.ID
				} else {
					alt.LanguageOther = c[2]
				}
			}
			s.store.Persist(alt)
			return nil
		})
		if err != nil {
			return err
		}
		return s.store.Flush()
	})
}

// installCleanup removes every install artifact. Only the update subtree
// survives into steady state.
func (s *Service) installCleanup() error {
	s.cli.Task("cleaning install files")
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == "update" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dataDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
