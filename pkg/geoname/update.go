package geoname

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/geosync/geosync/internal/entity"
	"github.com/geosync/geosync/pkg/filelock"
	"github.com/geosync/geosync/pkg/store"
)

// eachUpdateFile runs fn over every unprocessed delta file in dir under
// the marker protocol. Processed files keep their .done marker until
// updateCleanup retires them, which doubles as the "already downloaded"
// record for re-runs within the retention window.
func (s *Service) eachUpdateFile(dir string, fn func(path string) error) error {
	files, err := filelock.Available(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, f := range files {
		if !filelock.Acquire(f) {
			continue
		}
		s.cli.Item(f)
		if err := fn(f + ".lock"); err != nil {
			return err
		}
		filelock.Complete(f)
	}
	return nil
}

// updatePlaceModify applies the daily place delta. Rows are upserted in
// place; unseen feature codes and timezones are created on the fly. Each
// row is flushed immediately so the admin-hierarchy search below can see
// it, and every other place it may be the parent of.
func (s *Service) updatePlaceModify() error {
	s.cli.Task("applying place modifications")
	dir := filepath.Join(s.dataDir, "update", "place", "modification")
	err := s.eachUpdateFile(dir, func(path string) error {
		features := make(map[string]*entity.Feature)
		return eachLine(path, 0, func(line string) error {
			c := cols(line, 19)
			id := intVal(c[0])
			place, err := s.store.Place(id)
			if err != nil {
				return err
			}
			if place == nil {
				place = &entity.Place{ID: id}
			}
			place.Name = c[1]
			place.Latitude = floatVal(c[4])
			place.Longitude = floatVal(c[5])
			place.CountryCode = c[8]
			place.Admin1Code = c[10]
			place.Admin2Code = c[11]
			place.Admin3Code = c[12]
			place.Admin4Code = c[13]
			place.Population = int64Ptr(c[14])
			place.Elevation = intPtr(c[15])
			place.DigiEleModel = intPtr(c[16])

			feature, err := s.resolveOrCreateFeature(features, c[6], c[7])
			if err != nil {
				return err
			}
			place.Feature = feature
			if feature.ID != 0 {
				place.FeatureID = &feature.ID
			} else {
				place.FeatureID = nil
			}

			if c[17] != "" {
				tz, err := s.store.TimezoneByCode(c[17])
				if err != nil {
					return err
				}
				if tz == nil {
					tz = &entity.Timezone{Code: c[17]}
					country, err := s.store.CountryByISO2(c[8])
					if err != nil {
						return err
					}
					if country != nil {
						tz.CountryID = &country.ID
					}
					s.store.Persist(tz)
				}
				place.Timezone = tz
				if tz.ID != 0 {
					place.TimezoneID = &tz.ID
				} else {
					place.TimezoneID = nil
				}
			}

			s.store.Persist(place)
			// the row must be visible before the parent search, both as
			// a child and as a potential parent of later rows
			if err := s.store.Flush(); err != nil {
				return err
			}

			return s.linkAdminParent(place, c[6], c[7])
		})
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

// resolveOrCreateFeature looks up "class.code", creating the leaf under
// the existing class node when the taxonomy does not know it yet. Only
// created features are cached; the map also remembers class nodes.
func (s *Service) resolveOrCreateFeature(cache map[string]*entity.Feature, class, code string) (*entity.Feature, error) {
	key := class + "." + code
	if f, ok := cache[key]; ok {
		return f, nil
	}
	f, err := s.store.FeatureByCode(key)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return f, nil
	}
	f = &entity.Feature{Code: code}
	if parent, ok := cache[class]; ok {
		f.Parent = parent
	} else {
		parent, err := s.store.FeatureByClass(class)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			cache[class] = parent
			f.Parent = parent
		}
	}
	s.store.Persist(f)
	cache[key] = f
	return f, nil
}

var admLevels = map[string]int{"ADM1": 1, "ADM2": 2, "ADM3": 3, "ADM4": 4}

// linkAdminParent infers the parent of an administrative division from
// its admin code columns. The first level below its own whose code is
// not the "00" placeholder names the parent's feature; when every level
// is a placeholder the search degrades to the bare country, which the
// country's own place record matches.
func (s *Service) linkAdminParent(place *entity.Place, class, code string) error {
	if class != "A" {
		return nil
	}
	level, ok := admLevels[code]
	if !ok {
		return nil
	}

	adminCode := func(l int) string {
		switch l {
		case 1:
			return place.Admin1Code
		case 2:
			return place.Admin2Code
		case 3:
			return place.Admin3Code
		}
		return ""
	}

	parentFeature := ""
	for l := level - 1; l >= 1; l-- {
		if adminCode(l) != "00" {
			parentFeature = fmt.Sprintf("ADM%d", l)
			break
		}
	}

	crit := store.PlaceCriteria{CountryCode: place.CountryCode}
	switch parentFeature {
	case "ADM3":
		crit.Admin3Code = place.Admin3Code
		fallthrough
	case "ADM2":
		crit.Admin2Code = place.Admin2Code
		fallthrough
	case "ADM1":
		crit.Admin1Code = place.Admin1Code
	}
	if parentFeature != "" {
		crit.FeatureClass = "A"
		crit.FeatureCode = parentFeature
	}

	parent, err := s.store.FindPlace(crit)
	if err != nil {
		return err
	}
	if parent != nil {
		place.ParentID = &parent.ID
		s.store.Persist(place)
	}
	return nil
}

// updatePlaceDelete marks deleted places deprecated. Rows are never
// removed: downstream references must keep resolving.
func (s *Service) updatePlaceDelete() error {
	s.cli.Task("applying place deletes")
	dir := filepath.Join(s.dataDir, "update", "place", "delete")
	err := s.eachUpdateFile(dir, func(path string) error {
		return eachLine(path, 0, func(line string) error {
			c := cols(line, 3)
			place, err := s.store.Place(intVal(c[0]))
			if err != nil {
				return err
			}
			if place != nil {
				place.Deprecated = true
				s.store.Persist(place)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

func (s *Service) updateAltNameModify() error {
	s.cli.Task("applying alternate name modifications")
	dir := filepath.Join(s.dataDir, "update", "altName", "modification")
	places := newPlaceCache(s.store)
	languages := newLanguageCache(s.store)
	err := s.eachUpdateFile(dir, func(path string) error {
		return eachLine(path, 0, func(line string) error {
			c := cols(line, 8)
			id := intVal(c[0])
			alt, err := s.store.AltName(id)
			if err != nil {
				return err
			}
			if alt == nil {
				alt = &entity.AltName{ID: id}
			}
			alt.Name = c[3]
			alt.IsPreferred = truthy(c[4])
			alt.IsShort = truthy(c[5])
			alt.IsColloquial = truthy(c[6])
			alt.IsHistoric = truthy(c[7])

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
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

func (s *Service) updateAltNameDelete() error {
	s.cli.Task("applying alternate name deletes")
	dir := filepath.Join(s.dataDir, "update", "altName", "delete")
	err := s.eachUpdateFile(dir, func(path string) error {
		return eachLine(path, 0, func(line string) error {
			c := cols(line, 3)
			alt, err := s.store.AltName(intVal(c[0]))
			if err != nil {
				return err
			}
			if alt != nil {
				alt.Deprecated = true
				s.store.Persist(alt)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return s.store.Flush()
}

// updateCleanup retires processed delta files, keeping the two most
// recent publication dates as a record of what is already downloaded.
func (s *Service) updateCleanup() error {
	s.cli.Task("cleaning update files")
	latest, before := updateDates(s.now())
	keep := []string{latest.Format("2006-01-02"), before.Format("2006-01-02")}

	root := filepath.Join(s.dataDir, "update")
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".done") {
			return nil
		}
		if strings.Contains(path, keep[0]) || strings.Contains(path, keep[1]) {
			return nil
		}
		return os.Remove(path)
	})
}
