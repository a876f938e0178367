package store

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/geosync/geosync/internal/entity"
	gserrors "github.com/geosync/geosync/pkg/errors"
)

// DB is the GORM-backed Store.
type DB struct {
	orm     *gorm.DB
	pending []interface{}
	seen    map[interface{}]struct{}
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string) (*DB, error) {
	orm, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreInit, "opening "+path)
	}

	if err := orm.AutoMigrate(
		&entity.Language{},
		&entity.Currency{},
		&entity.Feature{},
		&entity.Timezone{},
		&entity.Place{},
		&entity.Locale{},
		&entity.Country{},
		&entity.AltName{},
		&entity.Meta{},
	); err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreInit, "migrating schema")
	}

	return &DB{orm: orm, seen: make(map[interface{}]struct{})}, nil
}

// Persist implements Store.
func (s *DB) Persist(v interface{}) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.pending = append(s.pending, v)
}

// Flush implements Store. Entities are upserted in registration order so
// that referenced rows created in the same run land first.
func (s *DB) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.orm.Transaction(func(tx *gorm.DB) error {
		for _, v := range s.pending {
			res := tx.Session(&gorm.Session{FullSaveAssociations: true}).
				Clauses(clause.OnConflict{UpdateAll: true}).
				Create(v)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return gserrors.Wrap(err, gserrors.CodeStoreWrite, "flushing unit of work")
	}
	s.pending = s.pending[:0]
	s.seen = make(map[interface{}]struct{})
	return nil
}

// Meta implements Store.
func (s *DB) Meta() (*entity.Meta, error) {
	var m entity.Meta
	err := s.orm.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = entity.Meta{Status: entity.StatusInstallDownload}
		if err := s.orm.Create(&m).Error; err != nil {
			return nil, gserrors.Wrap(err, gserrors.CodeStoreWrite, "creating meta row")
		}
		return &m, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "loading meta row")
	}
	return &m, nil
}

// Place implements Store.
func (s *DB) Place(id int) (*entity.Place, error) {
	var p entity.Place
	err := s.orm.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding place")
	}
	return &p, nil
}

// AltName implements Store.
func (s *DB) AltName(id int) (*entity.AltName, error) {
	var a entity.AltName
	err := s.orm.First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding alt name")
	}
	return &a, nil
}

// FeatureByCode implements Store.
func (s *DB) FeatureByCode(code string) (*entity.Feature, error) {
	class, leaf, ok := splitFeatureCode(code)
	if !ok {
		return nil, nil
	}
	var f entity.Feature
	err := s.orm.
		Joins("JOIN features parents ON parents.id = features.parent_id").
		Where("features.code = ? AND parents.code = ?", leaf, class).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding feature")
	}
	return &f, nil
}

// FeatureByClass implements Store.
func (s *DB) FeatureByClass(class string) (*entity.Feature, error) {
	var f entity.Feature
	err := s.orm.Where("code = ? AND parent_id IS NULL", class).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding feature class")
	}
	return &f, nil
}

// CountryByISO2 implements Store. Neighbours are preloaded because the
// neighbour stage inspects both sides of the relation.
func (s *DB) CountryByISO2(code string) (*entity.Country, error) {
	var c entity.Country
	err := s.orm.Preload("Neighbours").Where("iso2 = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding country")
	}
	return &c, nil
}

// TimezoneByCode implements Store.
func (s *DB) TimezoneByCode(code string) (*entity.Timezone, error) {
	var tz entity.Timezone
	err := s.orm.Where("code = ?", code).First(&tz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding timezone")
	}
	return &tz, nil
}

// Language implements Store.
func (s *DB) Language(code string) (*entity.Language, error) {
	var l entity.Language
	err := s.orm.
		Where("iso3 = ? OR iso2 = ? OR iso1 = ?", code, code, code).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding language")
	}
	return &l, nil
}

// LanguageByISO2 implements Store.
func (s *DB) LanguageByISO2(code string) (*entity.Language, error) {
	var l entity.Language
	err := s.orm.Where("iso2 = ?", code).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding language by iso2")
	}
	return &l, nil
}

// FindPlace implements Store.
func (s *DB) FindPlace(crit PlaceCriteria) (*entity.Place, error) {
	q := s.orm.Model(&entity.Place{}).
		Where("places.country_code = ?", crit.CountryCode).
		Where("places.admin1_code = ?", crit.Admin1Code).
		Where("places.admin2_code = ?", crit.Admin2Code).
		Where("places.admin3_code = ?", crit.Admin3Code)

	if crit.FeatureCode != "" || crit.FeatureClass != "" {
		q = q.Joins("JOIN features ON features.id = places.feature_id").
			Joins("JOIN features parents ON parents.id = features.parent_id")
		if crit.FeatureCode != "" {
			q = q.Where("features.code = ?", crit.FeatureCode)
		}
		if crit.FeatureClass != "" {
			q = q.Where("parents.code = ?", crit.FeatureClass)
		}
	}

	var p entity.Place
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gserrors.Wrap(err, gserrors.CodeStoreQuery, "finding place by criteria")
	}
	return &p, nil
}

func splitFeatureCode(code string) (class, leaf string, ok bool) {
	for i := 0; i < len(code); i++ {
		if code[i] == '.' {
			return code[:i], code[i+1:], i > 0 && i < len(code)-1
		}
	}
	return "", "", false
}
