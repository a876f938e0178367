// Package entity defines the persistent GeoNames entities.
// Surrogate IDs are store-assigned; Place and AltName carry the
// upstream geoname ID instead.
package entity

// Place is a single gazetteer row from the main dump. Upstream "deletes"
// only flip Deprecated so historical references stay resolvable.
type Place struct {
	ID           int `gorm:"primaryKey;autoIncrement:false"`
	Name         string
	Latitude     float64
	Longitude    float64
	Elevation    *int
	DigiEleModel *int
	Population   *int64
	CountryCode  string `gorm:"size:2;index"`
	Admin1Code   string `gorm:"size:20"`
	Admin2Code   string `gorm:"size:80"`
	Admin3Code   string `gorm:"size:20"`
	Admin4Code   string `gorm:"size:20"`
	Deprecated   bool

	FeatureID  *uint
	Feature    *Feature
	TimezoneID *uint
	Timezone   *Timezone

	// Self-referential tree: nil ParentID means no resolved parent.
	ParentID *int
	Parent   *Place
	Children []*Place `gorm:"foreignKey:ParentID"`

	AltNames []*AltName `gorm:"foreignKey:PlaceID"`

	// Countries that use this place as capital/reference point.
	Countries []*Country `gorm:"foreignKey:PlaceID"`
}

// Feature is a two-level feature taxonomy node: class letter ("A") at the
// root, leaf code ("ADM1") below it. Upstream natural key is "class.code".
type Feature struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"size:10;index"`
	Description string
	Comment     string

	ParentID *uint
	Parent   *Feature
	Children []*Feature `gorm:"foreignKey:ParentID"`
	Places   []*Place   `gorm:"foreignKey:FeatureID"`
}

// Country is one row of countryInfo.txt. Area and Population are nil when
// upstream reports the literal "NA".
type Country struct {
	ID              uint   `gorm:"primaryKey"`
	Iso2            string `gorm:"size:2;index"`
	Iso3            string `gorm:"size:3"`
	IsoNum          string `gorm:"size:3"`
	Capital         string
	Area            *float64
	Population      *int64
	Tld             string `gorm:"size:10"`
	Phone           string `gorm:"size:30"`
	PostalCode      string
	PostalCodeRegex string

	PlaceID     *int
	Place       *Place
	ContinentID *int
	Continent   *Place `gorm:"foreignKey:ContinentID"`

	CurrencyID   *uint
	Currency     *Currency
	MainLocaleID *uint
	MainLocale   *Locale

	Locales []*Locale `gorm:"many2many:country_locales"`

	// Symmetric in the world, stored from one side only.
	Neighbours []*Country `gorm:"many2many:country_neighbours;joinForeignKey:CountryID;joinReferences:NeighbourID"`

	Timezones []*Timezone `gorm:"foreignKey:CountryID"`
}

// Currency is an ISO 4217 currency, deduplicated by code.
type Currency struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:3;index"`
	Name      string
	Countries []*Country `gorm:"foreignKey:CurrencyID"`
}

// Locale is a normalized language_COUNTRY code, e.g. "en_GB".
type Locale struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"size:20;index"`
	LanguageID *uint
	Language   *Language
}

// Language rows come from two uncoordinated sources: the iso-languagecodes
// pass (fully populated) and locale parsing (iso2-only stubs), so partially
// populated rows are expected.
type Language struct {
	ID      uint      `gorm:"primaryKey"`
	Name    string
	Iso3    string    `gorm:"size:3;index"`
	Iso2    string    `gorm:"size:3;index"`
	Iso1    string    `gorm:"size:2;index"`
	Locales []*Locale `gorm:"foreignKey:LanguageID"`
}

// Timezone is an IANA timezone with its offset triad.
type Timezone struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:40;index"`
	Offset    float64
	OffsetJan float64
	OffsetJul float64

	CountryID *uint
	Country   *Country
	Places    []*Place `gorm:"foreignKey:TimezoneID"`
}

// AltName is an alternate/localized place name. Language is set when the
// upstream code resolves to a known Language; otherwise the raw code is
// kept in LanguageOther. Never both.
type AltName struct {
	ID            int `gorm:"primaryKey;autoIncrement:false"`
	Name          string
	IsPreferred   bool
	IsShort       bool
	IsColloquial  bool
	IsHistoric    bool
	Deprecated    bool
	LanguageOther string `gorm:"size:10"`

	PlaceID    *int
	Place      *Place
	LanguageID *uint
	Language   *Language
}
