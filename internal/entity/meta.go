package entity

// Status enumerates the pipeline stages in execution order. Values are
// persisted, so they never change meaning.
type Status int

const (
	StatusInstallDownload Status = iota + 1
	StatusInstallPrepare
	StatusInstallLanguage
	StatusInstallFeature
	StatusInstallPlace
	StatusInstallCountryCurrencyLocale
	StatusInstallTimezone
	StatusInstallNeighbour
	StatusInstallPlaceTimezone
	StatusInstallHierarchy
	StatusInstallAltName
	StatusInstallCleanup

	// StatusUpdate is terminal: the pipeline self-loops applying daily
	// delta files.
	StatusUpdate Status = 99
)

// String returns the stage name for logs and the status command.
func (s Status) String() string {
	switch s {
	case StatusInstallDownload:
		return "install:download"
	case StatusInstallPrepare:
		return "install:prepare"
	case StatusInstallLanguage:
		return "install:language"
	case StatusInstallFeature:
		return "install:feature"
	case StatusInstallPlace:
		return "install:place"
	case StatusInstallCountryCurrencyLocale:
		return "install:country-currency-locale"
	case StatusInstallTimezone:
		return "install:timezone"
	case StatusInstallNeighbour:
		return "install:neighbour"
	case StatusInstallPlaceTimezone:
		return "install:place-timezone"
	case StatusInstallHierarchy:
		return "install:hierarchy"
	case StatusInstallAltName:
		return "install:alt-name"
	case StatusInstallCleanup:
		return "install:cleanup"
	case StatusUpdate:
		return "update"
	}
	return "unknown"
}

// Meta is the singleton checkpoint row driving the pipeline state machine.
// Locked is the advisory mutual-exclusion flag between invocations.
type Meta struct {
	ID     uint `gorm:"primaryKey"`
	Status Status
	Locked bool
}
