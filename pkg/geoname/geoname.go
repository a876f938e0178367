// Package geoname implements the GeoNames ingestion and synchronization
// pipeline.
//
// A single persistent checkpoint row (entity.Meta) drives a sequence of
// idempotent stages. Large dump files are split into chunk files and each
// invocation processes at most one chunk, so a run always fits inside a
// constrained host's execution window; resumability lives entirely in the
// filesystem (.lock/.done markers) and the checkpoint row.
package geoname

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/geosync/geosync/internal/entity"
	"github.com/geosync/geosync/pkg/config"
	"github.com/geosync/geosync/pkg/fetch"
	"github.com/geosync/geosync/pkg/store"
	"github.com/geosync/geosync/pkg/tui"
)

// dumpFiles are the six install-time source files, relative to the
// upstream base URL.
var dumpFiles = []string{
	"countryInfo.txt",
	"featureCodes_en.txt",
	// iso-languagecodes.txt ships inside alternateNames.zip
	"timeZones.txt",
	"hierarchy.zip",
	"alternateNames.zip",
	"allCountries.zip",
}

// Service runs the pipeline. One Run call performs exactly one unit of
// work: a full small stage, or a single chunk of a multi-chunk stage.
type Service struct {
	store   store.Store
	fetcher *fetch.Fetcher
	cli     *tui.Writer
	dataDir string
	baseURL string
	chunks  config.ChunksConfig

	// now is swapped in tests to pin the update-date arithmetic.
	now func() time.Time
}

// New creates a Service from the loaded configuration.
func New(st store.Store, f *fetch.Fetcher, cli *tui.Writer, cfg *config.Config) *Service {
	if cli == nil {
		cli = tui.Discard
	}
	return &Service{
		store:   st,
		fetcher: f,
		cli:     cli,
		dataDir: cfg.Source.DataDir,
		baseURL: cfg.Source.BaseURL,
		chunks:  cfg.Source.Chunks,
		now:     time.Now,
	}
}

// Run is the pipeline entry point, called once per scheduler tick. It
// fetches today's delta files, then dispatches the stage matching the
// current checkpoint status. A locked checkpoint makes the whole call a
// no-op: a concurrent run owns the pipeline.
func (s *Service) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]

	s.downloadUpdate(ctx)

	meta, err := s.store.Meta()
	if err != nil {
		return err
	}
	if meta.Locked {
		s.cli.Item("run " + runID + ": checkpoint locked, skipping")
		return nil
	}

	meta.Locked = true
	s.store.Persist(meta)
	if err := s.store.Flush(); err != nil {
		return err
	}

	s.cli.Section(fmt.Sprintf("run %s: %s", runID, meta.Status))
	stageErr := s.dispatch(ctx, meta)

	meta.Locked = false
	s.store.Persist(meta)
	if err := s.store.Flush(); err != nil {
		return err
	}
	return stageErr
}

// dispatch executes the stage for the current status and advances the
// status. Multi-chunk stages advance only once their chunk directory is
// fully drained.
func (s *Service) dispatch(ctx context.Context, meta *entity.Meta) error {
	switch meta.Status {
	case entity.StatusInstallDownload:
		if err := s.installDownload(ctx); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallPrepare
	case entity.StatusInstallPrepare:
		if err := s.installPrepare(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallLanguage
	case entity.StatusInstallLanguage:
		if err := s.installLanguage(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallFeature
	case entity.StatusInstallFeature:
		if err := s.installFeature(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallPlace
	case entity.StatusInstallPlace:
		done, err := s.installPlace()
		if err != nil {
			return err
		}
		if done {
			meta.Status = entity.StatusInstallCountryCurrencyLocale
		}
	case entity.StatusInstallCountryCurrencyLocale:
		if err := s.installCountryCurrencyLocale(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallTimezone
	case entity.StatusInstallTimezone:
		if err := s.installTimezone(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallNeighbour
	case entity.StatusInstallNeighbour:
		if err := s.installNeighbour(); err != nil {
			return err
		}
		meta.Status = entity.StatusInstallPlaceTimezone
	case entity.StatusInstallPlaceTimezone:
		done, err := s.installPlaceTimezone()
		if err != nil {
			return err
		}
		if done {
			meta.Status = entity.StatusInstallHierarchy
		}
	case entity.StatusInstallHierarchy:
		done, err := s.installHierarchy()
		if err != nil {
			return err
		}
		if done {
			meta.Status = entity.StatusInstallAltName
		}
	case entity.StatusInstallAltName:
		done, err := s.installAltName()
		if err != nil {
			return err
		}
		if done {
			meta.Status = entity.StatusInstallCleanup
		}
	case entity.StatusInstallCleanup:
		if err := s.installCleanup(); err != nil {
			return err
		}
		meta.Status = entity.StatusUpdate
	case entity.StatusUpdate:
		if err := s.updatePlaceModify(); err != nil {
			return err
		}
		if err := s.updatePlaceDelete(); err != nil {
			return err
		}
		if err := s.updateAltNameModify(); err != nil {
			return err
		}
		if err := s.updateAltNameDelete(); err != nil {
			return err
		}
		return s.updateCleanup()
	default:
		return fmt.Errorf("unknown pipeline status %d", meta.Status)
	}
	return nil
}

// updateDates computes the newest delta date the publisher should have,
// and the one before it. Upstream refreshes at roughly 02:00 UTC: before
// the cutoff the newest complete delta is two days old.
func updateDates(now time.Time) (latest, before time.Time) {
	l := now.UTC().AddDate(0, 0, -1)
	cutoff := time.Date(l.Year(), l.Month(), l.Day(), 2, 0, 0, 0, time.UTC)
	if !l.After(cutoff) {
		l = l.AddDate(0, 0, -1)
	}
	return l, l.AddDate(0, 0, -1)
}

// updateDeltaDirs maps the update subtree to its upstream delta file
// name pattern.
var updateDeltaDirs = map[string]string{
	"update/place/modification":   "modifications-%s.txt",
	"update/place/delete":         "deletes-%s.txt",
	"update/altName/modification": "alternateNamesModifications-%s.txt",
	"update/altName/delete":       "alternateNamesDeletes-%s.txt",
}

// downloadUpdate fetches today's delta files. Failures are logged and
// retried on the next invocation; they never abort the run.
func (s *Service) downloadUpdate(ctx context.Context) {
	latest, _ := updateDates(s.now())
	date := latest.Format("2006-01-02")

	for dir := range updateDeltaDirs {
		if err := os.MkdirAll(filepath.Join(s.dataDir, dir), 0755); err != nil {
			s.cli.Err("preparing " + dir + ": " + err.Error())
			return
		}
	}

	s.cli.Section("download updates")
	g, ctx := errgroup.WithContext(ctx)
	for dir, pattern := range updateDeltaDirs {
		name := fmt.Sprintf(pattern, date)
		url := s.baseURL + "/" + name
		dest := filepath.Join(s.dataDir, dir, name)
		g.Go(func() error {
			s.cli.Item(url)
			if _, err := s.fetcher.Download(ctx, url, dest); err != nil {
				s.cli.Err(err.Error())
			}
			return nil
		})
	}
	g.Wait()
}
