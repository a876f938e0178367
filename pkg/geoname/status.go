package geoname

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/geosync/geosync/internal/entity"
)

// ChunkProgress counts chunk files in one directory by marker state.
type ChunkProgress struct {
	Pending int
	Locked  int
	Done    int
}

// Progress is a point-in-time snapshot of the pipeline for reporting.
type Progress struct {
	Status entity.Status
	Locked bool
	Chunks map[string]ChunkProgress
}

// Progress inspects the checkpoint and chunk directories without
// claiming any work.
func (s *Service) Progress() (*Progress, error) {
	meta, err := s.store.Meta()
	if err != nil {
		return nil, err
	}
	p := &Progress{
		Status: meta.Status,
		Locked: meta.Locked,
		Chunks: make(map[string]ChunkProgress),
	}
	for _, dir := range []string{"allCountries", "hierarchy", "alternateNames"} {
		entries, err := os.ReadDir(filepath.Join(s.dataDir, dir))
		if err != nil {
			continue
		}
		var cp ChunkProgress
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch {
			case strings.HasSuffix(e.Name(), ".done"):
				cp.Done++
			case strings.HasSuffix(e.Name(), ".lock"):
				cp.Locked++
			default:
				cp.Pending++
			}
		}
		p.Chunks[dir] = cp
	}
	return p, nil
}
