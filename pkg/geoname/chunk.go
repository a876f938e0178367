package geoname

import (
	"github.com/geosync/geosync/pkg/filelock"
)

// processChunkDir claims at most one chunk from dir, runs fn on the
// locked file, marks it done, and reports whether the directory is
// drained. When no chunk is claimable the markers are reset so the next
// install cycle starts clean, and done is true so the caller advances
// the pipeline.
func (s *Service) processChunkDir(dir string, fn func(path string) error) (done bool, err error) {
	files, err := filelock.Available(dir)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if !filelock.Acquire(f) {
			continue
		}
		s.cli.Item("chunk " + f)
		if err := fn(f + ".lock"); err != nil {
			return false, err
		}
		filelock.Complete(f)
		return false, nil
	}
	if err := filelock.Reset(dir); err != nil {
		return false, err
	}
	return true, nil
}
