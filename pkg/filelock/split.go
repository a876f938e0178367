package filelock

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gserrors "github.com/geosync/geosync/pkg/errors"
)

// maxLine bounds a single dump line; alternate-name rows carry long
// multi-byte names but stay far below this.
const maxLine = 1 << 20

// Split streams src into chunk files under dir, each holding up to lines
// lines. Chunks are named by their 1-based starting line number, so
// re-running against an unchanged source produces identical boundaries.
func Split(src, dir string, lines int) error {
	if lines < 1 {
		return fmt.Errorf("chunk line count must be positive, got %d", lines)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var out *os.File
	var w *bufio.Writer
	cur := 1
	for scanner.Scan() {
		if (cur-1)%lines == 0 {
			if out != nil {
				if err := w.Flush(); err != nil {
					out.Close()
					return err
				}
				if err := out.Close(); err != nil {
					return err
				}
			}
			out, err = os.Create(filepath.Join(dir, fmt.Sprintf("%d", cur)))
			if err != nil {
				return err
			}
			w = bufio.NewWriter(out)
		}
		w.WriteString(scanner.Text())
		w.WriteByte('\n')
		cur++
	}
	if out != nil {
		if err := w.Flush(); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Unzip extracts every file in the archive into destDir, flattening any
// directory structure. GeoNames archives are flat single-level zips.
func Unzip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return gserrors.Wrap(err, gserrors.CodeArchiveInvalid, "opening "+zipPath)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		if err := extractFile(f, filepath.Join(destDir, name)); err != nil {
			return gserrors.Wrap(err, gserrors.CodeArchiveInvalid, "extracting "+f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}
