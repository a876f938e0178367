package geoname

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Dump lines can exceed bufio's default token size once alternate names
// pile up, so give the scanner generous headroom.
const maxLineSize = 1 << 20

// eachLine streams a tab-separated file through fn, skipping the first
// skip lines. A missing file is not an error: the stage simply has
// nothing to ingest yet.
func eachLine(path string, skip int, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for i := 0; sc.Scan(); i++ {
		if i < skip {
			continue
		}
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// cols splits a tab-separated line, padding with empty strings so that
// callers can index short rows safely.
func cols(line string, n int) []string {
	parts := strings.Split(line, "\t")
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

func intVal(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func floatVal(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func intPtr(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func int64Ptr(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func floatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// truthy mirrors the loose boolean columns of the alternate-names dump:
// any non-empty value except a literal zero counts as true.
func truthy(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "0"
}
