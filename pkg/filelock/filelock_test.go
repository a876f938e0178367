package filelock

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireCompleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk")
	touch(t, path)

	if !Acquire(path) {
		t.Fatal("fresh file should be claimable")
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatal("lock marker missing")
	}
	if Acquire(path) {
		t.Error("claimed file must not be claimable again")
	}

	if !Complete(path) {
		t.Fatal("locked file should complete")
	}
	if _, err := os.Stat(path + ".done"); err != nil {
		t.Fatal("done marker missing")
	}
	if Complete(path) {
		t.Error("completed file must not complete again")
	}
	if Acquire(path) {
		t.Error("completed file must not be claimable")
	}
}

func TestAcquireRefusesMarkerPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"chunk.lock", "chunk.done"} {
		path := filepath.Join(dir, name)
		touch(t, path)
		if Acquire(path) {
			t.Errorf("Acquire(%s) = true, want false", name)
		}
	}
}

func TestCompleteWithoutLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk")
	touch(t, path)
	if Complete(path) {
		t.Error("Complete without a prior Acquire must be a no-op")
	}
}

func TestResetRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, "a.lock"))
	touch(t, filepath.Join(dir, "b.done"))
	touch(t, filepath.Join(dir, "c"))
	touch(t, filepath.Join(sub, "d.done"))

	if err := Reset(dir); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a", "b", "c", "sub/d"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing after reset", name)
		}
	}
	left, err := filepath.Glob(filepath.Join(dir, "*.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("markers left after reset: %v", left)
	}
}

func TestAvailableSkipsMarkers(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "1"))
	touch(t, filepath.Join(dir, "2.lock"))
	touch(t, filepath.Join(dir, "3.done"))

	files, err := Available(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "1" {
		t.Errorf("Available = %v, want [1]", files)
	}
}

func TestSplitBoundaries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.txt")

	// 3n+1 lines: three full chunks plus a one-line tail
	var sb strings.Builder
	for i := 1; i <= 7; i++ {
		sb.WriteString("line")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString("\n")
	}
	if err := os.WriteFile(src, []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "chunks")
	if err := Split(src, out, 2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"1", "line1\nline2\n"},
		{"3", "line3\nline4\n"},
		{"5", "line5\nline6\n"},
		{"7", "line7\n"},
	}
	for _, tt := range tests {
		got, err := os.ReadFile(filepath.Join(out, tt.name))
		if err != nil {
			t.Fatalf("chunk %s: %v", tt.name, err)
		}
		if string(got) != tt.content {
			t.Errorf("chunk %s = %q, want %q", tt.name, got, tt.content)
		}
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("got %d chunks, want 4", len(entries))
	}
}

func TestSplitRejectsBadChunkSize(t *testing.T) {
	if err := Split("unused", t.TempDir(), 0); err == nil {
		t.Error("zero chunk size should error")
	}
}

func TestSplitReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(src, []byte("a\nb\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "chunks")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	// the first chunk lands on a device that rejects every write
	if err := os.Symlink("/dev/full", filepath.Join(out, "1")); err != nil {
		t.Fatal(err)
	}

	if err := Split(src, out, 10); err == nil {
		t.Error("write failure must surface as an error")
	}
}

func TestUnzipFlattens(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	members := []struct {
		name    string
		content string
	}{
		{"allCountries.txt", "data\n"},
		{"nested/iso-languagecodes.txt", "langs\n"},
	}
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(m.content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := Unzip(zipPath, dest); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"allCountries.txt", "iso-languagecodes.txt"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("%s not extracted", name)
		}
	}
}

func TestUnzipRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.zip")
	touch(t, path)
	if err := Unzip(path, dir); err == nil {
		t.Error("non-archive input should error")
	}
}
