package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})

	dest := filepath.Join(t.TempDir(), "countryInfo.txt")
	f := New(5 * time.Second)

	fetched, err := f.Download(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatal(err)
	}
	if !fetched {
		t.Error("fresh destination should be fetched")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q, want %q", got, "payload")
	}
	if _, err := os.Stat(dest + ".lock"); !os.IsNotExist(err) {
		t.Error("staging file left behind")
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request made despite existing destination")
	})
	f := New(5 * time.Second)

	for _, suffix := range []string{"", ".lock", ".done"} {
		dir := t.TempDir()
		dest := filepath.Join(dir, "file.txt")
		if err := os.WriteFile(dest+suffix, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		fetched, err := f.Download(context.Background(), srv.URL, dest)
		if err != nil {
			t.Fatal(err)
		}
		if fetched {
			t.Errorf("destination with %q marker should be skipped", suffix)
		}
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	f := New(5 * time.Second)

	dest := filepath.Join(t.TempDir(), "modifications-2026-09-01.txt")
	_, err := f.Download(context.Background(), srv.URL, dest)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no file should be written on 404")
	}
}

func TestDownloadServerError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	f := New(5 * time.Second)

	dest := filepath.Join(t.TempDir(), "file.txt")
	_, err := f.Download(context.Background(), srv.URL, dest)
	if err == nil {
		t.Fatal("5xx should be an error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("5xx must not look like a missing file")
	}
}
