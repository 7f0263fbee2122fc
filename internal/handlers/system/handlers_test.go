package system

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"salesdash/internal/services/storage"
)

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := storage.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EnableEncryption("exportpassword"); err != nil {
		t.Fatal(err)
	}
	Initialize(s, t.TempDir())

	rec := httptest.NewRecorder()
	HandleExport(rec, httptest.NewRequest(http.MethodGet, "/api/dataset/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "sales.csv" {
		t.Fatalf("zip entries = %v", zr.File)
	}
	f, _ := zr.File[0].Open()
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("export should be decrypted, got %q", data)
	}

	s.Lock()
	rec = httptest.NewRecorder()
	HandleExport(rec, httptest.NewRequest(http.MethodGet, "/api/dataset/export", nil))
	if rec.Code == http.StatusOK {
		t.Error("locked store should not export")
	}
}

func TestPlotlyCache(t *testing.T) {
	cache := t.TempDir()
	Initialize(nil, cache)

	calls := 0
	fetch = func(string) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(strings.NewReader("/* plotly */")),
		}, nil
	}
	t.Cleanup(func() { fetch = cdn.Get })

	for range 2 {
		rec := httptest.NewRecorder()
		HandlePlotly(rec, httptest.NewRequest(http.MethodGet, "/static/plotly.min.js", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "/* plotly */" {
			t.Errorf("plotly = %d %q", rec.Code, rec.Body.String())
		}
	}
	if calls != 1 {
		t.Errorf("fetched %d times, want 1", calls)
	}
}

func TestPlotlyFetchTimeout(t *testing.T) {
	if cdn.Timeout != fetchTimeout || fetchTimeout <= 0 {
		t.Fatalf("CDN client timeout = %v, want %v", cdn.Timeout, fetchTimeout)
	}

	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hung.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	Initialize(nil, t.TempDir())
	fetch = func(string) (*http.Response, error) { return client.Get(hung.URL) }
	t.Cleanup(func() { fetch = cdn.Get })

	rec := httptest.NewRecorder()
	HandlePlotly(rec, httptest.NewRequest(http.MethodGet, "/static/plotly.min.js", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 after timeout", rec.Code)
	}
}

func TestPlotlyFetchError(t *testing.T) {
	Initialize(nil, t.TempDir())
	fetch = func(string) (*http.Response, error) { return nil, errors.New("offline") }
	t.Cleanup(func() { fetch = cdn.Get })

	rec := httptest.NewRecorder()
	HandlePlotly(rec, httptest.NewRequest(http.MethodGet, "/static/plotly.min.js", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
