// Package testutil provides helpers shared by the salesdash test suites.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// SalesFixture is the file under testdata/ used by end-to-end tests
const SalesFixture = "sales.csv"

// TestServer wraps httptest.Server with request helpers that fail the test on transport errors
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	Client  *http.Client
	t       *testing.T
}

// ProjectRoot returns the directory holding go.mod
func ProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not get caller info")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// TestDataDir returns the path to the shared testdata directory
func TestDataDir() string {
	return filepath.Join(ProjectRoot(), "testdata")
}

// TestEnv returns the environment that points the server at the fixture dataset
func TestEnv() map[string]string {
	return map[string]string{
		"SALESDASH_DATA_DIR":    TestDataDir(),
		"SALESDASH_SOURCE":      "file",
		"SALESDASH_SOURCE_PATH": SalesFixture,
		"SALESDASH_SCOPE":       "dataset",
		"SALESDASH_LISTEN_ADDR": ":0",
	}
}

// SetTestEnv applies TestEnv for the duration of the test
func SetTestEnv(t *testing.T) {
	t.Helper()
	for k, v := range TestEnv() {
		t.Setenv(k, v)
	}
}

// CopyFixture copies a testdata file into dir and returns the destination path
func CopyFixture(t *testing.T, name, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(TestDataDir(), name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, data, 0600); err != nil {
		t.Fatalf("write fixture %s: %v", dst, err)
	}
	return dst
}

// NewTestServer starts an httptest server for router; it is closed on test cleanup
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := server.Client()
	// Redirects are asserted on, not followed
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		Client:  client,
		t:       t,
	}
}

// Do sends a request with an optional body and content type
func (ts *TestServer) Do(method, path, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(method, ts.BaseURL+path, body)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodGet, path, "", nil)
}

// GETWithQuery performs a GET with encoded query parameters. Repeated keys
// and present-but-empty values are preserved.
func (ts *TestServer) GETWithQuery(path string, query url.Values) *http.Response {
	ts.t.Helper()
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return ts.Do(http.MethodGet, path, "", nil)
}

// GETHTML performs a GET that asks for an HTML response
func (ts *TestServer) GETHTML(path string) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.BaseURL+path, nil)
	if err != nil {
		ts.t.Fatalf("GET %s: %v", path, err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := ts.Client.Do(req)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// POST performs a POST request to the given path
func (ts *TestServer) POST(path string, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodPost, path, contentType, body)
}

// PUTJSON marshals v and sends it as a PUT body
func (ts *TestServer) PUTJSON(path string, v any) *http.Response {
	ts.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		ts.t.Fatalf("marshal body for %s: %v", path, err)
	}
	return ts.Do(http.MethodPut, path, "application/json", bytes.NewReader(data))
}

// DELETE performs a DELETE request to the given path
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodDelete, path, "", nil)
}

// ReadBody reads and returns the response body as a string
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return string(body)
}
