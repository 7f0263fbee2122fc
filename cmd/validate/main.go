// Command validate smoke-checks every endpoint of a running sales dashboard.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	method      string
	status      int
	contentType string
	contains    []string
}

var endpoints = []endpoint{
	// Pages
	{path: "/dashboard", contentType: "text/html", contains: []string{"Total Sales", "Operating Profit", "Total Orders"}},
	{path: "/explorer", contentType: "text/html", contains: []string{"Filtered rows"}},

	// Dashboard
	{path: "/dashboard/kpis", contentType: "text/html", contains: []string{"Total Sales"}},
	{path: "/api/dashboard", contentType: "application/json", contains: []string{`"kpis"`, `"charts"`}},
	{path: "/api/dashboard?state=", contentType: "application/json", contains: []string{`"row_count":0`}},
	{path: "/api/dashboard?start=2021-12-31&end=2021-01-01", status: http.StatusBadRequest, contentType: "application/json"},
	{path: "/api/filters", contentType: "application/json", contains: []string{`"options"`, `"default"`}},
	{path: "/api/charts/profit_by_state", contentType: "application/json"},
	{path: "/api/charts/sales_by_category", contentType: "application/json"},
	{path: "/api/charts/sales_by_method", contentType: "application/json"},
	{path: "/api/charts/sales_by_retailer", contentType: "application/json"},
	{path: "/api/charts/monthly_sales", contentType: "application/json"},
	{path: "/api/charts/category_heatmap", contentType: "application/json"},
	{path: "/api/charts/nope", status: http.StatusNotFound, contentType: "application/json"},

	// Explorer
	{path: "/explorer/rows", contentType: "application/json", contains: []string{`"total_count"`}},

	// System
	{path: "/api/health", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", contentType: "application/json", contains: []string{`"version"`}},
	{path: "/metrics", contentType: "text/plain", contains: []string{"salesdash_recompute_total"}},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	_, failed := run(client, strings.TrimRight(*url, "/"), *verbose, os.Stdout)
	if failed > 0 {
		os.Exit(1)
	}
}

// run checks every endpoint, then walks one session through its lifecycle
func run(client *http.Client, baseURL string, verbose bool, out io.Writer) (passed, failed int) {
	fmt.Fprintf(out, "Validating server at %s\n", baseURL)
	fmt.Fprintf(out, "Testing %d endpoints plus the session flow...\n\n", len(endpoints))

	report := func(r result) {
		ep := r.endpoint
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s %s\n", ep.method, ep.path)
			fmt.Fprintf(out, "     Error: %v\n", r.err)
			return
		}
		passed++
		if verbose {
			fmt.Fprintf(out, "PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
		}
	}

	for _, ep := range endpoints {
		report(validateEndpoint(client, baseURL, ep))
	}

	create := validateEndpoint(client, baseURL, endpoint{
		path: "/api/sessions", method: http.MethodPost, status: http.StatusCreated,
		contentType: "application/json", contains: []string{`"id"`},
	})
	report(create)
	if create.err == nil {
		var sess struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(create.body), &sess); err != nil || sess.ID == "" {
			report(result{endpoint: create.endpoint, err: fmt.Errorf("session id missing from %q", create.body)})
		} else {
			path := "/api/sessions/" + sess.ID
			for _, ep := range []endpoint{
				{path: path, contentType: "application/json", contains: []string{sess.ID}},
				{path: path + "/filter?state=", method: http.MethodPut, contentType: "application/json", contains: []string{`"row_count":0`}},
				{path: path, method: http.MethodDelete, status: http.StatusNoContent},
				{path: path, status: http.StatusNotFound, contentType: "application/json"},
			} {
				report(validateEndpoint(client, baseURL, ep))
			}
		}
	}

	fmt.Fprintf(out, "\n========================================\n")
	fmt.Fprintf(out, "Results: %d passed, %d failed\n", passed, failed)
	return passed, failed
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint) result {
	if ep.method == "" {
		ep.method = http.MethodGet
	}
	if ep.status == 0 {
		ep.status = http.StatusOK
	}
	start := time.Now()

	req, err := http.NewRequest(ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
		body:     string(body),
	}

	if r.status != ep.status {
		r.err = fmt.Errorf("status %d, expected %d", r.status, ep.status)
		return r
	}

	if ep.contentType != "" {
		ct := resp.Header.Get("Content-Type")
		if !strings.Contains(ct, ep.contentType) {
			r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
			return r
		}
	}

	if ep.contentType == "application/json" {
		var js any
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	for _, needle := range ep.contains {
		if !strings.Contains(r.body, needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
