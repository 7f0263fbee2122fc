// Package templates renders the dashboard pages. The page set is embedded in
// the binary; a template directory on disk may override it during development.
package templates

import (
	"bufio"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"salesdash/internal/services/metrics"
)

//go:embed layouts/*.html pages/*.html partials/*.html
var embedded embed.FS

// Renderer handles template rendering
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
	fsys      fs.FS
	debug     bool
	currency  string
}

// New creates a renderer. With an empty templateDir the embedded pages are
// used; otherwise pages are read from templateDir and, in debug mode,
// re-read on every request.
func New(templateDir string, debug bool, currency string) (*Renderer, error) {
	var fsys fs.FS = embedded
	if templateDir != "" {
		fsys = os.DirFS(templateDir)
	}
	if currency == "" {
		currency = metrics.DefaultSymbol
	}

	r := &Renderer{fsys: fsys, debug: debug && templateDir != "", currency: currency}
	if err := r.loadTemplates(); err != nil {
		return nil, err
	}
	return r, nil
}

// funcMap returns the template function map
func (r *Renderer) funcMap() template.FuncMap {
	return template.FuncMap{
		"formatMoney": func(d decimal.Decimal) string { return metrics.FormatCurrency(d, r.currency) },
		"formatCount": metrics.FormatCount,
		"formatDate":  formatDate,
		"isoDate":     isoDate,
		"percentOf":   percentOf,
		"add":         add,
		"toJSON":      toJSON,
		"contains":    contains,
		"isNegative":  func(d decimal.Decimal) bool { return d.IsNegative() },
	}
}

// loadTemplates parses all templates with strict validation
func (r *Renderer) loadTemplates() error {
	tmpl := template.New("").Funcs(r.funcMap())

	var templateFiles []string
	for _, subdir := range []string{"layouts", "pages", "partials"} {
		matches, err := fs.Glob(r.fsys, subdir+"/*.html")
		if err != nil {
			return fmt.Errorf("error globbing %s: %w", subdir, err)
		}
		templateFiles = append(templateFiles, matches...)
	}
	if len(templateFiles) == 0 {
		return fmt.Errorf("no template files found")
	}

	// Parse each file individually for better error reporting
	var parseErrors []string
	for _, file := range templateFiles {
		content, err := fs.ReadFile(r.fsys, file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("  %s: failed to read: %v", file, err))
			continue
		}
		if _, err := tmpl.New(path.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}
	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			log.Error().Msg("Template parse error" + e)
		}
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	if err := r.validateTemplateReferences(tmpl, templateFiles); err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	log.Debug().Int("files", len(templateFiles)).Msg("Templates loaded")
	return nil
}

// formatTemplateError formats a template error with file context
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  File: %s\n", file)

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)
	if lineNum <= 0 {
		fmt.Fprintf(&sb, "  Error: %s\n", errStr)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Line: %d\n  Error: %s\n  Context:\n", lineNum, errStr)
	lines := strings.Split(content, "\n")
	start := max(lineNum-3, 0)
	end := min(lineNum+2, len(lines))
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == lineNum {
			marker = ">>>"
		}
		fmt.Fprintf(&sb, "    %s %4d | %s\n", marker, i+1, lines[i])
	}
	return sb.String()
}

var lineNumberRe = regexp.MustCompile(`:(\d+):`)

// extractLineNumber tries to extract a line number from a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) < 2 {
		return 0
	}
	var lineNum int
	fmt.Sscanf(matches[1], "%d", &lineNum)
	return lineNum
}

var templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)

// validateTemplateReferences checks that all {{template "name"}} calls reference defined templates
func (r *Renderer) validateTemplateReferences(tmpl *template.Template, files []string) error {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			defined[t.Name()] = true
		}
	}

	var refErrors []string
	for _, file := range files {
		content, err := fs.ReadFile(r.fsys, file)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			for _, match := range templateCallRe.FindAllStringSubmatch(scanner.Text(), -1) {
				if !defined[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf("%s:%d: undefined template %q", file, lineNum, match[1]))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		for _, e := range refErrors {
			log.Error().Msg(e)
		}
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}
	return nil
}

// Reload reloads templates (useful for development)
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

// Render renders a full page with the base layout
func (r *Renderer) Render(w http.ResponseWriter, name string, data any) error {
	return r.render(w, name, data)
}

// RenderPartial renders a partial template (no base layout)
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data any) error {
	return r.render(w, name, data)
}

func (r *Renderer) render(w http.ResponseWriter, name string, data any) error {
	if r.debug {
		if err := r.loadTemplates(); err != nil {
			log.Error().Err(err).Msg("Error reloading templates")
		}
	}

	// Render into a buffer so a failing template never sends half a page
	var buf strings.Builder
	if err := r.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Error rendering template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, buf.String())
	return err
}

// ExecuteTemplate executes a template to a writer
func (r *Renderer) ExecuteTemplate(w io.Writer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// Template functions

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// percentOf returns part as a percentage of whole, one decimal place
func percentOf(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0.0"
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func add(a, b int) int {
	return a + b
}

// toJSON marshals v for embedding in a script block
func toJSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("toJSON")
		return template.JS("null")
	}
	return template.JS(b)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
