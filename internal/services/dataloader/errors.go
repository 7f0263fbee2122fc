package dataloader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoHeader      = errors.New("no header row")
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyValue    = errors.New("empty required value")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidNumber = errors.New("invalid number")
)

// LoadError reports why a source could not be turned into a dataset.
// It is fatal: no partial dataset is returned alongside it.
type LoadError struct {
	Source string
	Line   int    // 1-based row in the source, 0 when not row specific
	Column string // standard column name, when known
	Err    error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString("load ")
	sb.WriteString(e.Source)
	if e.Line > 0 {
		fmt.Fprintf(&sb, ": line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, ": column %q", e.Column)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
