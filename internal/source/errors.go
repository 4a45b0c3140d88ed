package source

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PhaseListTables  = "list-tables"
	PhaseListColumns = "list-columns"
	PhaseReadData    = "read-data"
)

// ErrEmptyTableName is returned when a lister or reader is asked about a table
// without a name.
var ErrEmptyTableName = errors.New("table name is required")

// ConnectionError means the database could not be reached. It is terminal for
// the run.
type ConnectionError struct {
	Driver string
	Addr   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s connection failed: %v", e.Driver, e.Err)
	}
	return fmt.Sprintf("%s connection to %s failed: %v", e.Driver, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError is a failed catalog or data query. Table is empty for the
// list-tables phase.
type QueryError struct {
	Phase string
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ExtractionError is either a fatal error that prevented any report (Err set)
// or the aggregate of per-table failures (Failures set).
type ExtractionError struct {
	Err      error
	Failures []TableFailure
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return "extraction failed: " + e.Err.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Err.Error())
	}
	return fmt.Sprintf("extraction incomplete: %d table(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Err}
	}
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
