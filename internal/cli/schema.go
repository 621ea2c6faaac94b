package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/entrepo/internal/metadata"
)

// Command-level error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeInvalid     = "E006" // Schema failed registry validation
	ErrCodeConfig      = "E007" // Configuration error
	ErrCodeDatabase    = "E008" // Database open or query failure
	ErrCodeQuery       = "E009" // Query rejected by the repository
	ErrCodeBadArgument = "E010" // Malformed command-line argument
)

// SchemaError is a schema loading failure with a command-level code.
// Validation carries the individual registry problems when Code is
// ErrCodeInvalid.
type SchemaError struct {
	Code       string
	Message    string
	Line       int
	Validation []metadata.ValidationError
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SchemaSummary describes one loaded entity type.
type SchemaSummary struct {
	Entity       string   `json:"entity"`
	Table        string   `json:"table"`
	Identifier   []string `json:"identifier"`
	Fields       int      `json:"fields"`
	Associations int      `json:"associations"`
	Version      string   `json:"version,omitempty"`
}

// loadSchema compiles the CUE entity definitions in dir into a registry.
func loadSchema(dir string) (*metadata.Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &SchemaError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &SchemaError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &SchemaError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &SchemaError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &SchemaError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	reg, err := metadata.LoadDir(dir)
	if err != nil {
		return nil, classifySchemaError(err)
	}
	return reg, nil
}

// classifySchemaError maps a metadata error onto a SchemaError.
func classifySchemaError(err error) *SchemaError {
	if problems := validationErrors(err); len(problems) > 0 {
		return &SchemaError{
			Code:       ErrCodeInvalid,
			Message:    fmt.Sprintf("%d validation error(s)", len(problems)),
			Validation: problems,
		}
	}

	var cErr *metadata.CompileError
	if errors.As(err, &cErr) {
		line := 0
		if cErr.Pos.IsValid() {
			line = cErr.Pos.Line()
		}
		return &SchemaError{Code: ErrCodeLoadFailed, Message: err.Error(), Line: line}
	}
	return &SchemaError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// validationErrors flattens joined registry validation errors.
func validationErrors(err error) []metadata.ValidationError {
	var out []metadata.ValidationError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, validationErrors(e)...)
		}
		return out
	}
	var vErr metadata.ValidationError
	if errors.As(err, &vErr) {
		out = append(out, vErr)
	}
	return out
}

// summarize lists every entity in the registry in name order.
func summarize(reg *metadata.Registry) []SchemaSummary {
	names := reg.Names()
	out := make([]SchemaSummary, 0, len(names))
	for _, name := range names {
		et, err := reg.EntityType(name)
		if err != nil {
			continue
		}
		out = append(out, SchemaSummary{
			Entity:       et.Name,
			Table:        et.Table,
			Identifier:   et.Identifier,
			Fields:       len(et.Fields),
			Associations: len(et.Associations),
			Version:      et.Version,
		})
	}
	return out
}
