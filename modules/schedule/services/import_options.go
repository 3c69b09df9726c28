package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type UnknownDepsMode string

const (
	UnknownDepsError UnknownDepsMode = "error"
	UnknownDepsWarn  UnknownDepsMode = "warn"
)

var validate = validator.New()

// ImportOptions configures ParseCSVText. The zero value rejects unknown dependencies.
type ImportOptions struct {
	UnknownDeps UnknownDepsMode `json:"unknownDeps" validate:"omitempty,oneof=error warn"`
}

func ParseUnknownDepsMode(v string) (UnknownDepsMode, error) {
	mode := UnknownDepsMode(strings.ToLower(strings.TrimSpace(v)))
	if mode == "" {
		return UnknownDepsError, nil
	}
	opts := ImportOptions{UnknownDeps: mode}
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("invalid unknown-deps mode %q (expected error|warn)", v)
	}
	return mode, nil
}

func (o ImportOptions) Validate() error {
	return validate.Struct(o)
}

// Normalize lower-cases the mode and falls back to UnknownDepsError for anything unrecognized.
func (o ImportOptions) Normalize() ImportOptions {
	mode, err := ParseUnknownDepsMode(string(o.UnknownDeps))
	if err != nil {
		mode = UnknownDepsError
	}
	return ImportOptions{UnknownDeps: mode}
}
