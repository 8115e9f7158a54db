package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recoverable failure kinds of the engine. The
// engine never terminates the host process; every kind is handled at the
// call boundary.
var (
	// ErrNoTemplates means no candidate template exists for a persona.
	// Callers fall back to the built-in default template.
	ErrNoTemplates = errors.New("no templates available")

	// ErrInvalidUsage means a usage record was malformed and rejected.
	// The original trial stays uncounted; existing aggregates are untouched.
	ErrInvalidUsage = errors.New("invalid usage record")

	// ErrCorruptStore marks an unreadable persisted store file. Stores
	// recover by resetting to empty/default state, never by aborting.
	ErrCorruptStore = errors.New("persisted store corrupted")
)

// RenderError reports a template placeholder with no matching persona
// attribute. Recoverable: callers render the default template instead.
type RenderError struct {
	TemplateID  string
	Placeholder string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template %s: no value for placeholder {%s}", e.TemplateID, e.Placeholder)
}
