package migrate

import "fmt"

// Custom error types

// NoVersionVariableError means the recipe does not declare its version through a
// template variable, so there is nothing safe to substitute.
type NoVersionVariableError struct{}

func (err NoVersionVariableError) Error() string {
	return "recipe does not declare a templated version variable"
}

// VCSSourceError means at least one source is a version-control checkout rather than an
// archive download; such recipes are rejected outright.
type VCSSourceError struct{}

func (err VCSSourceError) Error() string {
	return "version migrations do not work on version-control sources"
}

// UndeclaredVariableError means a URL or hash field references a template variable that
// is declared under no selector at all: the recipe is not fully templated and cannot be
// rewritten safely.
type UndeclaredVariableError struct {
	Variable string
}

func (err UndeclaredVariableError) Error() string {
	return fmt.Sprintf("template variable %s is not declared under any selector", err.Variable)
}

// HashNotFoundError means every candidate URL for one source was probed without finding
// a fetchable artifact. It fails that source, not the process.
type HashNotFoundError struct {
	URL string
}

func (err HashNotFoundError) Error() string {
	return "could not hash " + err.URL
}

// NoChangeError means the migration ran to completion but produced a byte-identical
// document even though an update was expected.
type NoChangeError struct{}

func (err NoChangeError) Error() string {
	return "recipe did not change but an update was expected"
}

// UnrenderableTemplateError means a template still carries expressions after
// substitution, e.g. filters or method calls the renderer does not evaluate.
type UnrenderableTemplateError struct {
	Template string
}

func (err UnrenderableTemplateError) Error() string {
	return "template did not render cleanly: " + err.Template
}

// UndefinedTemplateVariableError is the loud failure for rendering a template whose
// variable is not populated in the active context. It is distinguishable from a
// template that legitimately renders to an empty string.
type UndefinedTemplateVariableError struct {
	Variable string
}

func (err UndefinedTemplateVariableError) Error() string {
	return "template variable " + err.Variable + " is undefined in this context"
}
