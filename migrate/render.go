package migrate

import (
	"regexp"
	"strings"
)

// patTemplateVar matches simple variable substitutions, `{{ name }}`.
var patTemplateVar = regexp.MustCompile(`\{\{ ((?:[a-zA-Z]|(?:_[a-zA-Z0-9]))[a-zA-Z0-9_]*) \}\}`)

// RenderTemplate substitutes `{{ name }}` expressions against the given context.
// Referencing a variable absent from the context fails loudly with
// UndefinedTemplateVariableError rather than silently substituting an empty string.
// Expressions more elaborate than a bare variable are left in place, which makes the
// result fail the cleanliness check in RendersClean.
func RenderTemplate(tmpl string, context map[string]string) (string, error) {
	var undefined error

	out := patTemplateVar.ReplaceAllStringFunc(tmpl, func(expr string) string {
		name := patTemplateVar.FindStringSubmatch(expr)[1]

		value, ok := context[name]
		if !ok {
			if undefined == nil {
				undefined = UndefinedTemplateVariableError{Variable: name}
			}

			return expr
		}

		return value
	})

	if undefined != nil {
		return "", undefined
	}

	return out, nil
}

// RenderedClean renders the template and additionally rejects any output that still
// carries template syntax (e.g. filters or method calls we do not evaluate).
func RenderedClean(tmpl string, context map[string]string) (string, error) {
	out, err := RenderTemplate(tmpl, context)
	if err != nil {
		return "", err
	}

	if strings.Contains(out, "{{") || strings.Contains(out, "}}") {
		return "", UnrenderableTemplateError{Template: out}
	}

	return out, nil
}

// TemplateVars returns the names of all variables referenced by the template.
func TemplateVars(tmpl string) []string {
	var out []string

	for _, groups := range patTemplateVar.FindAllStringSubmatch(tmpl, -1) {
		out = append(out, groups[1])
	}

	return out
}
