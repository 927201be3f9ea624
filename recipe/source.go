package recipe

import "sort"

// vcsFieldNames are the source fields describing version-control checkouts. Recipes
// sourced this way cannot be migrated by URL rewriting.
var vcsFieldNames = []string{"git_url", "hg_url", "svn_url"}

// Source is one downloadable artifact feeding the build: a URL field (scalar or ordered
// list of alternates) plus an integrity hash field, with selector-qualified variants
// kept side by side the same way the variable table does.
type Source struct {
	fields map[string]map[string]*FieldRef
}

// FieldRef is one field of a source entry, pointing back at the document line holding
// its value so updates stay surgical.
type FieldRef struct {
	// Scalar is the field's raw value with template syntax preserved. Unset for lists.
	Scalar string

	// Items holds the ordered alternates when the field's value is a list.
	Items []ListItem

	line int
}

// ListItem is one entry of a list-valued field.
type ListItem struct {
	Value string

	line int
}

// IsList reports whether the field holds an ordered list of alternate values.
func (ref *FieldRef) IsList() bool {
	return ref.Items != nil
}

func newSource() *Source {
	return &Source{fields: map[string]map[string]*FieldRef{}}
}

func (src *Source) add(base, selector string, ref *FieldRef) {
	if src.fields[base] == nil {
		src.fields[base] = map[string]*FieldRef{}
	}

	src.fields[base][selector] = ref
}

// Field resolves a field under the given active selector, preferring the qualified
// variant. The returned selector says which variant was chosen.
func (src *Source) Field(base, selector string) (*FieldRef, string, bool) {
	qualifiers, ok := src.fields[base]
	if !ok {
		return nil, "", false
	}

	if selector != "" {
		if ref, ok := qualifiers[selector]; ok {
			return ref, selector, true
		}
	}

	ref, ok := qualifiers[""]
	if !ok {
		return nil, "", false
	}

	return ref, "", true
}

// Has reports whether the field exists under any selector.
func (src *Source) Has(base string) bool {
	return len(src.fields[base]) > 0
}

// HasVCSURL reports whether this source is a version-control checkout.
func (src *Source) HasVCSURL() bool {
	for _, field := range vcsFieldNames {
		if src.Has(field) {
			return true
		}
	}

	return false
}

// Selectors returns every selector qualifier appearing on this source's fields, sorted.
func (src *Source) Selectors() []string {
	set := map[string]bool{}

	for _, qualifiers := range src.fields {
		for selector := range qualifiers {
			if selector != "" {
				set[selector] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for selector := range set {
		out = append(out, selector)
	}

	sort.Strings(out)

	return out
}

// Values returns every scalar value of every field variant, for URL classification.
func (src *Source) Values() []string {
	var out []string

	for _, qualifiers := range src.fields {
		for _, ref := range qualifiers {
			if ref.IsList() {
				for _, item := range ref.Items {
					out = append(out, item.Value)
				}
			} else {
				out = append(out, ref.Scalar)
			}
		}
	}

	return out
}
