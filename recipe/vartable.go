package recipe

import "sort"

// VarTable is the recipe's template variable table: every `{% set name = value %}`
// line, keyed by base name and then by selector qualifier (empty string for an
// unqualified declaration). A selector-qualified entry and its unqualified counterpart
// may coexist; resolution prefers the qualified form when that selector is active.
type VarTable struct {
	entries map[string]map[string]*VarEntry
}

// VarEntry is one declared template variable.
type VarEntry struct {
	Value string

	// line is the index of the declaration in the document.
	line int
}

func newVarTable() *VarTable {
	return &VarTable{entries: map[string]map[string]*VarEntry{}}
}

func (table *VarTable) add(base, selector, value string, line int) {
	if table.entries[base] == nil {
		table.entries[base] = map[string]*VarEntry{}
	}

	table.entries[base][selector] = &VarEntry{Value: value, line: line}
}

// Lookup resolves a variable under the given active selector, preferring the
// selector-qualified declaration and falling back to the unqualified one.
func (table *VarTable) Lookup(base, selector string) (string, bool) {
	qualifiers, ok := table.entries[base]
	if !ok {
		return "", false
	}

	if selector != "" {
		if entry, ok := qualifiers[selector]; ok {
			return entry.Value, true
		}
	}

	entry, ok := qualifiers[""]
	if !ok {
		return "", false
	}

	return entry.Value, true
}

// HasQualified reports whether a declaration qualified with exactly this selector exists.
func (table *VarTable) HasQualified(base, selector string) bool {
	_, ok := table.entries[base][selector]
	return ok
}

// Has reports whether the variable is declared under any selector at all.
func (table *VarTable) Has(base string) bool {
	return len(table.entries[base]) > 0
}

// Selectors returns every selector qualifier appearing in the table, sorted.
func (table *VarTable) Selectors() []string {
	set := map[string]bool{}

	for _, qualifiers := range table.entries {
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

// Context builds the resolved variable mapping for one active selector: unqualified
// declarations, overridden by declarations qualified with exactly that selector.
// Variables declared only under other selectors are absent from the result, which is
// how "variable not populated for this selector" stays distinguishable downstream.
func (table *VarTable) Context(selector string) map[string]string {
	context := map[string]string{}

	for base, qualifiers := range table.entries {
		if entry, ok := qualifiers[""]; ok {
			context[base] = entry.Value
		}

		if selector == "" {
			continue
		}

		if entry, ok := qualifiers[selector]; ok {
			context[base] = entry.Value
		}
	}

	return context
}

func (table *VarTable) entry(base, selector string) (*VarEntry, bool) {
	qualifiers, ok := table.entries[base]
	if !ok {
		return nil, false
	}

	entry, ok := qualifiers[selector]

	return entry, ok
}
