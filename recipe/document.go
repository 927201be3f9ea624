package recipe

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/condatools/recipebump/internal/errors"
)

// selectorKeySep joins a key with its selector qualifier in the munged YAML view, so
// that e.g. `url: ... # [win]` and `url: ... # [unix]` survive parsing as distinct keys.
const selectorKeySep = "__cfsel__"

var (
	patJinjaSet = regexp.MustCompile(
		`^\s*\{%\s*set\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?)\s*%\}\s*(?:#\s*\[([^\]]+)\]\s*)?$`)
	patJinjaStmt        = regexp.MustCompile(`^\s*\{%.*%\}\s*$`)
	patTrailingComment  = regexp.MustCompile(`\s+#.*$`)
	patTrailingSelector = regexp.MustCompile(`\s+#\s*\[([^\]]+)\]\s*$`)
	patKeyValueLine     = regexp.MustCompile(`^(\s*(?:-\s+)?)([A-Za-z0-9_.-]+):(?:[ \t]+(.*))?$`)
	patListItemLine     = regexp.MustCompile(`^(\s*-[ \t]+)(.*)$`)
	patBuildNumberLine  = regexp.MustCompile(`^(\s*number:\s*)([0-9]+)(\s*.*)$`)
)

// Recipe is one parsed recipe document: the raw ordered lines (the authoritative
// representation that gets written back), plus the variable table and source entries
// extracted from them with all template syntax preserved as literal values.
type Recipe struct {
	lines           []string
	trailingNewline bool

	// Vars is the recipe's template variable table.
	Vars *VarTable

	// Sources are the recipe's downloadable artifacts, in document order.
	Sources []*Source

	globalReqs  Requirements
	outputOrder []string
	outputReqs  map[string]Requirements
}

// Requirements holds one section's parsed dependency declarations, templates intact.
type Requirements struct {
	Build []string
	Host  []string
	Run   []string
}

// Load reads and parses the recipe at the given path.
func Load(path string) (*Recipe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	return Parse(string(raw))
}

// Parse parses a raw recipe document. The original text is kept line for line; the
// parsed views (variables, sources, requirements) index back into those lines so that
// every update is a surgical line edit and an unchanged recipe renders byte-identically.
func Parse(raw string) (*Recipe, error) {
	rec := &Recipe{
		lines:           strings.Split(strings.TrimSuffix(raw, "\n"), "\n"),
		trailingNewline: strings.HasSuffix(raw, "\n"),
		Vars:            newVarTable(),
		outputReqs:      map[string]Requirements{},
	}

	munged := make([]string, len(rec.lines))

	for i, line := range rec.lines {
		if groups := patJinjaSet.FindStringSubmatch(line); groups != nil {
			rec.Vars.add(groups[1], groups[3], unquote(groups[2]), i)
			munged[i] = "#"

			continue
		}

		munged[i] = mungeLine(line)
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(strings.Join(munged, "\n")), &root); err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "unable to parse recipe")
	}

	if len(root.Content) > 0 {
		rec.extract(root.Content[0])
	}

	return rec, nil
}

// Render serializes the document back to text. A recipe that was never edited renders
// byte-identically to its input.
func (rec *Recipe) Render() string {
	out := strings.Join(rec.lines, "\n")
	if rec.trailingNewline {
		out += "\n"
	}

	return out
}

// Lines returns a copy of the document's lines.
func (rec *Recipe) Lines() []string {
	return append([]string(nil), rec.lines...)
}

// SetLines replaces the document's lines after a structural patch.
func (rec *Recipe) SetLines(lines []string) {
	rec.lines = lines
}

// HasVCSSource reports whether any source entry is a version-control checkout.
func (rec *Recipe) HasVCSSource() bool {
	for _, src := range rec.Sources {
		if src.HasVCSURL() {
			return true
		}
	}

	return false
}

// OutputNames lists the named outputs of a multi-output recipe, in document order.
func (rec *Recipe) OutputNames() []string {
	return append([]string(nil), rec.outputOrder...)
}

// SectionRequirements returns the parsed requirements of the global section or of one
// named output.
func (rec *Recipe) SectionRequirements(name string) (Requirements, bool) {
	if name == GlobalSection {
		return rec.globalReqs, true
	}

	reqs, ok := rec.outputReqs[name]

	return reqs, ok
}

// SetVar rewrites the value of a declared template variable, preserving the
// declaration's formatting and quoting style. The in-memory table is kept in sync.
func (rec *Recipe) SetVar(base, selector, value string) error {
	entry, ok := rec.Vars.entry(base, selector)
	if !ok {
		return errors.Errorf("variable %s is not declared under selector %q", base, selector)
	}

	re := regexp.MustCompile(`^(\s*\{%\s*set\s+` + regexp.QuoteMeta(base) + `\s*=\s*)(.+?)(\s*%\}.*)$`)

	groups := re.FindStringSubmatch(rec.lines[entry.line])
	if groups == nil {
		return errors.Errorf("line %d no longer holds the declaration of %s", entry.line+1, base)
	}

	rec.lines[entry.line] = groups[1] + requote(groups[2], value) + groups[3]
	entry.Value = value

	return nil
}

// SetField rewrites a scalar source field in place, preserving indentation, quoting,
// and any trailing selector annotation.
func (rec *Recipe) SetField(ref *FieldRef, base, value string) error {
	re := regexp.MustCompile(`^(\s*(?:-\s+)?` + regexp.QuoteMeta(base) + `\s*:\s*)(.*?)(\s*(?:#.*)?)$`)

	groups := re.FindStringSubmatch(rec.lines[ref.line])
	if groups == nil {
		return errors.Errorf("line %d no longer holds the %s field", ref.line+1, base)
	}

	rec.lines[ref.line] = groups[1] + requote(groups[2], value) + groups[3]
	ref.Scalar = value

	return nil
}

// SetListItem rewrites one entry of a list-valued field in place.
func (rec *Recipe) SetListItem(item *ListItem, value string) error {
	re := regexp.MustCompile(`^(\s*-\s+)(.*?)(\s*(?:#.*)?)$`)

	groups := re.FindStringSubmatch(rec.lines[item.line])
	if groups == nil {
		return errors.Errorf("line %d no longer holds a list entry", item.line+1)
	}

	rec.lines[item.line] = groups[1] + requote(groups[2], value) + groups[3]
	item.Value = value

	return nil
}

// ResetBuildNumber sets the recipe's build number to zero, whether it is declared as a
// literal `number:` field or through a conventional template variable. Returns true if
// anything changed.
func (rec *Recipe) ResetBuildNumber() bool {
	for _, base := range []string{"build", "build_number"} {
		if entry, ok := rec.Vars.entry(base, ""); ok && entry.Value != "0" {
			if err := rec.SetVar(base, "", "0"); err == nil {
				return true
			}
		}
	}

	for i, line := range rec.lines {
		groups := patBuildNumberLine.FindStringSubmatch(line)
		if groups == nil {
			continue
		}

		if groups[2] == "0" {
			return false
		}

		rec.lines[i] = groups[1] + "0" + groups[3]

		return true
	}

	return false
}

// extract walks the munged YAML mapping and pulls out sources, requirements, and
// output names with the line indices needed for later edits.
func (rec *Recipe) extract(mapping *yaml.Node) {
	if mapping.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		base, _ := splitQualifiedKey(key.Value)

		switch base {
		case "source":
			rec.extractSources(value)
		case "requirements":
			rec.globalReqs = extractRequirements(value)
		case "outputs":
			rec.extractOutputs(value)
		}
	}
}

func (rec *Recipe) extractSources(node *yaml.Node) {
	switch node.Kind {
	case yaml.MappingNode:
		rec.Sources = append(rec.Sources, extractSource(node))
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind == yaml.MappingNode {
				rec.Sources = append(rec.Sources, extractSource(item))
			}
		}
	}
}

func (rec *Recipe) extractOutputs(node *yaml.Node) {
	if node.Kind != yaml.SequenceNode {
		return
	}

	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}

		name := ""
		reqs := Requirements{}

		for i := 0; i+1 < len(item.Content); i += 2 {
			base, _ := splitQualifiedKey(item.Content[i].Value)

			switch base {
			case "name":
				name = item.Content[i+1].Value
			case "requirements":
				reqs = extractRequirements(item.Content[i+1])
			}
		}

		if name != "" {
			rec.outputOrder = append(rec.outputOrder, name)
			rec.outputReqs[name] = reqs
		}
	}
}

func extractSource(node *yaml.Node) *Source {
	src := newSource()

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		base, selector := splitQualifiedKey(key.Value)

		switch value.Kind {
		case yaml.ScalarNode:
			src.add(base, selector, &FieldRef{Scalar: value.Value, line: value.Line - 1})
		case yaml.SequenceNode:
			ref := &FieldRef{Items: []ListItem{}, line: key.Line - 1}
			for _, item := range value.Content {
				if item.Kind == yaml.ScalarNode {
					ref.Items = append(ref.Items, ListItem{Value: item.Value, line: item.Line - 1})
				}
			}

			src.add(base, selector, ref)
		}
	}

	return src
}

func extractRequirements(node *yaml.Node) Requirements {
	reqs := Requirements{}

	if node.Kind != yaml.MappingNode {
		return reqs
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		base, _ := splitQualifiedKey(node.Content[i].Value)

		entries := extractStringList(node.Content[i+1])

		switch base {
		case "build":
			reqs.Build = append(reqs.Build, entries...)
		case "host":
			reqs.Host = append(reqs.Host, entries...)
		case "run":
			reqs.Run = append(reqs.Run, entries...)
		}
	}

	return reqs
}

func extractStringList(node *yaml.Node) []string {
	if node.Kind != yaml.SequenceNode {
		return nil
	}

	var out []string

	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode && item.Value != "" {
			out = append(out, item.Value)
		}
	}

	return out
}

// mungeLine rewrites one raw line into parseable YAML without changing the line count:
// jinja statements become comments, selector annotations move into the key, and values
// holding template expressions get quoted.
func mungeLine(line string) string {
	if patJinjaStmt.MatchString(line) {
		return "#"
	}

	if groups := patKeyValueLine.FindStringSubmatch(line); groups != nil {
		prefix, key, rest := groups[1], groups[2], groups[3]

		if sel := patTrailingSelector.FindStringSubmatch(" " + rest); sel != nil {
			key += selectorKeySep + sel[1]
			rest = strings.TrimSpace(patTrailingSelector.ReplaceAllString(" "+rest, ""))
		}

		value, comment := splitTrailingComment(rest)
		if rest == "" {
			return prefix + key + ":"
		}

		return prefix + key + ": " + quoteTemplates(value) + comment
	}

	if groups := patListItemLine.FindStringSubmatch(line); groups != nil {
		value, comment := splitTrailingComment(groups[2])

		return groups[1] + quoteTemplates(value) + comment
	}

	return line
}

func splitTrailingComment(rest string) (string, string) {
	if loc := patTrailingComment.FindStringIndex(rest); loc != nil {
		return rest[:loc[0]], rest[loc[0]:]
	}

	return rest, ""
}

// quoteTemplates single-quotes a value containing template syntax so YAML does not read
// `{{` as a flow mapping.
func quoteTemplates(value string) string {
	if !strings.Contains(value, "{{") || isQuoted(value) {
		return value
	}

	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func isQuoted(value string) bool {
	return len(value) >= 2 && (value[0] == '"' || value[0] == '\'')
}

// requote formats a replacement value in the same quoting style as the value it
// replaces.
func requote(old, value string) string {
	if len(old) >= 2 {
		if quote := old[0]; quote == '"' || quote == '\'' {
			return string(quote) + value + string(quote)
		}
	}

	return value
}

func splitQualifiedKey(key string) (string, string) {
	if base, selector, found := strings.Cut(key, selectorKeySep); found {
		return base, selector
	}

	return key, ""
}
