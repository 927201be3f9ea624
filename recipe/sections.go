package recipe

import (
	"regexp"
	"strings"
)

// GlobalSection is the name of the section holding everything outside `outputs:`.
const GlobalSection = "global"

// Section is one contiguous slice of document lines: the global recipe, or one entry of
// a multi-output recipe starting at its `- name:` line.
type Section struct {
	Name  string
	Lines []string
}

var (
	patOutputsHeader = regexp.MustCompile(`^outputs:`)
	patOutputName    = regexp.MustCompile(`^\s*-\s*name:\s*(.*?)\s*(#.*)?$`)
)

// SliceIntoOutputSections splits a document into its global section and one section per
// named output, in document order. Concatenating the sections' lines reproduces the
// document exactly. A recipe without an `outputs:` block yields a single global section.
func SliceIntoOutputSections(lines []string) []Section {
	sections := []Section{{Name: GlobalSection}}
	inOutputs := false

	for _, line := range lines {
		if patOutputsHeader.MatchString(line) {
			inOutputs = true
		} else if inOutputs {
			if groups := patOutputName.FindStringSubmatch(line); groups != nil {
				sections = append(sections, Section{Name: unquote(groups[1])})
			}
		}

		last := &sections[len(sections)-1]
		last.Lines = append(last.Lines, line)
	}

	return sections
}

// JoinSections reassembles the document lines from sections produced by
// SliceIntoOutputSections, preserving order.
func JoinSections(sections []Section) []string {
	var lines []string
	for _, section := range sections {
		lines = append(lines, section.Lines...)
	}

	return lines
}

func unquote(val string) string {
	val = strings.TrimSpace(val)

	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}

	return val
}
