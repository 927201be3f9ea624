package recipe

import (
	"regexp"
	"strings"
)

// CompilerKind distinguishes the compiler declaration shapes the scanner tracks.
type CompilerKind int

const (
	// CompilerC is the plain C compiler, `{{ compiler("c") }}`.
	CompilerC CompilerKind = iota
	// CompilerM2C is the Windows cross-compile C compiler, `{{ compiler("m2w64_c") }}`.
	CompilerM2C
	// CompilerOther is any other-language compiler declaration.
	CompilerOther
)

// CompilerLine records the last occurrence of one compiler declaration kind.
type CompilerLine struct {
	// Line is the index of the declaration, 0 if it was never seen.
	Line int
	// Indent is the declaration's leading whitespace, without the `- ` list marker.
	Indent string
	// Selector is the trailing selector annotation, captured verbatim (may be empty).
	Selector string
}

// SectionScan is the result of one left-to-right pass over a section's lines. A line
// index of 0 means the header was not seen; line 0 itself is always a section opener
// (`package:`, `- name:`, ...), so the sentinel is unambiguous.
type SectionScan struct {
	Build     int
	Host      int
	Run       int
	Constrain int
	Test      int

	Compilers map[CompilerKind]CompilerLine
}

// InsertionAnchor returns the line index before which a synthesized build section would
// be inserted: the first of host/run/run_constrained/test that exists. Zero means there
// is no anchor.
func (scan SectionScan) InsertionAnchor() int {
	for _, line := range []int{scan.Host, scan.Run, scan.Constrain, scan.Test} {
		if line != 0 {
			return line
		}
	}

	return 0
}

// requirementsEnd returns the index bounding the build requirement block, for re-checks
// that must not look past it.
func (scan SectionScan) requirementsEnd(total int) int {
	if end := scan.InsertionAnchor(); end != 0 {
		return end
	}

	return total
}

var patNonRequirementBuildKey = buildNonRequirementPattern()

func buildNonRequirementPattern() *regexp.Regexp {
	return regexp.MustCompile(`^\s*(` + strings.Join(NonRequirementBuildKeys, "|") + `):`)
}

// ScanSection classifies the lines of one section (the global recipe or one named
// output) in a single pass. It records the requirement section headers and the last
// occurrence of each compiler declaration kind with its indentation and selector.
// Scanning halts at a `test:` header, since test content may contain unrelated
// dependency look-alikes.
//
// A `build:` header only counts if the line after it is requirement content. Recipes
// reuse the `build:` key for the build settings mapping (number, skip, script, ...), so
// the scanner looks one line ahead and withdraws the header index when a known
// non-requirement key follows.
func ScanSection(lines []string) SectionScan {
	scan := SectionScan{Compilers: map[CompilerKind]CompilerLine{}}

	lastLineWasBuild := false

	for i, line := range lines {
		switch {
		case patBuildHeader.MatchString(line):
			lastLineWasBuild = true
			scan.Build = i

			continue
		case PatCompilerC.MatchString(line):
			scan.Compilers[CompilerC] = compilerLineAt(PatCompilerC, line, i)
		case PatCompilerM2C.MatchString(line):
			scan.Compilers[CompilerM2C] = compilerLineAt(PatCompilerM2C, line, i)
		case PatCompilerOther.MatchString(line):
			scan.Compilers[CompilerOther] = compilerLineAt(PatCompilerOther, line, i)
		case patHostHeader.MatchString(line):
			scan.Host = i
		case patRunHeader.MatchString(line):
			scan.Run = i
		case patConstrainHeader.MatchString(line):
			scan.Constrain = i
		case patTestHeader.MatchString(line):
			scan.Test = i

			return scan
		case lastLineWasBuild && patNonRequirementBuildKey.MatchString(line):
			// The previous `build:` opened the settings mapping, not requirements.
			scan.Build = 0
		}

		lastLineWasBuild = false
	}

	return scan
}

// HasCompilerInBuild reports whether any compiler declaration appears between the
// `build:` header and the next requirement header. This catches compilers whose parsed
// requirement entries were dropped by selectors.
func (scan SectionScan) HasCompilerInBuild(lines []string) bool {
	if scan.Build == 0 {
		return false
	}

	for _, line := range lines[scan.Build:scan.requirementsEnd(len(lines))] {
		if PatCompiler.MatchString(line) {
			return true
		}
	}

	return false
}

func compilerLineAt(pat *regexp.Regexp, line string, index int) CompilerLine {
	groups := pat.FindStringSubmatch(line)
	names := pat.SubexpNames()

	found := CompilerLine{Line: index}

	for i, name := range names {
		switch name {
		case "indent":
			found.Indent = groups[i]
		case "selector":
			found.Selector = groups[i]
		}
	}

	return found
}
