package recipe

import (
	"regexp"
	"strings"

	"github.com/condatools/recipebump/internal/errors"
)

// PatchResult is the outcome of patching one section.
type PatchResult struct {
	// Lines is the edited line sequence.
	Lines []string

	// WriteStdlibToConfig is set when a sysroot pin was removed and the pinned version
	// must be recorded in the companion conda_build_config.yaml instead.
	WriteStdlibToConfig bool
}

// PatchStdlib inserts a `{{ stdlib("c") }}` declaration into one section's lines.
//
// needsStdlib says whether the section's parsed requirements warrant the declaration
// (a compiler stub named directly, or inherited from the global build section). On top
// of that the patcher re-checks the raw build block for compiler declarations whose
// parsed entries were dropped by selectors.
//
// The declaration is inserted directly after the compiler line, preferring the plain C
// compiler's position, indentation, and selector when several kinds are present. When
// both the C and the m2w64 cross C compiler are declared, a second declaration is added
// after the cross-compile line carrying its selector. When the section has no `build:`
// header at all, one is synthesized with indentation derived from the section's first
// line. Obsolete `sysroot_linux-64 2.17` pins are replaced or removed, flagging the
// companion-config side effect.
func PatchStdlib(lines []string, needsStdlib bool) (PatchResult, error) {
	scan := ScanSection(lines)

	needsStdlib = needsStdlib || scan.HasCompilerInBuild(lines)

	if !needsStdlib {
		result := PatchResult{Lines: lines}

		if anyLineMatches(lines, PatSysroot217) {
			// No compilers, but an explicit sysroot pin: replace its first occurrence
			// with the stdlib declaration (dropping selectors, as only the sysroot
			// package is linux-only, not the need for a C stdlib), delete the rest,
			// and record the pinned version in the companion config.
			result.Lines = Replace(result.Lines, patSysrootAny, StdlibDeclaration, 1)
			result.Lines = Replace(result.Lines, patSysrootAny, "", -1)
			result.WriteStdlibToConfig = true
		}

		return result, nil
	}

	// In case of several compilers, prefer line, indent and selector of the C compiler.
	ref := scan.Compilers[CompilerC]
	if ref.Line == 0 {
		if m2c := scan.Compilers[CompilerM2C]; m2c.Line != 0 {
			ref = m2c
		} else {
			ref = scan.Compilers[CompilerOther]
		}
	}

	indent := ref.Indent
	if indent == "" {
		// No compiler in this section; derive indentation from its first line, which
		// works both for the global recipe and for a `- name: <output>` opener.
		lead := regexp.MustCompile(`^([\s\-]*)`).FindString(lines[0])
		indent = strings.ReplaceAll(lead, "-", " ") + strings.Repeat(" ", 4)
	}

	// Align the selector column between the compiler and stdlib declarations.
	selector := ref.Selector
	if selector != "" {
		selector = "  " + selector
	}

	toInsert := []string{indent + StdlibDeclaration + selector}
	if scan.Build == 0 {
		// No build section; synthesize one, dedented one list level. Shallower
		// indentation than that clamps to column zero.
		headerIndent := ""
		if len(indent) > 2 {
			headerIndent = indent[:len(indent)-2]
		}

		toInsert = []string{headerIndent + "build:", toInsert[0]}
	}

	insertAt := scan.InsertionAnchor()
	if insertAt == 0 && ref.Line == 0 {
		return PatchResult{}, errors.Errorf("cannot determine where to insert the build section")
	}

	if ref.Line != 0 {
		// By default, insert directly after the compiler.
		insertAt = ref.Line + 1
	}

	out := splice(lines, insertAt, toInsert)

	c, m2c := scan.Compilers[CompilerC], scan.Compilers[CompilerM2C]
	if c.Line != 0 && m2c.Line != 0 {
		// Both compiler("c") and compiler("m2w64_c") are present, likely with
		// complementary selectors; add a second stdlib line after m2w64_c carrying its
		// own selector.
		selector := m2c.Selector
		if selector != "" {
			selector = strings.Repeat(" ", 8) + selector
		}

		insertAt := m2c.Line + 1
		if c.Line < m2c.Line {
			insertAt++
		}

		out = splice(out, insertAt, []string{indent + StdlibDeclaration + selector})
	}

	result := PatchResult{Lines: out}

	// If a newer sysroot was pinned explicitly, its version still needs to go to the
	// companion config; the declaration next to the compiler already covers the rest,
	// so every remaining pin line is simply removed.
	if anyLineMatches(result.Lines, PatSysroot217) {
		result.WriteStdlibToConfig = true
	}

	result.Lines = Replace(result.Lines, patSysrootAny, "", -1)

	return result, nil
}

// Replace rewrites the portion of each line matching the given pattern, at most maxTimes
// times across the whole sequence (-1 for unlimited). A line whose rewritten form is
// empty or blank is dropped entirely.
func Replace(lines []string, pattern *regexp.Regexp, replacement string, maxTimes int) []string {
	out := make([]string, 0, len(lines))
	done := 0

	for _, line := range lines {
		if pattern.MatchString(line) && (maxTimes < 0 || done < maxTimes) {
			done++
			line = pattern.ReplaceAllString(line, replacement)

			if strings.TrimSpace(line) == "" {
				continue
			}
		}

		out = append(out, line)
	}

	return out
}

func anyLineMatches(lines []string, pattern *regexp.Regexp) bool {
	for _, line := range lines {
		if pattern.MatchString(line) {
			return true
		}
	}

	return false
}

func splice(lines []string, at int, insert []string) []string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)

	return out
}
