// Package recipe models a conda recipe (meta.yaml) as an ordered sequence of opaque
// text lines with a small set of recognized line shapes. Structural edits are surgical
// slice-splice insertions over those lines, never a parse-and-regenerate round trip, so
// human formatting, comments, and ordering survive every migration.
package recipe

import "regexp"

// Pieces of the requirement-line grammar: indentation, a compiler template expression,
// and an optional trailing selector annotation like `# [win]`.
const (
	rgxIndent       = `(?P<indent>\s*)-\s*`
	rgxCompilerPre  = `(?P<compiler>\{\{\s*compiler\(["']`
	rgxCompilerPost = `["']\)\s*\}\})`
	rgxSelector     = `(?P<selector>\s*#\s+\[[\w\s()<>!=.,\-'"]+\])?`
)

var (
	// PatCompilerStub matches the rendered compiler stub package names that recipes can
	// also declare directly.
	PatCompilerStub = regexp.MustCompile(`(c|cxx|fortran)_compiler_stub`)

	// PatCompilerC matches a plain C compiler declaration line.
	PatCompilerC = regexp.MustCompile(rgxIndent + rgxCompilerPre + `c` + rgxCompilerPost + rgxSelector)

	// PatCompilerM2C matches the Windows cross-compile (m2w64) C compiler declaration.
	PatCompilerM2C = regexp.MustCompile(rgxIndent + rgxCompilerPre + `m2w64_c` + rgxCompilerPost + rgxSelector)

	// PatCompilerOther matches any other-language compiler declaration.
	PatCompilerOther = regexp.MustCompile(rgxIndent + rgxCompilerPre + `(m2w64_)?(cxx|fortran)` + rgxCompilerPost + rgxSelector)

	// PatCompilerExpr matches an unrendered compiler template expression anywhere in a
	// requirement entry, regardless of surrounding list syntax.
	PatCompilerExpr = regexp.MustCompile(`\{\{\s*compiler\(`)

	// PatCompiler matches any compiler declaration.
	PatCompiler = regexp.MustCompile(rgxIndent + rgxCompilerPre + `(m2w64_)?(c|cxx|fortran)` + rgxCompilerPost + rgxSelector)

	// PatStdlib matches the C standard-library declaration the migration inserts.
	PatStdlib = regexp.MustCompile(`.*\{\{\s*stdlib\(["']c["']\)\s*\}\}.*`)

	// PatSysroot217 matches the obsolete explicit sysroot pin that the stdlib
	// declaration replaces. No version other than 2.17 is currently in use.
	PatSysroot217 = regexp.MustCompile(`- sysroot_linux-64\s*=?=?2\.17`)

	patSysrootAny = regexp.MustCompile(`-\s*sysroot_linux-64.*`)

	patBuildHeader     = regexp.MustCompile(`^\s*build:`)
	patHostHeader      = regexp.MustCompile(`^\s*host:`)
	patRunHeader       = regexp.MustCompile(`^\s*run:`)
	patConstrainHeader = regexp.MustCompile(`^\s*run_constrained:`)
	patTestHeader      = regexp.MustCompile(`^\s*test:`)
)

// StdlibExpr is the template expression representing the C standard-library runtime
// requirement; StdlibDeclaration is the full requirement line inserted into recipes.
const (
	StdlibExpr        = `{{ stdlib("c") }}`
	StdlibDeclaration = `- ` + StdlibExpr
)

// NonRequirementBuildKeys are conventional keys that may directly follow a `build:`
// header when that header opens the build *settings* mapping rather than the build
// requirements section. The list tracks recipe-format conventions and is expected to
// grow; it is deliberately package-level configuration rather than scanner logic.
var NonRequirementBuildKeys = []string{
	"binary_relocation",
	"force_ignore_keys",
	"ignore_run_exports(_from)?",
	"missing_dso_whitelist",
	"noarch",
	"number",
	"run_exports",
	"script",
	"skip",
}
