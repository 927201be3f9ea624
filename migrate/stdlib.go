package migrate

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/condatools/recipebump/recipe"
)

// StdlibMigrator inserts the C standard-library declaration next to compiler
// declarations (and retires obsolete sysroot pins), section by section, without
// re-serializing the document.
type StdlibMigrator struct {
	Logger *logrus.Entry
}

func (m *StdlibMigrator) Name() string { return "stdlib" }

// Filter returns true when there is nothing to do: the declaration is already present
// anywhere in the document, or no compiler declaration and no sysroot pin exists. This
// pre-check is what makes the patcher idempotent.
func (m *StdlibMigrator) Filter(rec *recipe.Recipe) bool {
	alreadyMigrated := false
	hasCompiler := false
	hasSysroot := false

	for _, line := range rec.Lines() {
		alreadyMigrated = alreadyMigrated || recipe.PatStdlib.MatchString(line)
		hasCompiler = hasCompiler || recipe.PatCompiler.MatchString(line)
		hasSysroot = hasSysroot || recipe.PatSysroot217.MatchString(line)
	}

	return alreadyMigrated || !(hasCompiler || hasSysroot)
}

// Migrate patches every section of the document independently and reassembles it.
func (m *StdlibMigrator) Migrate(_ context.Context, rec *recipe.Recipe) (Outcome, error) {
	outcome := Outcome{}

	sections := recipe.SliceIntoOutputSections(rec.Lines())
	patched := make([]recipe.Section, 0, len(sections))

	for _, section := range sections {
		result, err := recipe.PatchStdlib(section.Lines, m.needsStdlib(rec, section.Name))
		if err != nil {
			return outcome, err
		}

		patched = append(patched, recipe.Section{Name: section.Name, Lines: result.Lines})
		outcome.WriteStdlibToConfig = outcome.WriteStdlibToConfig || result.WriteStdlibToConfig
	}

	rec.SetLines(recipe.JoinSections(patched))
	outcome.Document = rec.Render()

	return outcome, nil
}

// needsStdlib decides from the parsed requirements whether a section warrants the
// declaration: its own build requirements name a compiler (stub or template), or the
// section has no build requirements of its own and inherits one from the global
// section. Compilers hidden behind selectors are caught later by the patcher's raw
// line re-check.
func (m *StdlibMigrator) needsStdlib(rec *recipe.Recipe, sectionName string) bool {
	namesCompiler := func(entries []string) bool {
		for _, entry := range entries {
			if recipe.PatCompilerStub.MatchString(entry) || recipe.PatCompilerExpr.MatchString(entry) {
				return true
			}
		}

		return false
	}

	reqs, _ := rec.SectionRequirements(sectionName)
	globalReqs, _ := rec.SectionRequirements(recipe.GlobalSection)

	return namesCompiler(reqs.Build) || (len(reqs.Build) == 0 && namesCompiler(globalReqs.Build))
}
