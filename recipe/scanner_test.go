package recipe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condatools/recipebump/recipe"
)

func TestScanSectionFindsRequirementHeaders(t *testing.T) {
	t.Parallel()

	lines := []string{
		"requirements:",
		"  build:",
		`    - {{ compiler("c") }}`,
		"  host:",
		"    - python",
		"  run:",
		"    - python",
		"  run_constrained:",
		"    - foo >=2",
	}

	scan := recipe.ScanSection(lines)

	assert.Equal(t, 1, scan.Build)
	assert.Equal(t, 3, scan.Host)
	assert.Equal(t, 5, scan.Run)
	assert.Equal(t, 7, scan.Constrain)
	assert.Equal(t, 0, scan.Test)
	assert.Equal(t, 3, scan.InsertionAnchor())
}

func TestScanSectionWithdrawsBuildSettingsHeader(t *testing.T) {
	t.Parallel()

	// The first build: opens the settings mapping, not requirements.
	lines := []string{
		"package:",
		"build:",
		"  number: 0",
		"  skip: true  # [win]",
		"requirements:",
		"  build:",
		`    - {{ compiler("cxx") }}`,
		"  host:",
		"    - python",
	}

	scan := recipe.ScanSection(lines)

	assert.Equal(t, 5, scan.Build)
	assert.Equal(t, 7, scan.Host)
}

func TestScanSectionHaltsAtTest(t *testing.T) {
	t.Parallel()

	lines := []string{
		"requirements:",
		"  build:",
		`    - {{ compiler("c") }}`,
		"test:",
		"  requires:",
		`    - {{ compiler("fortran") }}`,
	}

	scan := recipe.ScanSection(lines)

	assert.Equal(t, 3, scan.Test)

	_, sawFortran := scan.Compilers[recipe.CompilerOther]
	assert.False(t, sawFortran, "compilers inside the test section must be ignored")
}

func TestScanSectionRecordsCompilerDetails(t *testing.T) {
	t.Parallel()

	lines := []string{
		"requirements:",
		"  build:",
		`    - {{ compiler("c") }}  # [unix]`,
		`    - {{ compiler("m2w64_c") }}  # [win]`,
		`    - {{ compiler("fortran") }}`,
	}

	scan := recipe.ScanSection(lines)

	c, ok := scan.Compilers[recipe.CompilerC]
	require.True(t, ok)
	assert.Equal(t, 2, c.Line)
	assert.Equal(t, "    ", c.Indent)
	assert.Equal(t, "  # [unix]", c.Selector)

	m2c, ok := scan.Compilers[recipe.CompilerM2C]
	require.True(t, ok)
	assert.Equal(t, 3, m2c.Line)
	assert.Equal(t, "  # [win]", m2c.Selector)

	other, ok := scan.Compilers[recipe.CompilerOther]
	require.True(t, ok)
	assert.Equal(t, 4, other.Line)
	assert.Empty(t, other.Selector)
}

func TestHasCompilerInBuild(t *testing.T) {
	t.Parallel()

	withCompiler := []string{
		"requirements:",
		"  build:",
		`    - {{ compiler("c") }}  # [linux]`,
		"  host:",
		"    - python",
	}

	withoutCompiler := []string{
		"requirements:",
		"  build:",
		"    - cmake",
		"  host:",
		`    - {{ compiler("c") }}`,
	}

	assert.True(t, recipe.ScanSection(withCompiler).HasCompilerInBuild(withCompiler))
	assert.False(t, recipe.ScanSection(withoutCompiler).HasCompilerInBuild(withoutCompiler),
		"compilers outside the build block do not count")
}
