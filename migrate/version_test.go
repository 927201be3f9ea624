package migrate_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condatools/recipebump/migrate"
	"github.com/condatools/recipebump/recipe"
)

const (
	oldHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	newHash = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

const bumpableRecipe = `{% set version = "1.2.3" %}

package:
  name: foo
  version: {{ version }}

source:
  url: https://pypi.io/packages/source/f/foo/foo-{{ version }}.tar.gz
  sha256: ` + oldHash + `

build:
  number: 2

requirements:
  run:
    - python
`

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logrus.NewEntry(logger)
}

// hashOnly returns a hash function that knows exactly the given URLs.
func hashOnly(hashes map[string]string) migrate.HashFunc {
	return func(_ context.Context, url, _ string, _ time.Duration) (string, error) {
		if hash, ok := hashes[url]; ok {
			return hash, nil
		}

		return "", assert.AnError
	}
}

func TestVersionMigrateUpdatesVersionHashAndBuildNumber(t *testing.T) {
	t.Parallel()

	rec, err := recipe.Parse(bumpableRecipe)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://pypi.io/packages/source/f/foo/foo-2.0.0.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, outcome.Errors)
	require.True(t, outcome.Changed())

	assert.Contains(t, outcome.Document, `{% set version = "2.0.0" %}`)
	assert.Contains(t, outcome.Document, "sha256: "+newHash)
	assert.NotContains(t, outcome.Document, oldHash)
	assert.Contains(t, outcome.Document, "number: 0")
	assert.Contains(t, outcome.Document, "url: https://pypi.io/packages/source/f/foo/foo-{{ version }}.tar.gz",
		"a URL that resolved as declared must not be rewritten")
}

func TestVersionMigrateRewritesURLWhenUpstreamMoved(t *testing.T) {
	t.Parallel()

	rec, err := recipe.Parse(bumpableRecipe)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://files.pythonhosted.org/packages/source/f/foo/foo-2.0.0.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, outcome.Errors)

	assert.Contains(t, outcome.Document,
		"url: https://files.pythonhosted.org/packages/source/f/foo/foo-{{ version }}.tar.gz")
	assert.Contains(t, outcome.Document, "sha256: "+newHash)
}

func TestVersionMigrateRoutesHashIntoVariableTable(t *testing.T) {
	t.Parallel()

	raw := `{% set version = "1.2.3" %}
{% set sha256 = "` + oldHash + `" %}

package:
  name: foo
  version: {{ version }}

source:
  url: https://example.com/foo-{{ version }}.tar.gz
  sha256: {{ sha256 }}
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://example.com/foo-2.0.0.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, outcome.Errors)

	assert.Contains(t, outcome.Document, `{% set sha256 = "`+newHash+`" %}`)
	assert.Contains(t, outcome.Document, "sha256: {{ sha256 }}",
		"the templated hash field itself stays untouched")
}

func TestVersionMigrateUpdatesSelectorQualifiedHashVariables(t *testing.T) {
	t.Parallel()

	// The hash field itself is unqualified, but the checksum variable is declared only
	// under selectors; the update must land on the variable matching the selector being
	// resolved, not on the (absent) unqualified declaration.
	raw := `{% set version = "1.2.3" %}
{% set sha256 = "aaaa" %}  # [unix]
{% set sha256 = "bbbb" %}  # [win]

package:
  name: foo
  version: {{ version }}

source:
  url: https://example.com/foo-{{ version }}.tar.gz
  sha256: {{ sha256 }}
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://example.com/foo-2.0.0.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, outcome.Errors)
	require.True(t, outcome.Changed())

	assert.Contains(t, outcome.Document, `{% set sha256 = "`+newHash+`" %}  # [unix]`)
	assert.Contains(t, outcome.Document, `{% set sha256 = "`+newHash+`" %}  # [win]`)
	assert.Contains(t, outcome.Document, "sha256: {{ sha256 }}")
}

func TestVersionMigrateRejectsVCSSources(t *testing.T) {
	t.Parallel()

	raw := `{% set version = "1.2.3" %}

package:
  name: foo
  version: {{ version }}

source:
  git_url: https://github.com/example/foo.git
  git_rev: v{{ version }}
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{NewVersion: "2.0.0", Logger: testLogger()}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, outcome.Changed())
	assert.Contains(t, outcome.Errors, migrate.VCSSourceError{}.Error())
}

func TestVersionMigrateRequiresVersionVariable(t *testing.T) {
	t.Parallel()

	raw := `package:
  name: foo
  version: 1.2.3

source:
  url: https://example.com/foo-1.2.3.tar.gz
  sha256: ` + oldHash + `
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{NewVersion: "2.0.0", Logger: testLogger()}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, outcome.Changed())
	assert.Contains(t, outcome.Errors, migrate.NoVersionVariableError{}.Error())
}

func TestVersionMigrateOneFailedSourcePoisonsTheWhole(t *testing.T) {
	t.Parallel()

	raw := `{% set version = "1.2.3" %}

package:
  name: foo
  version: {{ version }}

source:
  - url: https://example.com/good-{{ version }}.tar.gz
    sha256: ` + oldHash + `
  - url: https://example.com/bad-{{ version }}.tar.gz
    sha256: ` + oldHash + `
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://example.com/good-2.0.0.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, outcome.Changed(), "a half-migrated recipe must never be written")
	assert.Contains(t, outcome.Errors,
		migrate.HashNotFoundError{URL: "https://example.com/bad-{{ version }}.tar.gz"}.Error())
}

func TestVersionMigrateUndeclaredVariableIsFatal(t *testing.T) {
	t.Parallel()

	raw := `{% set version = "1.2.3" %}

package:
  name: foo
  version: {{ version }}

source:
  url: https://example.com/{{ name }}-{{ version }}.tar.gz
  sha256: ` + oldHash + `
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{NewVersion: "2.0.0", Logger: testLogger()}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, outcome.Changed())
	assert.Contains(t, outcome.Errors, migrate.UndeclaredVariableError{Variable: "name"}.Error())
}

func TestVersionMigrateDetectsNoOp(t *testing.T) {
	t.Parallel()

	rec, err := recipe.Parse(bumpableRecipe)
	require.NoError(t, err)

	// The new artifact hashes to the value already recorded, so reverting the version
	// reproduces the original document byte for byte.
	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0.0",
		HashURL: hashOnly(map[string]string{
			"https://pypi.io/packages/source/f/foo/foo-2.0.0.tar.gz": oldHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, outcome.Changed())
	assert.Contains(t, outcome.Errors, migrate.NoChangeError{}.Error())
}

func TestVersionFilter(t *testing.T) {
	t.Parallel()

	rec, err := recipe.Parse(bumpableRecipe)
	require.NoError(t, err)

	testCases := []struct {
		name       string
		newVersion string
		filtered   bool
	}{
		{"upgrade", "2.0.0", false},
		{"same version", "1.2.3", true},
		{"downgrade", "1.0.0", true},
		{"empty", "", true},
		{"unparseable", "not-a-version", true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			migrator := &migrate.VersionMigrator{NewVersion: testCase.newVersion, Logger: testLogger()}
			assert.Equal(t, testCase.filtered, migrator.Filter(rec))
		})
	}
}

func TestVersionMigrateDashesVersionForCRANSources(t *testing.T) {
	t.Parallel()

	raw := `{% set version = "1.2.3" %}

package:
  name: r-foo
  version: {{ version }}

source:
  url: https://cran.r-project.org/src/contrib/foo_{{ version }}.tar.gz
  sha256: ` + oldHash + `
`

	rec, err := recipe.Parse(raw)
	require.NoError(t, err)

	migrator := &migrate.VersionMigrator{
		NewVersion: "2.0_1",
		HashURL: hashOnly(map[string]string{
			"https://cran.r-project.org/src/contrib/foo_2.0-1.tar.gz": newHash,
		}),
		Logger: testLogger(),
	}

	outcome, err := migrator.Migrate(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, outcome.Errors)

	assert.Contains(t, outcome.Document, `{% set version = "2.0-1" %}`)
}
