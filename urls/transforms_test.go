package urls_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condatools/recipebump/urls"
)

func TestTransformsTogglesVersionPrefix(t *testing.T) {
	t.Parallel()

	candidates := urls.Transforms("https://github.com/acme/pkg/archive/v{{ version }}.tar.gz")

	require.NotEmpty(t, candidates)
	assert.Equal(t, "https://github.com/acme/pkg/archive/{{ version }}.tar.gz", candidates[0])
	assert.Contains(t, candidates, "https://github.com/acme/pkg/archive/refs/tags/v{{ version }}.tar.gz")
	assert.Contains(t, candidates, "https://github.com/acme/pkg/archive/v{{ version }}.zip")
}

func TestTransformsSwapsPypiHosts(t *testing.T) {
	t.Parallel()

	candidates := urls.Transforms("https://pypi.io/packages/source/p/pkg/pkg-{{ version }}.tar.gz")

	assert.Contains(t, candidates, "https://files.pythonhosted.org/packages/source/p/pkg/pkg-{{ version }}.tar.gz")
}

func TestTransformsNeverReturnsInputOrDuplicates(t *testing.T) {
	t.Parallel()

	tmpl := "https://github.com/acme/pkg/archive/{{ version }}.tar.gz"
	candidates := urls.Transforms(tmpl)

	seen := map[string]bool{}
	for _, candidate := range candidates {
		require.NotEqual(t, tmpl, candidate)
		require.False(t, seen[candidate], "duplicate candidate %q", candidate)
		seen[candidate] = true
	}
}

func TestTransformsIsDeterministic(t *testing.T) {
	t.Parallel()

	tmpl := "https://github.com/acme/pkg/releases/download/v{{ version }}/pkg-{{ version }}.tar.gz"
	require.Equal(t, urls.Transforms(tmpl), urls.Transforms(tmpl))
}

func TestTransformsOnUntemplatedURL(t *testing.T) {
	t.Parallel()

	// A hand-written URL with no template gets extension swaps at most.
	candidates := urls.Transforms("https://example.com/pkg-1.2.0.tar.gz")
	assert.Contains(t, candidates, "https://example.com/pkg-1.2.0.zip")
}
