// Package urls generates syntactic rewrites of download URL templates. When the URL a
// recipe declares stops resolving after a version bump, upstreams have usually just
// moved the same logical artifact: a different archive extension, a `v` prefix added or
// dropped from the tag, another mirror of the same ecosystem host. The rewrites below
// enumerate those conventions deterministically so the resolution engine can probe them
// in a fixed order and stop at the first fetchable candidate.
package urls

import "strings"

// extensions recipes commonly use for source archives, in probe order.
var archiveExtensions = []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip"}

// hostRewrites maps well-known archive host path fragments to their mirrors.
var hostRewrites = [][2]string{
	{"pypi.io/packages/source", "files.pythonhosted.org/packages/source"},
	{"pypi.org/packages/source", "files.pythonhosted.org/packages/source"},
	{"files.pythonhosted.org/packages/source", "pypi.io/packages/source"},
	{"cran.r-project.org/src/contrib", "cran.r-project.org/src/contrib/Archive/{{ name }}"},
}

// tagRewrites toggles GitHub tag-archive path conventions.
var tagRewrites = [][2]string{
	{"/archive/refs/tags/", "/archive/"},
	{"/archive/", "/archive/refs/tags/"},
	{"/releases/download/v{{ version }}/", "/archive/v{{ version }}/"},
	{"/releases/download/{{ version }}/", "/archive/{{ version }}/"},
}

// Transforms returns the candidate rewrites of the given URL template, most likely
// first. The sequence is finite, deterministic, free of duplicates, and never contains
// the input itself.
func Transforms(tmpl string) []string {
	seen := map[string]bool{tmpl: true}

	var out []string

	add := func(candidate string) {
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}

	// Each family is applied to every candidate discovered so far, so e.g. a `v` prefix
	// toggle combines with an extension swap. Families are ordered by how often the
	// rewrite is the fix in practice.
	families := []func(string) []string{
		versionPrefixToggles,
		extensionSwaps,
		pathRewrites(tagRewrites),
		pathRewrites(hostRewrites),
	}

	frontier := []string{tmpl}
	for _, family := range families {
		for _, candidate := range append([]string{}, frontier...) {
			for _, rewritten := range family(candidate) {
				add(rewritten)
				frontier = append(frontier, rewritten)
			}
		}
	}

	return out
}

// versionPrefixToggles adds or strips a `v` in front of the version expression in the
// path, matching how upstreams tag releases.
func versionPrefixToggles(tmpl string) []string {
	var out []string

	if strings.Contains(tmpl, "v{{ version }}") {
		out = append(out, strings.ReplaceAll(tmpl, "v{{ version }}", "{{ version }}"))
	} else if strings.Contains(tmpl, "{{ version }}") {
		out = append(out, strings.ReplaceAll(tmpl, "/{{ version }}", "/v{{ version }}"))
	}

	return out
}

// extensionSwaps replaces the archive extension with each of the other known ones.
func extensionSwaps(tmpl string) []string {
	var out []string

	for _, ext := range archiveExtensions {
		if !strings.HasSuffix(tmpl, ext) {
			continue
		}

		base := strings.TrimSuffix(tmpl, ext)
		for _, other := range archiveExtensions {
			if other != ext {
				out = append(out, base+other)
			}
		}

		break
	}

	return out
}

func pathRewrites(rewrites [][2]string) func(string) []string {
	return func(tmpl string) []string {
		var out []string

		for _, rewrite := range rewrites {
			if strings.Contains(tmpl, rewrite[0]) {
				out = append(out, strings.Replace(tmpl, rewrite[0], rewrite[1], 1))
			}
		}

		return out
	}
}
