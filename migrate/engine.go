package migrate

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/condatools/recipebump/hashing"
	"github.com/condatools/recipebump/recipe"
	"github.com/condatools/recipebump/urls"
)

// checksumNames are the conventional template-variable names recipes use for hash
// values, probed in order when a hash field's value is itself a template expression.
// The algorithm's own name is always tried last.
var checksumNames = []string{"hash_value", "hash", "hash_val", "sha256sum", "checksum"}

// HashFunc is the engine's network boundary: fetch the bytes at a URL and return their
// hex digest under the given algorithm, honoring the timeout. Tests substitute a stub.
type HashFunc func(ctx context.Context, url, algorithm string, timeout time.Duration) (string, error)

// Engine resolves new download URLs and content hashes for a recipe's source entries.
type Engine struct {
	Logger   *logrus.Entry
	HashType string
	Timeout  time.Duration

	// HashURL defaults to hashing.HashURL.
	HashURL HashFunc
}

func (eng *Engine) hashURL(ctx context.Context, url, algorithm string) (string, error) {
	hashFn := eng.HashURL
	if hashFn == nil {
		hashFn = hashing.HashURL
	}

	return hashFn(ctx, url, algorithm, eng.Timeout)
}

// UpdateSource re-resolves one source entry under every applicable selector, rewriting
// its hash (and, when a rewritten URL was needed, its URL template) in place on
// success. It returns whether the source is fully updated. The returned error is
// non-nil only for the fatal case of a referenced template variable that is declared
// nowhere; every network-level failure is absorbed into the boolean.
func (eng *Engine) UpdateSource(ctx context.Context, rec *recipe.Recipe, src *recipe.Source) (bool, error) {
	if !src.Has("url") {
		return false, nil
	}

	algorithm, ok := eng.chooseAlgorithm(src)
	if !ok {
		return false, nil
	}

	updated := true

	for _, selector := range applicableSelectors(rec, src) {
		urlRef, _, ok := src.Field("url", selector)
		if !ok {
			continue
		}

		hashRef, _, ok := src.Field(algorithm, selector)
		if !ok {
			continue
		}

		templateCtx := resolveContext(rec, selector)

		skipSelector := false

		for _, name := range referencedVars(urlRef, hashRef) {
			if !rec.Vars.Has(name) {
				// The recipe is not fully templated; rewriting it is unsafe.
				return false, UndeclaredVariableError{Variable: name}
			}

			// The variable exists, just not under this selector; that only rules out
			// this selector.
			if _, ok := templateCtx[name]; !ok {
				skipSelector = true
			}
		}

		if skipSelector {
			continue
		}

		eng.Logger.WithFields(logrus.Fields{
			"selector":  selector,
			"algorithm": algorithm,
		}).Debug("resolving source")

		newHash, newTmpl, itemIndex := eng.resolve(ctx, urlRef, algorithm, templateCtx)
		if newHash == "" {
			updated = false
			continue
		}

		if !eng.replaceHash(rec, src, hashRef, selector, algorithm, newHash) {
			updated = false
			continue
		}

		if err := replaceURLTemplate(rec, urlRef, newTmpl, itemIndex); err != nil {
			return false, err
		}
	}

	return updated, nil
}

// resolve renders and probes the URL template (or each alternate of a list-valued URL)
// under the given context, falling back through the deterministic rewrite candidates.
// It returns the found hash, the template that produced it, and the list index it
// belongs to (-1 for scalar URLs). An empty hash means every candidate was exhausted.
func (eng *Engine) resolve(ctx context.Context, urlRef *recipe.FieldRef, algorithm string, templateCtx map[string]string) (string, string, int) {
	if urlRef.IsList() {
		for i, item := range urlRef.Items {
			if newHash, newTmpl := eng.probeCandidates(ctx, item.Value, algorithm, templateCtx); newHash != "" {
				return newHash, newTmpl, i
			}
		}

		return "", "", -1
	}

	newHash, newTmpl := eng.probeCandidates(ctx, urlRef.Scalar, algorithm, templateCtx)

	return newHash, newTmpl, -1
}

// probeCandidates is a short-circuiting fold over the candidate sequence: the original
// template first, then each syntactic rewrite, stopping at the first URL that fetches
// and hashes.
func (eng *Engine) probeCandidates(ctx context.Context, tmpl, algorithm string, templateCtx map[string]string) (string, string) {
	for _, candidate := range append([]string{tmpl}, urls.Transforms(tmpl)...) {
		url, err := RenderedClean(candidate, templateCtx)
		if err != nil {
			eng.Logger.WithError(err).Debugf("URL template does not render: %s", candidate)
			continue
		}

		newHash, err := eng.hashURL(ctx, url, algorithm)
		if err != nil {
			// Unreachable resources and timeouts are "hash not found", never fatal.
			eng.Logger.WithError(err).Debugf("url does not exist or hashing took too long: %s", url)
			continue
		}

		eng.Logger.Debugf("hash for %s: %s", url, newHash)

		return newHash, candidate
	}

	return "", ""
}

// replaceHash routes the freshly computed hash either into the source's own hash field
// or, when that field's value is a template expression, into the shared variable table
// under the first conventional checksum name that is declared there, preferring the
// selector-qualified variant.
func (eng *Engine) replaceHash(rec *recipe.Recipe, src *recipe.Source, hashRef *recipe.FieldRef, selector, algorithm, newHash string) bool {
	if !strings.Contains(hashRef.Scalar, "{{") {
		return rec.SetField(hashRef, algorithm, newHash) == nil
	}

	for _, name := range append(append([]string{}, checksumNames...), algorithm) {
		if selector != "" {
			if _, ok := rec.Vars.Lookup(name, selector); ok {
				return rec.SetVar(name, varSelectorFor(rec, name, selector), newHash) == nil
			}
		}

		if _, ok := rec.Vars.Lookup(name, ""); ok {
			return rec.SetVar(name, "", newHash) == nil
		}
	}

	return false
}

func replaceURLTemplate(rec *recipe.Recipe, urlRef *recipe.FieldRef, newTmpl string, itemIndex int) error {
	if itemIndex >= 0 {
		if urlRef.Items[itemIndex].Value == newTmpl {
			return nil
		}

		return rec.SetListItem(&urlRef.Items[itemIndex], newTmpl)
	}

	if urlRef.Scalar == newTmpl {
		return nil
	}

	return rec.SetField(urlRef, "url", newTmpl)
}

// chooseAlgorithm picks the hash field to update: the configured algorithm if the
// source declares it, otherwise the first supported hash field the source carries.
func (eng *Engine) chooseAlgorithm(src *recipe.Source) (string, bool) {
	candidates := []string{eng.HashType, hashing.DefaultAlgorithm, "md5", "sha1"}

	for _, algorithm := range candidates {
		if algorithm != "" && hashing.Supported(algorithm) && src.Has(algorithm) {
			return algorithm, true
		}
	}

	return "", false
}

// applicableSelectors enumerates the selector qualifiers found on the recipe's variable
// table and on the source's own fields, plus the unqualified case.
func applicableSelectors(rec *recipe.Recipe, src *recipe.Source) []string {
	seen := map[string]bool{"": true}
	selectors := []string{""}

	for _, selector := range append(rec.Vars.Selectors(), src.Selectors()...) {
		if !seen[selector] {
			seen[selector] = true
			selectors = append(selectors, selector)
		}
	}

	return selectors
}

// resolveContext builds the rendered variable mapping for one selector. Values that are
// themselves template expressions are resolved against the rest of the context; two
// passes cover chained references.
func resolveContext(rec *recipe.Recipe, selector string) map[string]string {
	templateCtx := rec.Vars.Context(selector)

	for pass := 0; pass < 2; pass++ {
		for name, value := range templateCtx {
			if !strings.Contains(value, "{{") {
				continue
			}

			if rendered, err := RenderTemplate(value, templateCtx); err == nil {
				templateCtx[name] = rendered
			}
		}
	}

	return templateCtx
}

func referencedVars(urlRef, hashRef *recipe.FieldRef) []string {
	var out []string

	if urlRef.IsList() {
		for _, item := range urlRef.Items {
			out = append(out, TemplateVars(item.Value)...)
		}
	} else {
		out = append(out, TemplateVars(urlRef.Scalar)...)
	}

	return append(out, TemplateVars(hashRef.Scalar)...)
}

// varSelectorFor returns the qualifier to address a variable that Lookup resolved under
// the given active selector: the selector itself if a qualified declaration exists,
// otherwise the unqualified form.
func varSelectorFor(rec *recipe.Recipe, name, selector string) string {
	if rec.Vars.HasQualified(name, selector) {
		return selector
	}

	return ""
}
