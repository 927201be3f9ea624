package migrate

import (
	"context"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"

	"github.com/condatools/recipebump/recipe"
)

// rURLFragments identify sources hosted on the R ecosystem's archive mirror, whose
// naming convention replaces underscores in versions with dashes.
var rURLFragments = []string{"cran.r-project.org/src/contrib", "cran_mirror"}

// VersionMigrator bumps a recipe to a new upstream version: it substitutes the version
// variable, re-resolves every source URL under the new template context, and records
// the freshly computed content hashes.
type VersionMigrator struct {
	// NewVersion is the upstream version to migrate to.
	NewVersion string

	// HashType is the preferred hash algorithm (sha256 unless configured otherwise).
	HashType string

	// Timeout bounds each fetch-and-hash attempt.
	Timeout time.Duration

	// HashURL overrides the network boundary; nil means hashing.HashURL.
	HashURL HashFunc

	Logger *logrus.Entry
}

func (m *VersionMigrator) Name() string { return "version" }

// Filter returns true when the migration should not run: no new version was given, or
// the new version does not sort strictly above the recipe's declared version.
func (m *VersionMigrator) Filter(rec *recipe.Recipe) bool {
	if m.NewVersion == "" {
		return true
	}

	newVersion, err := goversion.NewVersion(m.NewVersion)
	if err != nil {
		m.Logger.WithError(err).Warnf("cannot parse new version %q", m.NewVersion)
		return true
	}

	declared, ok := rec.Vars.Lookup("version", "")
	if !ok {
		// Let Migrate report the missing version variable properly.
		return false
	}

	currentVersion, err := goversion.NewVersion(declared)
	if err != nil {
		return false
	}

	return newVersion.LessThanOrEqual(currentVersion)
}

// Migrate performs the version bump. All edits happen in memory; on any failure the
// outcome carries no document, so a half-migrated recipe is never written.
func (m *VersionMigrator) Migrate(ctx context.Context, rec *recipe.Recipe) (Outcome, error) {
	outcome := Outcome{Errors: map[string]struct{}{}}

	if rec.HasVCSSource() {
		m.Logger.Error("version migrations do not work on version-control sources")
		outcome.AddError(VCSSourceError{})

		return outcome, nil
	}

	if !rec.Vars.HasQualified("version", "") {
		m.Logger.Error("version migrations do not work on versions not declared via the variable table")
		outcome.AddError(NoVersionVariableError{})

		return outcome, nil
	}

	oldVersion, _ := rec.Vars.Lookup("version", "")
	originalDocument := rec.Render()

	newVersion := m.NewVersion
	if m.hasRURL(rec) {
		newVersion = strings.ReplaceAll(newVersion, "_", "-")
	}

	if err := rec.SetVar("version", "", newVersion); err != nil {
		return outcome, err
	}

	if len(rec.Sources) == 0 {
		outcome.AddError(NoChangeError{})
		return outcome, nil
	}

	engine := &Engine{
		Logger:   m.Logger,
		HashType: m.HashType,
		Timeout:  m.Timeout,
		HashURL:  m.HashURL,
	}

	updated := true

	for _, src := range rec.Sources {
		srcUpdated, err := engine.UpdateSource(ctx, rec, src)
		if err != nil {
			// The recipe is not fully templated; the whole document is off limits.
			outcome.AddError(err)
			return outcome, nil
		}

		if !srcUpdated {
			outcome.AddError(HashNotFoundError{URL: sourceDisplayURL(src)})
		}

		updated = updated && srcUpdated
	}

	if !updated {
		// One failed source poisons the whole update; siblings may have succeeded, but
		// writing them out would leave a half-migrated recipe.
		return outcome, nil
	}

	// If nothing but the version line changed, the update did not actually happen.
	if err := rec.SetVar("version", "", oldVersion); err != nil {
		return outcome, err
	}

	unchanged := rec.Render() == originalDocument

	if err := rec.SetVar("version", "", newVersion); err != nil {
		return outcome, err
	}

	if unchanged {
		m.Logger.Error("recipe did not change in version migration but an update was expected")
		outcome.AddError(NoChangeError{})

		return outcome, nil
	}

	rec.ResetBuildNumber()

	outcome.Document = rec.Render()

	return outcome, nil
}

func (m *VersionMigrator) hasRURL(rec *recipe.Recipe) bool {
	matches := func(value string) bool {
		for _, fragment := range rURLFragments {
			if strings.Contains(value, fragment) {
				return true
			}
		}

		return false
	}

	for _, src := range rec.Sources {
		for _, value := range src.Values() {
			if matches(value) {
				return true
			}
		}
	}

	for _, selector := range append([]string{""}, rec.Vars.Selectors()...) {
		for _, value := range rec.Vars.Context(selector) {
			if matches(value) {
				return true
			}
		}
	}

	return false
}

func sourceDisplayURL(src *recipe.Source) string {
	ref, _, ok := src.Field("url", "")
	if !ok {
		return "<no url>"
	}

	if ref.IsList() && len(ref.Items) > 0 {
		return ref.Items[0].Value
	}

	return ref.Scalar
}
