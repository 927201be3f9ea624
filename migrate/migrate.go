// Package migrate contains the recipe migrations: the version bump that re-resolves
// source URLs and hashes, and the stdlib migration that inserts the C standard-library
// declaration. Migrations edit the document in memory and only hand back a full
// replacement text when they succeed end to end.
package migrate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/condatools/recipebump/internal/errors"
	"github.com/condatools/recipebump/recipe"
)

const (
	// MetaFileName is the recipe document a migration edits.
	MetaFileName = "meta.yaml"

	// ConfigFileName is the build-configuration side channel next to the recipe.
	ConfigFileName = "conda_build_config.yaml"
)

// stdlibConfigBlock pins the C standard-library version on linux. Appended to the
// build configuration when a sysroot pin was retired from the recipe itself.
const stdlibConfigBlock = "\nc_stdlib_version:   # [linux]\n  - \"2.17\"          # [linux]\n"

// Outcome is what a migration produced: the full replacement document text (empty when
// nothing should be written), the set of failure descriptions, and whether the build
// configuration needs the stdlib version pin.
type Outcome struct {
	// Document is the complete new recipe text. Empty means the recipe must not be
	// rewritten, either because the migration failed or because nothing changed.
	Document string

	// Errors collects distinct failure descriptions. A migration may accumulate several
	// (one per source, say) before giving up.
	Errors map[string]struct{}

	// WriteStdlibToConfig asks the orchestrator to pin the stdlib version in the
	// build-configuration file alongside the recipe.
	WriteStdlibToConfig bool
}

// AddError records a failure description, deduplicating repeats.
func (o *Outcome) AddError(err error) {
	if o.Errors == nil {
		o.Errors = map[string]struct{}{}
	}

	o.Errors[err.Error()] = struct{}{}
}

// Failed reports whether the migration recorded any failure.
func (o *Outcome) Failed() bool {
	return len(o.Errors) > 0
}

// Changed reports whether the migration produced a document to write.
func (o *Outcome) Changed() bool {
	return o.Document != ""
}

// Migrator is one self-contained recipe migration.
type Migrator interface {
	// Name identifies the migration in logs.
	Name() string

	// Filter returns true when the migration should be skipped for this recipe.
	Filter(rec *recipe.Recipe) bool

	// Migrate runs against the parsed recipe. A non-nil error means the migration
	// itself broke (I/O, programming error); recipe-level failures go in the outcome.
	Migrate(ctx context.Context, rec *recipe.Recipe) (Outcome, error)
}

// Apply runs one migration against the recipe directory and writes the results back:
// the replacement meta.yaml when the migration produced one, and the build-configuration
// stdlib pin when asked for. A filtered-out recipe is a silent no-op.
func Apply(ctx context.Context, migrator Migrator, recipeDir string, logger *logrus.Entry) (Outcome, error) {
	metaPath := filepath.Join(recipeDir, MetaFileName)

	rec, err := recipe.Load(metaPath)
	if err != nil {
		return Outcome{}, err
	}

	logger = logger.WithField("migration", migrator.Name())

	if migrator.Filter(rec) {
		logger.Debugf("migration not applicable to %s", metaPath)
		return Outcome{}, nil
	}

	outcome, err := migrator.Migrate(ctx, rec)
	if err != nil {
		return outcome, err
	}

	if outcome.Failed() {
		for msg := range outcome.Errors {
			logger.Error(msg)
		}
	}

	if outcome.Changed() {
		if err := writePreservingMode(metaPath, outcome.Document); err != nil {
			return outcome, errors.WithStackTrace(err)
		}

		logger.Infof("updated %s", metaPath)
	}

	if outcome.WriteStdlibToConfig {
		configPath := filepath.Join(recipeDir, ConfigFileName)
		if err := appendToFile(configPath, stdlibConfigBlock); err != nil {
			return outcome, errors.WithStackTrace(err)
		}

		logger.Infof("pinned c_stdlib_version in %s", configPath)
	}

	return outcome, nil
}

func writePreservingMode(path, contents string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	return os.WriteFile(path, []byte(contents), mode)
}

func appendToFile(path, contents string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(contents)

	return err
}
