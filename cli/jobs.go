package cli

import (
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/condatools/recipebump/internal/errors"
)

// Job is one entry of a bump jobs file: which recipe to migrate and to what version.
type Job struct {
	RecipeDir  string `mapstructure:"recipe_dir"`
	NewVersion string `mapstructure:"new_version"`

	// HashType optionally overrides the globally configured hash algorithm.
	HashType string `mapstructure:"hash_type"`
}

// LoadJobs reads a YAML jobs file: a list of mappings with recipe_dir, new_version, and
// an optional hash_type. Unknown keys are rejected so typos do not silently drop
// settings.
func LoadJobs(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	var entries []map[string]any
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "unable to parse jobs file %s", path)
	}

	jobs := make([]Job, 0, len(entries))

	for i, entry := range entries {
		var job Job

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &job,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, errors.WithStackTrace(err)
		}

		if err := decoder.Decode(entry); err != nil {
			return nil, errors.WithStackTraceAndPrefix(err, "invalid job %d in %s", i+1, path)
		}

		if job.RecipeDir == "" || job.NewVersion == "" {
			return nil, errors.Errorf("job %d in %s must set recipe_dir and new_version", i+1, path)
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}
