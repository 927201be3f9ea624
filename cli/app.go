// Package cli defines the recipebump command-line interface: a `bump` command that
// migrates recipes to a new upstream version and a `stdlib` command that inserts the C
// standard-library declaration, both running their work through the executor pool.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/condatools/recipebump/executor"
	"github.com/condatools/recipebump/internal/errors"
	"github.com/condatools/recipebump/locks"
	"github.com/condatools/recipebump/migrate"
	"github.com/condatools/recipebump/options"
)

// NewApp creates the recipebump CLI app bound to the given options.
func NewApp(opts *options.Options) *cli.App {
	app := cli.NewApp()
	app.Name = "recipebump"
	app.Usage = "Rewrite conda recipes: bump versions with fresh source hashes, insert stdlib declarations."
	app.Flags = globalFlags()
	app.Before = func(cliCtx *cli.Context) error {
		return configureOptions(cliCtx, opts)
	}
	app.Commands = []*cli.Command{
		bumpCommand(opts),
		stdlibCommand(opts),
	}

	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Usage: "Logging level (trace, debug, info, warn, error)."},
		&cli.StringFlag{Name: "config", Usage: "Path to an INI config file."},
		&cli.StringFlag{Name: "mode", Usage: "Execution mode: thread, process, cluster, or none."},
		&cli.IntFlag{Name: "workers", Usage: "Number of concurrent workers."},
		&cli.StringFlag{Name: "hash-type", Usage: "Preferred hash algorithm for source artifacts."},
		&cli.DurationFlag{Name: "fetch-timeout", Usage: "Timeout for each fetch-and-hash attempt."},
		&cli.StringFlag{Name: "lock-dir", Usage: "Directory for the process-mode lock file."},
		&cli.StringFlag{Name: "lock-name", Usage: "Name of the cluster-mode lock."},
		&cli.StringFlag{Name: "lock-table", Usage: "DynamoDB table backing the cluster-mode lock."},
		&cli.StringFlag{Name: "aws-region", Usage: "AWS region of the lock table."},
	}
}

// configureOptions layers the config file, then explicit flags, onto the defaults.
func configureOptions(cliCtx *cli.Context, opts *options.Options) error {
	if cliCtx.IsSet("config") {
		if err := opts.LoadConfigFile(cliCtx.String("config")); err != nil {
			return err
		}
	}

	if cliCtx.IsSet("log-level") {
		if err := opts.SetLogLevel(cliCtx.String("log-level")); err != nil {
			return err
		}
	}

	if cliCtx.IsSet("mode") {
		opts.Mode = executor.Kind(cliCtx.String("mode"))
	}

	if cliCtx.IsSet("workers") {
		opts.Workers = cliCtx.Int("workers")
	}

	if cliCtx.IsSet("hash-type") {
		opts.HashType = cliCtx.String("hash-type")
	}

	if cliCtx.IsSet("fetch-timeout") {
		opts.FetchTimeout = cliCtx.Duration("fetch-timeout")
	}

	for flag, target := range map[string]*string{
		"lock-dir":   &opts.LockDir,
		"lock-name":  &opts.LockName,
		"lock-table": &opts.LockTable,
		"aws-region": &opts.AwsRegion,
	} {
		if cliCtx.IsSet(flag) {
			*target = cliCtx.String(flag)
		}
	}

	return opts.Validate()
}

func bumpCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:      "bump",
		Usage:     "Migrate recipes to a new upstream version, re-resolving source URLs and hashes.",
		ArgsUsage: "[recipe-dir...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "version", Usage: "The upstream version to bump to."},
			&cli.StringFlag{Name: "jobs", Usage: "YAML file listing recipe directories and their target versions."},
		},
		Action: func(cliCtx *cli.Context) error {
			jobs, err := collectJobs(cliCtx, opts)
			if err != nil {
				return err
			}

			planned := make([]plannedMigration, 0, len(jobs))

			for _, job := range jobs {
				hashType := job.HashType
				if hashType == "" {
					hashType = opts.HashType
				}

				planned = append(planned, plannedMigration{
					recipeDir: job.RecipeDir,
					migrator: &migrate.VersionMigrator{
						NewVersion: job.NewVersion,
						HashType:   hashType,
						Timeout:    opts.FetchTimeout,
						Logger:     opts.Logger.WithField("recipe", job.RecipeDir),
					},
				})
			}

			return runMigrations(cliCtx, opts, planned)
		},
	}
}

func stdlibCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:      "stdlib",
		Usage:     "Insert the C standard-library declaration next to compiler declarations.",
		ArgsUsage: "recipe-dir...",
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.NArg() == 0 {
				return errors.Errorf("at least one recipe directory is required")
			}

			planned := make([]plannedMigration, 0, cliCtx.NArg())

			for _, recipeDir := range cliCtx.Args().Slice() {
				planned = append(planned, plannedMigration{
					recipeDir: recipeDir,
					migrator: &migrate.StdlibMigrator{
						Logger: opts.Logger.WithField("recipe", recipeDir),
					},
				})
			}

			return runMigrations(cliCtx, opts, planned)
		},
	}
}

// collectJobs resolves the bump work list: either a jobs file, or the positional recipe
// directories paired with the --version flag.
func collectJobs(cliCtx *cli.Context, opts *options.Options) ([]Job, error) {
	if cliCtx.IsSet("jobs") {
		if cliCtx.NArg() > 0 || cliCtx.IsSet("version") {
			return nil, errors.Errorf("--jobs cannot be combined with --version or positional recipe directories")
		}

		return LoadJobs(cliCtx.String("jobs"))
	}

	if cliCtx.NArg() == 0 {
		return nil, errors.Errorf("at least one recipe directory is required")
	}

	if cliCtx.String("version") == "" {
		return nil, errors.Errorf("--version is required unless --jobs is given")
	}

	var jobs []Job
	for _, recipeDir := range cliCtx.Args().Slice() {
		jobs = append(jobs, Job{RecipeDir: recipeDir, NewVersion: cliCtx.String("version")})
	}

	return jobs, nil
}

type plannedMigration struct {
	recipeDir string
	migrator  migrate.Migrator
}

// runMigrations executes the planned migrations on the worker pool. Each task holds its
// worker's lock around the recipe-store mutation so concurrent runs, in whatever mode,
// never interleave writes to the same checkout.
func runMigrations(cliCtx *cli.Context, opts *options.Options, planned []plannedMigration) error {
	pool, err := executor.NewPool(cliCtx.Context, opts.ExecutorConfig())
	if err != nil {
		return err
	}

	for _, migration := range planned {
		migration := migration

		pool.Submit(func(lock locks.Lock) error {
			return locks.WithLock(lock, func() error {
				outcome, err := migrate.Apply(cliCtx.Context, migration.migrator, migration.recipeDir, opts.Logger)
				if err != nil {
					return err
				}

				if outcome.Failed() {
					return errors.Errorf("migration failed for %s", migration.recipeDir)
				}

				return nil
			})
		})
	}

	return pool.Wait()
}
