// Package options holds the resolved runtime settings shared by every command:
// logging, execution mode, lock configuration, and migration parameters. Settings come
// from an optional INI config file overridden by command-line flags.
package options

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/condatools/recipebump/executor"
	"github.com/condatools/recipebump/hashing"
	"github.com/condatools/recipebump/internal/errors"
)

// DefaultFetchTimeout bounds a single fetch-and-hash attempt.
const DefaultFetchTimeout = 2 * time.Minute

// Options are the resolved settings for one invocation.
type Options struct {
	// Logger is the root logger commands derive their field loggers from.
	Logger *logrus.Entry

	// LogLevel is the textual logrus level.
	LogLevel string

	// HashType is the preferred hash algorithm.
	HashType string

	// FetchTimeout bounds each fetch-and-hash attempt.
	FetchTimeout time.Duration

	// Mode selects how workers coordinate: thread, process, cluster, or none.
	Mode executor.Kind

	// Workers is the pool size.
	Workers int

	// LockDir, LockName, LockTable and AwsRegion configure the lock backends.
	LockDir   string
	LockName  string
	LockTable string
	AwsRegion string

	// ConfigPath is the INI config file the settings were loaded from, if any.
	ConfigPath string
}

// NewOptions returns options with every default filled in.
func NewOptions() *Options {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})

	return &Options{
		Logger:       logrus.NewEntry(logger),
		LogLevel:     logrus.InfoLevel.String(),
		HashType:     hashing.DefaultAlgorithm,
		FetchTimeout: DefaultFetchTimeout,
		Mode:         executor.KindThread,
		Workers:      1,
		LockDir:      os.TempDir(),
		LockName:     "recipebump",
	}
}

// LoadConfigFile layers settings from an INI file under the [recipebump] section onto
// the options. Flags parsed afterwards still win.
func (opts *Options) LoadConfigFile(path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return errors.WithStackTraceAndPrefix(err, "unable to load config file %s", path)
	}

	section := cfg.Section("recipebump")

	if key := section.Key("hash_type"); key.String() != "" {
		opts.HashType = key.String()
	}

	if key := section.Key("fetch_timeout"); key.String() != "" {
		timeout, err := key.Duration()
		if err != nil {
			return errors.WithStackTraceAndPrefix(err, "invalid fetch_timeout in %s", path)
		}

		opts.FetchTimeout = timeout
	}

	if key := section.Key("mode"); key.String() != "" {
		opts.Mode = executor.Kind(key.String())
	}

	if key := section.Key("workers"); key.String() != "" {
		workers, err := key.Int()
		if err != nil {
			return errors.WithStackTraceAndPrefix(err, "invalid workers in %s", path)
		}

		opts.Workers = workers
	}

	for iniKey, target := range map[string]*string{
		"lock_dir":   &opts.LockDir,
		"lock_name":  &opts.LockName,
		"lock_table": &opts.LockTable,
		"aws_region": &opts.AwsRegion,
	} {
		if key := section.Key(iniKey); key.String() != "" {
			*target = key.String()
		}
	}

	opts.ConfigPath = path

	return nil
}

// Validate rejects settings no command could run with.
func (opts *Options) Validate() error {
	if !hashing.Supported(opts.HashType) {
		return errors.Errorf("unsupported hash type %q", opts.HashType)
	}

	validMode := false
	for _, kind := range executor.Kinds {
		validMode = validMode || opts.Mode == kind
	}

	if !validMode {
		return errors.Errorf("unknown execution mode %q", opts.Mode)
	}

	if opts.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", opts.Workers)
	}

	if opts.Mode == executor.KindCluster && opts.LockTable == "" {
		return errors.Errorf("cluster mode requires a lock table")
	}

	return nil
}

// ExecutorConfig translates the options into a pool configuration.
func (opts *Options) ExecutorConfig() executor.Config {
	return executor.Config{
		Kind:       opts.Mode,
		MaxWorkers: opts.Workers,
		LockDir:    opts.LockDir,
		LockName:   opts.LockName,
		LockTable:  opts.LockTable,
		AwsRegion:  opts.AwsRegion,
	}
}

// SetLogLevel applies the textual log level to the logger.
func (opts *Options) SetLogLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.WithStackTrace(err)
	}

	opts.LogLevel = level
	opts.Logger.Logger.SetLevel(parsed)

	return nil
}
