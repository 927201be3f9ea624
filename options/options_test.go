package options_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condatools/recipebump/executor"
	"github.com/condatools/recipebump/options"
)

func TestNewOptionsDefaults(t *testing.T) {
	t.Parallel()

	opts := options.NewOptions()

	assert.Equal(t, "sha256", opts.HashType)
	assert.Equal(t, executor.KindThread, opts.Mode)
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, options.DefaultFetchTimeout, opts.FetchTimeout)
	require.NoError(t, opts.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recipebump.ini")
	require.NoError(t, os.WriteFile(path, []byte(`[recipebump]
hash_type = md5
fetch_timeout = 45s
mode = cluster
workers = 8
lock_table = recipebump-locks
aws_region = eu-west-1
`), 0644))

	opts := options.NewOptions()
	require.NoError(t, opts.LoadConfigFile(path))

	assert.Equal(t, "md5", opts.HashType)
	assert.Equal(t, 45*time.Second, opts.FetchTimeout)
	assert.Equal(t, executor.KindCluster, opts.Mode)
	assert.Equal(t, 8, opts.Workers)
	assert.Equal(t, "recipebump-locks", opts.LockTable)
	assert.Equal(t, "eu-west-1", opts.AwsRegion)
	assert.Equal(t, path, opts.ConfigPath)
	require.NoError(t, opts.Validate())
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	opts := options.NewOptions()
	require.Error(t, opts.LoadConfigFile(filepath.Join(t.TempDir(), "absent.ini")))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*options.Options)
		errMsg string
	}{
		{"unsupported hash", func(opts *options.Options) { opts.HashType = "crc32" }, "unsupported hash type"},
		{"unknown mode", func(opts *options.Options) { opts.Mode = "fleet" }, "unknown execution mode"},
		{"zero workers", func(opts *options.Options) { opts.Workers = 0 }, "workers must be at least 1"},
		{
			"cluster needs lock table",
			func(opts *options.Options) { opts.Mode = executor.KindCluster },
			"requires a lock table",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			opts := options.NewOptions()
			testCase.mutate(opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), testCase.errMsg)
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	t.Parallel()

	opts := options.NewOptions()

	require.NoError(t, opts.SetLogLevel("debug"))
	assert.Equal(t, "debug", opts.LogLevel)

	require.Error(t, opts.SetLogLevel("loud"))
}
