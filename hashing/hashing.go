// Package hashing implements the single network boundary of the migration engine:
// fetch the bytes at a URL and compute their content hash, honoring a timeout.
package hashing

import (
	"context"
	"crypto/md5"  //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/http"
	"time"

	"github.com/hashicorp/go-getter/v2"

	"github.com/condatools/recipebump/internal/errors"
)

// DefaultAlgorithm is the hash recorded in recipes unless the source declares another.
const DefaultAlgorithm = "sha256"

// DefaultTimeout bounds a single fetch-and-hash attempt.
const DefaultTimeout = 2 * time.Minute

// Algorithms lists the supported hash algorithms, keyed by the field name recipes use.
var Algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

// Supported returns true if the given algorithm name is a hash field we know how to compute.
func Supported(algorithm string) bool {
	_, ok := Algorithms[algorithm]
	return ok
}

// HashURL downloads the given URL and returns the hex digest of its contents under the
// given algorithm. The whole attempt, connection included, is bounded by the timeout.
// The digest is computed over the complete response body; a short read is an error, so a
// partially-computed value is never returned.
func HashURL(ctx context.Context, url, algorithm string, timeout time.Duration) (string, error) {
	newHash, ok := Algorithms[algorithm]
	if !ok {
		return "", UnsupportedAlgorithmError{Algorithm: algorithm}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.WithStackTrace(err)
	}

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return "", errors.WithStackTrace(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("%s returned from %s", resp.Status, url)
	}

	hasher := newHash()

	if written, err := getter.Copy(ctx, hasher, resp.Body); err != nil {
		return "", errors.WithStackTrace(err)
	} else if resp.ContentLength >= 0 && written != resp.ContentLength {
		return "", errors.Errorf("incomplete response: expected %d bytes, but got %d bytes", resp.ContentLength, written)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// UnsupportedAlgorithmError is returned for hash fields we cannot compute.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (err UnsupportedAlgorithmError) Error() string {
	return err.Algorithm + " is not a supported hash algorithm"
}
