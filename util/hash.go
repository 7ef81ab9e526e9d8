package util

import (
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

// HashAlgorithm names a digest registries publish for artifacts.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	SHA1   HashAlgorithm = "sha1"
)

// FileDigest returns the hex encoded digest of the file.
func FileDigest(path string, algorithm HashAlgorithm) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.New(err)
	}
	defer file.Close() //nolint:errcheck

	var hasher hash.Hash

	switch algorithm {
	case SHA1:
		hasher = sha1.New() //nolint:gosec
	default:
		hasher = sha256.New()
	}

	if _, err := io.Copy(hasher, file); err != nil {
		return "", errors.New(err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DirDigests returns the digests of the regular files directly inside dir, keyed by file name.
// A missing directory yields an empty map.
func DirDigests(dir string, algorithm HashAlgorithm) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, errors.New(err)
	}

	digests := make(map[string]string, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		digest, err := FileDigest(filepath.Join(dir, entry.Name()), algorithm)
		if err != nil {
			return nil, err
		}

		digests[entry.Name()] = digest
	}

	return digests, nil
}
