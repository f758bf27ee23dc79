package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrNotFound is returned by Open when the staged object does not exist.
var ErrNotFound = errors.New("staged object not found")

// ErrInvalidKey rejects keys that could escape the staging area.
var ErrInvalidKey = errors.New("invalid staged key")

// IsNoSuchKey reports whether err says the object does not exist (S3/MinIO: NoSuchKey/NotFound).
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch strings.ToLower(strings.TrimSpace(minioErr.Code)) {
		case "nosuchkey", "notfound":
			return true
		}
	}

	// Some gateways flatten the error into a string.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") ||
		strings.Contains(lower, "specified key does not exist")
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}
