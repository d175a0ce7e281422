package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectStore is the object-storage capability consumed by asset persistence
// and signed delivery. Upload returns the public URL of the object, or "" when
// the object is only reachable through Sign.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectKey derives the storage key for an asset id. Ids are used verbatim,
// so distinct ids never share a key; ids containing anything outside
// [A-Za-z0-9._-] or starting with a dot are rejected.
func ObjectKey(prefix, id string) (string, error) {
	if id == "" {
		return "", errors.New("storage: asset id is required")
	}
	if id[0] == '.' {
		return "", fmt.Errorf("storage: invalid asset id %q", id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return "", fmt.Errorf("storage: invalid asset id %q", id)
		}
	}
	return sanitizeKey(path.Join(strings.Trim(prefix, "/"), id))
}

// OwnsKey reports whether key is an already-normalized key below prefix.
// An empty prefix owns no keys.
func OwnsKey(prefix, key string) bool {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return false
	}
	clean, err := sanitizeKey(key)
	if err != nil || clean != key {
		return false
	}
	rest, ok := strings.CutPrefix(clean, prefix+"/")
	return ok && rest != ""
}
