package cache

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every key written by the tracker.
const KeyPrefix = "comet:cache"

// Key identifies a stored Entry.
type Key struct {
	ObjectID string
	Kind     Kind
}

// String generates the key string.
// Format: comet:cache:{objectId}:{kind}
//
// Example:
//
//	comet:cache:3i_atlas:current
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, k.ObjectID, k.Kind)
}

// ObjectPattern returns a glob matching every key of objectID.
func ObjectPattern(objectID string) string {
	return fmt.Sprintf("%s:%s:*", KeyPrefix, objectID)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, KeyPrefix+":")
	if !ok {
		return Key{}, fmt.Errorf("%w: key %q lacks prefix %q", ErrInvalidEntry, s, KeyPrefix)
	}

	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return Key{}, fmt.Errorf("%w: malformed key %q", ErrInvalidEntry, s)
	}

	k := Key{ObjectID: rest[:i], Kind: Kind(rest[i+1:])}
	if !k.Kind.Valid() {
		return Key{}, fmt.Errorf("%w: unknown kind in key %q", ErrInvalidEntry, s)
	}
	return k, nil
}
