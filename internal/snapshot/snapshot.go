// Package snapshot persists fetched post collections keyed by time range.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"
)

// ErrCorrupt marks a persisted entry that fails structural validation.
var ErrCorrupt = errors.New("snapshot: corrupt entry")

// Store looks up and stores collections by range key. Lookup never fails:
// unreadable or invalid entries are reported as a miss.
type Store interface {
	Lookup(ctx context.Context, r timerange.Range) (model.PostCollection, bool)
	Save(ctx context.Context, r timerange.Range, c model.PostCollection) error
}

// Encode serializes a collection in the persisted entry format.
func Encode(c model.PostCollection) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Decode validates and deserializes a persisted entry. The "tweets" container
// must be present and non-empty, and every post, primary or included, must
// carry a non-empty id and text.
func Decode(b []byte) (model.PostCollection, error) {
	var raw struct {
		Tweets   []map[string]json.RawMessage `json:"tweets"`
		Includes *struct {
			Tweets []map[string]json.RawMessage `json:"tweets"`
		} `json:"includes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.PostCollection{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw.Tweets) == 0 {
		return model.PostCollection{}, fmt.Errorf("%w: missing or empty tweets", ErrCorrupt)
	}
	if err := validatePosts(raw.Tweets); err != nil {
		return model.PostCollection{}, err
	}
	if raw.Includes != nil {
		if err := validatePosts(raw.Includes.Tweets); err != nil {
			return model.PostCollection{}, err
		}
	}
	var c model.PostCollection
	if err := json.Unmarshal(b, &c); err != nil {
		return model.PostCollection{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}

func validatePosts(posts []map[string]json.RawMessage) error {
	for i, p := range posts {
		if p == nil {
			return fmt.Errorf("%w: post %d is not an object", ErrCorrupt, i)
		}
		for _, field := range []string{"id", "text"} {
			var s string
			v, ok := p[field]
			if !ok || json.Unmarshal(v, &s) != nil || strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: post %d has no %s", ErrCorrupt, i, field)
			}
		}
	}
	return nil
}
