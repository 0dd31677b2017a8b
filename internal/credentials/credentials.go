// Package credentials reads and validates the durable per-marketplace
// credential files written by the out-of-band bootstrap tooling.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/promozone/afflink/pkg/market"
)

// Store reads one marketplace's credential file. The converter owning
// the store decides when to (re)load; the store itself keeps no cache,
// so a bundle regenerated out-of-band is picked up on the next Load.
type Store struct {
	path string
}

// NewStore returns a store for the given credential file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the credential file location.
func (s *Store) Path() string { return s.path }

// Load parses the credential file into a bundle. A missing file is
// reported as market.ErrCredentialsMissing; whether that is fatal is
// the converter's call.
func (s *Store) Load() (*market.CredentialBundle, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: credential file not found: %s", market.ErrCredentialsMissing, s.path)
		}
		return nil, fmt.Errorf("reading credential file %s: %w", s.path, err)
	}

	var bundle market.CredentialBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing credential file %s: %w", s.path, err)
	}

	if info, err := os.Stat(s.path); err == nil {
		bundle.IssuedAt = info.ModTime()
	}

	return &bundle, nil
}

// Age returns how long ago the credential file was written.
func (s *Store) Age() (time.Duration, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", market.ErrCredentialsMissing, s.path)
		}
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

// Valid reports whether the bundle is unexpired: the optional top-level
// expires_at (ISO-8601) is checked first, then each cookie's expires
// field (Unix seconds). Cookies without expiry information pass.
func Valid(bundle *market.CredentialBundle, now time.Time) bool {
	if bundle == nil {
		return false
	}

	if bundle.ExpiresAt != "" {
		if expiresAt, err := parseISOTime(bundle.ExpiresAt); err == nil && !now.Before(expiresAt) {
			return false
		}
	}

	for _, c := range bundle.Cookies {
		if c.Expires > 0 && !now.Before(time.Unix(int64(c.Expires), 0)) {
			return false
		}
	}

	return true
}

// parseISOTime accepts RFC 3339 and the naive ISO-8601 form (no zone)
// the bootstrap scripts write; naive timestamps are treated as UTC.
func parseISOTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", strings.SplitN(value, ".", 2)[0], time.UTC)
}
