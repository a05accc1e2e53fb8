package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	apperrors "leasegate/internal/errors"
)

// Roster maps a holder name to its configured lease validity.
type Roster map[string]time.Duration

// RosterLoader produces the static holder roster at startup. The lease
// table depends on this type, never on the filesystem directly.
type RosterLoader func() (Roster, error)

// rosterFile is the on-disk roster document. The payload shape matches
// the historic licenses file consumed by earlier deployments.
type rosterFile struct {
	Payload []rosterEntry `yaml:"payload"`
}

type rosterEntry struct {
	Name           string `yaml:"name"`
	ValidationTime int64  `yaml:"validation_time"`
}

// FileRosterLoader returns a RosterLoader reading a YAML roster file.
func FileRosterLoader(path string) RosterLoader {
	return func() (Roster, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewConfigError("failed to read roster file", err).
				WithContext("path", path)
		}
		return ParseRoster(data)
	}
}

// ParseRoster decodes a roster document. Duplicate holder names and
// non-positive validity durations are rejected: a roster entry that can
// never issue a valid lease is a deployment mistake, not a runtime case.
func ParseRoster(data []byte) (Roster, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewParsingError("failed to parse roster file", err)
	}
	if len(doc.Payload) == 0 {
		return nil, apperrors.NewConfigError("roster contains no holders", nil)
	}

	roster := make(Roster, len(doc.Payload))
	for _, entry := range doc.Payload {
		if entry.Name == "" {
			return nil, apperrors.NewValidationError("roster entry with empty holder name")
		}
		if entry.ValidationTime <= 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("roster entry %q has non-positive validation time %d", entry.Name, entry.ValidationTime))
		}
		if _, dup := roster[entry.Name]; dup {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("duplicate roster entry %q", entry.Name))
		}
		roster[entry.Name] = time.Duration(entry.ValidationTime) * time.Second
	}
	return roster, nil
}

// StaticRosterLoader returns a RosterLoader serving a fixed roster.
// Used in tests and embedded deployments.
func StaticRosterLoader(roster Roster) RosterLoader {
	return func() (Roster, error) {
		if len(roster) == 0 {
			return nil, apperrors.NewConfigError("roster contains no holders", nil)
		}
		out := make(Roster, len(roster))
		for name, validity := range roster {
			out[name] = validity
		}
		return out, nil
	}
}
