/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// BytesCount is a size in bytes for configuration structures.
// It's decoded from a plain number or a human-readable string ("64M", "1Gi").
type BytesCount uint64

// UnmarshalText implements encoding.TextUnmarshaler (used by mapstructure.TextUnmarshallerHookFunc).
func (b *BytesCount) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if num, ok, err := parseNonNegativeInt(s); ok {
		*b = BytesCount(num)
		return err
	}
	// k8s power-of-two suffixes ("Mi") are the same as bytefmt ones ("M").
	v := s
	for _, suffix := range [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"} {
		if strings.HasSuffix(v, suffix) {
			v = strings.TrimSuffix(v, "i")
			break
		}
	}
	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return fmt.Errorf("invalid byte size format (%s): %w", s, err)
	}
	*b = BytesCount(num)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BytesCount) UnmarshalJSON(data []byte) error {
	return b.UnmarshalText(unquoteJSON(data))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BytesCount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid byte size format: scalar expected at line %d", value.Line)
	}
	return b.UnmarshalText([]byte(value.Value))
}

// String returns the human-readable form, e.g. "10M".
func (b BytesCount) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// MarshalJSON implements json.Marshaler.
func (b BytesCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalYAML implements yaml.Marshaler.
func (b BytesCount) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// MarshalText implements encoding.TextMarshaler.
func (b BytesCount) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// TimeDuration is a duration for configuration structures.
// It's decoded from a number of nanoseconds or a string accepted by time.ParseDuration ("30s", "1h30m").
type TimeDuration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler (used by mapstructure.TextUnmarshallerHookFunc).
func (d *TimeDuration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if num, ok, err := parseNonNegativeInt(s); ok {
		*d = TimeDuration(num)
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid time duration format (%s): %w", s, err)
	}
	*d = TimeDuration(dur)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText(unquoteJSON(data))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid time duration format: scalar expected at line %d", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalYAML implements yaml.Marshaler.
func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalText implements encoding.TextMarshaler.
func (d TimeDuration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// parseNonNegativeInt reports ok=true if s is an integer at all, so the caller doesn't try other formats.
func parseNonNegativeInt(s string) (num int64, ok bool, err error) {
	num, parseErr := strconv.ParseInt(s, 10, 64)
	if parseErr != nil {
		return 0, false, nil
	}
	if num < 0 {
		return 0, true, fmt.Errorf("negative value is not allowed: %d", num)
	}
	return num, true, nil
}

func unquoteJSON(data []byte) []byte {
	if s, err := strconv.Unquote(string(data)); err == nil {
		return []byte(s)
	}
	return data
}
