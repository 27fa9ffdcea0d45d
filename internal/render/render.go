// SPDX-License-Identifier: MPL-2.0

// Package render writes command results in the format chosen with --format.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported formats in the order shown in help text.
func Formats() []Format { return []Format{Text, JSON, YAML, TOML} }

// ParseFormat parses a --format value. The empty string means Text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Text, nil
	case Text, JSON, YAML, TOML:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (want text, json, yaml or toml)", ErrUnknownFormat, s)
	}
}

// Write encodes v to w. For Text, text is called instead; structured
// formats ignore it.
func Write(w io.Writer, f Format, v any, text func(io.Writer) error) error {
	switch f {
	case Text, "":
		if text == nil {
			return fmt.Errorf("%w: no text rendering", ErrUnknownFormat)
		}
		return text(w)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(v)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}
