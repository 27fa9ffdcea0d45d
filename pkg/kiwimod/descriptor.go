// SPDX-License-Identifier: MPL-2.0

package kiwimod

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxContentSize is the largest module content kiwi downloads or stores (20 MB).
const MaxContentSize = 20 << 20

type (
	// Descriptor is the metadata of a module together with its content.
	// Registry catalogs carry descriptors without Content; the local store
	// always returns them with Content populated.
	Descriptor struct {
		// Name is the module identifier.
		Name Name `json:"name" yaml:"name" toml:"name"`
		// Description is a human-readable summary (may be empty).
		Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		// Dependencies lists required modules in declaration order.
		Dependencies []Name `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
		// Digest is the hex-encoded SHA256 of Content, empty when unknown.
		Digest string `json:"digest,omitempty" yaml:"digest,omitempty" toml:"digest,omitempty"`
		// Content is the executable payload, stored and fetched as a unit.
		Content []byte `json:"-" yaml:"-" toml:"-"`
	}

	// Catalog is an ordered snapshot of the modules a registry advertises.
	Catalog struct {
		modules []Descriptor
		index   map[Name]int
	}
)

// Validate checks the descriptor's name and dependency list. A module listing
// itself as a dependency is deliberately not rejected here: the resolver
// reports it as a dependency cycle.
func (d Descriptor) Validate() error {
	if err := d.Name.Validate(); err != nil {
		return err
	}
	seen := make(map[Name]bool, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("%s: dependencies[%d]: %w", d.Name, i, err)
		}
		if seen[dep] {
			return fmt.Errorf("%s: dependencies[%d]: duplicate dependency %q", d.Name, i, dep)
		}
		seen[dep] = true
	}
	return nil
}

// WithContent returns a copy of d carrying content and its digest.
func (d Descriptor) WithContent(content []byte) Descriptor {
	d.Content = content
	d.Digest = Digest(content)
	d.Dependencies = append([]Name(nil), d.Dependencies...)
	return d
}

// Digest returns the lowercase hex SHA256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SameDigest compares two hex digests case-insensitively. Empty digests never match.
func SameDigest(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// NewCatalog builds a catalog preserving the given order. When a name appears
// more than once, the first descriptor wins.
func NewCatalog(modules ...Descriptor) *Catalog {
	c := &Catalog{index: make(map[Name]int, len(modules))}
	for _, m := range modules {
		if _, dup := c.index[m.Name]; dup {
			continue
		}
		c.index[m.Name] = len(c.modules)
		c.modules = append(c.modules, m)
	}
	return c
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(name Name) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return c.modules[i], true
}

// Has reports whether the catalog advertises name.
func (c *Catalog) Has(name Name) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns module names in catalog order.
func (c *Catalog) Names() []Name {
	if c == nil {
		return nil
	}
	out := make([]Name, 0, len(c.modules))
	for _, m := range c.modules {
		out = append(out, m.Name)
	}
	return out
}

// Modules returns a copy of the catalog entries in order.
func (c *Catalog) Modules() []Descriptor {
	if c == nil {
		return nil
	}
	return append([]Descriptor(nil), c.modules...)
}

// Len returns the number of modules in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.modules)
}
