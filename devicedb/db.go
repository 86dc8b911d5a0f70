// Package devicedb loads devices from the shared beamline device
// database: a JSON document of device definitions searched by beamline
// and instantiated through a class factory registry.
package devicedb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tangkong/hutch-python/errors"
)

// Entry is one device definition in the database
type Entry struct {
	Name        string         `json:"name"`
	DeviceClass string         `json:"device_class"`
	Prefix      string         `json:"prefix"`
	Beamline    string         `json:"beamline"`
	Active      bool           `json:"active"`
	LoadLevel   string         `json:"load_level,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// databaseSchema validates the overall shape of the database document
// before any entry is interpreted.
const databaseSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "device_class", "beamline"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"device_class": {"type": "string", "minLength": 1},
			"prefix": {"type": "string"},
			"beamline": {"type": "string", "minLength": 1},
			"active": {"type": "boolean"},
			"load_level": {"type": "string", "enum": ["minimal", "standard", "all"]},
			"metadata": {"type": "object"}
		},
		"additionalProperties": false
	}
}`

// Client provides read access to a loaded device database
type Client struct {
	path    string
	entries []Entry
}

// Open reads, validates and parses a device database file
func Open(path string) (*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "devicedb", "Open", "read database file")
	}

	schemaLoader := gojsonschema.NewStringLoader(databaseSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidDatabase, err),
			"devicedb", "Open", "validate database document")
	}
	if !result.Valid() {
		msg := fmt.Sprintf("%v: database document failed schema validation:", errors.ErrInvalidDatabase)
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf("\n  - %s: %s", desc.Field(), desc.Description())
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("%s", msg), "devicedb", "Open", "validate database document")
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidDatabase, err),
			"devicedb", "Open", "parse database document")
	}

	return &Client{path: path, entries: entries}, nil
}

// Path returns the database file path
func (c *Client) Path() string { return c.path }

// Len returns the number of entries in the database
func (c *Client) Len() int { return len(c.entries) }

// SearchOptions filters database entries
type SearchOptions struct {
	// Beamlines to match (case-sensitive, conventionally upper-case).
	// Empty means all beamlines.
	Beamlines []string
	// ActiveOnly keeps only active entries
	ActiveOnly bool
}

// Search returns matching entries sorted by name
func (c *Client) Search(opts SearchOptions) []Entry {
	want := make(map[string]struct{}, len(opts.Beamlines))
	for _, b := range opts.Beamlines {
		want[b] = struct{}{}
	}

	var out []Entry
	for _, e := range c.entries {
		if opts.ActiveOnly && !e.Active {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[e.Beamline]; !ok {
				continue
			}
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Beamlines returns all beamline names present in the database, sorted
func (c *Client) Beamlines() []string {
	seen := make(map[string]struct{})
	for _, e := range c.entries {
		seen[e.Beamline] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
