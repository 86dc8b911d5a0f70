// Package objconf implements the object-configuration override pipeline:
// loading an ordered directive document, resolving which directive blocks
// apply to a runtime object, and applying them to the object's
// tab-completion visibility and kind classification metadata.
package objconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tangkong/hutch-python/errors"
)

// Directive block keys recognized in the obj_config document
const (
	keyWhitelist = "tab_whitelist"
	keyBlacklist = "tab_blacklist"
	keyReplace   = "replace_tablist"
	keyKind      = "kind"
)

// KindEntry maps one attribute name to a kind classification name. The
// kind name is validated at apply time so a bad value in one entry cannot
// fail the whole load.
type KindEntry struct {
	Attr string
	Kind string
}

// Directive is one override block keyed by a device name or a device
// class name. Field order within the source document is preserved across
// the whole directive sequence.
type Directive struct {
	// Matcher is compared against object names first, then class names.
	Matcher string

	Whitelist []string
	Blacklist []string
	// Replace is nil when the block has no replace_tablist key. A non-nil
	// empty slice resets the visibility set to empty.
	Replace []string
	Kinds   []KindEntry
}

// HasReplace reports whether the block carries a replace_tablist key
func (d Directive) HasReplace() bool { return d.Replace != nil }

// Load reads and parses an obj_config document from a file
func Load(path string) ([]Directive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "objconf", "Load", "read obj_config file")
	}
	return Parse(data)
}

// Parse parses an obj_config document into an ordered directive sequence.
// The document must be a mapping from matcher to directive block;
// anything else, including unrecognized directive keys, fails with
// ErrConfigFormat before any object is mutated. Parsing is pure: no
// side effects on any runtime object.
//
// Decoding goes through yaml.Node rather than a map so that block order,
// which is significant, survives the round trip. Duplicate matchers are
// kept as distinct blocks in file order.
func Parse(data []byte) ([]Directive, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfigFormat, err),
			"objconf", "Parse", "parse yaml document")
	}

	// Empty document: nothing to configure
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: top level must be a mapping of matcher to directive block, got %s",
				errors.ErrConfigFormat, nodeKindName(doc)),
			"objconf", "Parse", "validate document shape")
	}

	directives := make([]Directive, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		keyNode, valNode := doc.Content[i], doc.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: matcher at line %d is not a scalar",
					errors.ErrConfigFormat, keyNode.Line),
				"objconf", "Parse", "validate matcher")
		}

		directive, err := parseBlock(keyNode.Value, valNode)
		if err != nil {
			return nil, err
		}
		directives = append(directives, directive)
	}

	return directives, nil
}

func parseBlock(matcher string, node *yaml.Node) (Directive, error) {
	d := Directive{Matcher: matcher}

	if node.Kind != yaml.MappingNode {
		return d, errors.WrapFatal(
			fmt.Errorf("%w: directive block for %q must be a mapping, got %s",
				errors.ErrConfigFormat, matcher, nodeKindName(node)),
			"objconf", "Parse", "validate directive block")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		switch keyNode.Value {
		case keyWhitelist:
			attrs, err := parseStringList(matcher, keyWhitelist, valNode)
			if err != nil {
				return d, err
			}
			d.Whitelist = attrs
		case keyBlacklist:
			attrs, err := parseStringList(matcher, keyBlacklist, valNode)
			if err != nil {
				return d, err
			}
			d.Blacklist = attrs
		case keyReplace:
			attrs, err := parseStringList(matcher, keyReplace, valNode)
			if err != nil {
				return d, err
			}
			if attrs == nil {
				attrs = []string{}
			}
			d.Replace = attrs
		case keyKind:
			entries, err := parseKindMap(matcher, valNode)
			if err != nil {
				return d, err
			}
			d.Kinds = entries
		default:
			return d, errors.WrapFatal(
				fmt.Errorf("%w: unrecognized directive key %q in block %q (valid keys: %s, %s, %s, %s)",
					errors.ErrConfigFormat, keyNode.Value, matcher,
					keyWhitelist, keyBlacklist, keyReplace, keyKind),
				"objconf", "Parse", "validate directive keys")
		}
	}

	return d, nil
}

func parseStringList(matcher, key string, node *yaml.Node) ([]string, error) {
	// A null value (bare key) is treated as an empty list
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %s in block %q must be a list of strings",
				errors.ErrConfigFormat, key, matcher),
			"objconf", "Parse", "validate directive value")
	}

	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %s in block %q contains a non-string entry at line %d",
					errors.ErrConfigFormat, key, matcher, item.Line),
				"objconf", "Parse", "validate directive value")
		}
		out = append(out, item.Value)
	}
	return out, nil
}

func parseKindMap(matcher string, node *yaml.Node) ([]KindEntry, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: kind in block %q must be a mapping of attribute to kind name",
				errors.ErrConfigFormat, matcher),
			"objconf", "Parse", "validate kind map")
	}

	entries := make([]KindEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode || valNode.Kind != yaml.ScalarNode {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: kind entry in block %q at line %d must map a string to a string",
					errors.ErrConfigFormat, matcher, keyNode.Line),
				"objconf", "Parse", "validate kind map")
		}
		entries = append(entries, KindEntry{Attr: keyNode.Value, Kind: valNode.Value})
	}
	return entries, nil
}

func nodeKindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
