package gatekeeper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Compiler turns raw policy documents into validated policies.
//
// A document is a YAML sequence. Each item is either a bare check key or a
// single-key mapping from check key to a scalar configuration value:
//
//	- block_bots
//	- minimum_creation_time: 86400
//	- username_regex: "discord\\.gg"
//
// Only the document shape and the check vocabulary are validated here.
// Check specific configuration is validated by the check at evaluation time.
type Compiler struct {
	registry *Registry
}

// NewCompiler creates a compiler validating against the given registry.
func NewCompiler(registry *Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Compile parses and validates a document into a Policy for the guild.
func (c *Compiler) Compile(guildID string, raw []byte) (*Policy, error) {
	root, err := decodeSingleDocument(raw)
	if err != nil {
		return nil, err
	}

	if root == nil {
		return newPolicy(guildID, []PolicyEntry{}, raw), nil
	}

	if root.Kind != yaml.SequenceNode {
		return nil, newMalformedError(root.Line, "document must be a list of checks, got %s", nodeKindName(root))
	}

	entries := make([]PolicyEntry, 0, len(root.Content))
	for _, item := range root.Content {
		entry, err := parseEntry(item)
		if err != nil {
			return nil, err
		}

		if !c.registry.Has(entry.CheckKey) {
			return nil, newUnknownCheckError(entry.CheckKey, item.Line)
		}

		entries = append(entries, entry)
	}

	return newPolicy(guildID, entries, raw), nil
}

// Validate reports whether the document would compile.
func (c *Compiler) Validate(raw []byte) error {
	_, err := c.Compile("", raw)
	return err
}

// decodeSingleDocument returns the root content node or nil for an empty document.
func decodeSingleDocument(raw []byte) (*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, newMalformedError(0, "invalid YAML: %v", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, newMalformedError(extra.Line, "document must contain a single YAML document")
	}

	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, nil
		}
		root := doc.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			return nil, nil
		}
		return root, nil
	}

	if doc.Kind == 0 {
		return nil, nil
	}
	return &doc, nil
}

func parseEntry(item *yaml.Node) (PolicyEntry, error) {
	switch item.Kind {
	case yaml.ScalarNode:
		key := strings.TrimSpace(item.Value)
		if key == "" || item.Tag == "!!null" {
			return PolicyEntry{}, newMalformedError(item.Line, "check key must not be empty")
		}
		return PolicyEntry{CheckKey: key}, nil

	case yaml.MappingNode:
		if len(item.Content) != 2 {
			return PolicyEntry{}, newMalformedError(item.Line, "each entry must name exactly one check, got %d", len(item.Content)/2)
		}

		keyNode, valueNode := item.Content[0], item.Content[1]
		if keyNode.Kind != yaml.ScalarNode {
			return PolicyEntry{}, newMalformedError(keyNode.Line, "check key must be a string")
		}

		key := strings.TrimSpace(keyNode.Value)
		if key == "" {
			return PolicyEntry{}, newMalformedError(keyNode.Line, "check key must not be empty")
		}

		if valueNode.Kind != yaml.ScalarNode {
			return PolicyEntry{}, newMalformedError(valueNode.Line, "configuration for %q must be a single value, got %s", key, nodeKindName(valueNode))
		}

		config := valueNode.Value
		if valueNode.Tag == "!!null" {
			config = ""
		}
		return PolicyEntry{CheckKey: key, RawConfig: config}, nil

	default:
		return PolicyEntry{}, newMalformedError(item.Line, "entry must be a check key or a mapping, got %s", nodeKindName(item))
	}
}

func nodeKindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "nothing"
	}
}

// Render returns the canonical document for a policy. Compiling the
// rendered document yields the same entries.
func Render(policy *Policy) ([]byte, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

	for _, entry := range policy.entries {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry.CheckKey}
		if entry.RawConfig == "" {
			seq.Content = append(seq.Content, key)
			continue
		}

		value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry.RawConfig}
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: []*yaml.Node{key, value},
		})
	}

	if len(seq.Content) == 0 {
		seq.Style = yaml.FlowStyle
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return nil, fmt.Errorf("failed to render policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render policy: %w", err)
	}

	return buf.Bytes(), nil
}
