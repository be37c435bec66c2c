package extractor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeclaredSchema is a parsed declared schema file: named root entries in
// document order.
//
//	.common: &common        # keys starting with "." are skipped
//	  filter_key: event
//	Event:
//	  model_name: eventol.Event
//	  filter_key: id
//	  parent:
//	    model_name: eventol.EventTag
//	    filter_key: events
//	  dependencies:
//	    dates:
//	      <<: *common
//	      model_name: eventol.EventDate
type DeclaredSchema struct {
	Entries []DeclaredEntry
}

// DeclaredEntry is one named node.
type DeclaredEntry struct {
	Name string
	Node *DeclaredNode
}

// DeclaredNode names a model and the attribute compared with the root key.
// An empty FilterKey selects every record of the model.
type DeclaredNode struct {
	ModelName    string
	FilterKey    string
	Parent       *DeclaredNode
	Dependencies []DeclaredEntry
}

type declaredNodeYAML struct {
	ModelName    string        `yaml:"model_name"`
	FilterKey    string        `yaml:"filter_key"`
	Parent       *DeclaredNode `yaml:"parent"`
	Dependencies yaml.Node     `yaml:"dependencies"`
}

// UnmarshalYAML keeps dependencies in document order.
func (n *DeclaredNode) UnmarshalYAML(value *yaml.Node) error {
	var raw declaredNodeYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.ModelName) == "" {
		return fmt.Errorf("line %d: model_name is required", value.Line)
	}

	deps, err := decodeEntries(&raw.Dependencies)
	if err != nil {
		return err
	}
	*n = DeclaredNode{
		ModelName:    strings.TrimSpace(raw.ModelName),
		FilterKey:    strings.TrimSpace(raw.FilterKey),
		Parent:       raw.Parent,
		Dependencies: deps,
	}
	return nil
}

// decodeEntries decodes a mapping of name -> node, skipping hidden keys.
func decodeEntries(node *yaml.Node) ([]DeclaredEntry, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of named entries", node.Line)
	}

	var entries []DeclaredEntry
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if strings.HasPrefix(name, ".") || name == "<<" {
			continue
		}
		var n DeclaredNode
		if err := node.Content[i+1].Decode(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		entries = append(entries, DeclaredEntry{Name: name, Node: &n})
	}
	return entries, nil
}

// ParseDeclaredSchema parses a declared schema document.
func ParseDeclaredSchema(data []byte) (*DeclaredSchema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("schema is empty")
	}

	entries, err := decodeEntries(doc.Content[0])
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("schema declares no entries")
	}
	return &DeclaredSchema{Entries: entries}, nil
}

// LoadDeclaredSchema reads and parses a declared schema file.
func LoadDeclaredSchema(path string) (*DeclaredSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := ParseDeclaredSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Nodes returns every node of the schema, depth first.
func (s *DeclaredSchema) Nodes() []*DeclaredNode {
	var out []*DeclaredNode
	var walk func(n *DeclaredNode)
	walk = func(n *DeclaredNode) {
		out = append(out, n)
		if n.Parent != nil {
			walk(n.Parent)
		}
		for _, d := range n.Dependencies {
			walk(d.Node)
		}
	}
	for _, e := range s.Entries {
		walk(e.Node)
	}
	return out
}
