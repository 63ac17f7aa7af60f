package program

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

// Conventional top-level names, in lookup order.
var programKeys = []string{"approval_program", "router", "app"}

const clearProgramKey = "clear_program"

// Keys that never hold the approval program.
var metadataKeys = map[string]bool{
	"name":          true,
	"description":   true,
	"version":       true,
	"global_schema": true,
	"local_schema":  true,
	clearProgramKey: true,
}

// Document is a decoded program document.
type Document struct {
	Name         string
	GlobalSchema *models.StateSchema
	LocalSchema  *models.StateSchema

	keys   []string
	values map[string]*yaml.Node
}

// Parse decodes source as a YAML mapping. JSON documents are accepted too.
func Parse(source string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(source), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrSyntax)
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errorAt(top, "top level must be a mapping of names to programs")
	}

	doc := &Document{values: make(map[string]*yaml.Node, len(top.Content)/2)}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, errorAt(key, "top-level keys must be strings")
		}
		name := strings.TrimSpace(key.Value)
		if _, dup := doc.values[name]; dup {
			return nil, errorAt(key, "duplicate top-level key %q", name)
		}
		doc.keys = append(doc.keys, name)
		doc.values[name] = value
	}

	if n, ok := doc.values["name"]; ok && n.Kind == yaml.ScalarNode {
		doc.Name = n.Value
	}
	var err error
	if doc.GlobalSchema, err = decodeSchema(doc.values["global_schema"]); err != nil {
		return nil, err
	}
	if doc.LocalSchema, err = decodeSchema(doc.values["local_schema"]); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeSchema(n *yaml.Node) (*models.StateSchema, error) {
	if n == nil {
		return nil, nil
	}
	var s models.StateSchema
	if err := n.Decode(&s); err != nil {
		return nil, errorAt(n, "invalid schema: %v", err)
	}
	return &s, nil
}

// Approval returns the approval program. Conventional names win; otherwise
// the first top-level mapping or list that decodes as an expression is used.
func (d *Document) Approval() (*Expr, error) {
	for _, key := range programKeys {
		if n, ok := d.values[key]; ok {
			return Decode(n)
		}
	}
	for _, key := range d.keys {
		n := d.values[key]
		if metadataKeys[key] || n.Kind == yaml.ScalarNode {
			continue
		}
		if e, err := Decode(n); err == nil {
			return e, nil
		}
	}
	return nil, ErrNoProgram
}

// Clear returns the declared clear-state program, or false when absent.
func (d *Document) Clear() (*Expr, bool, error) {
	n, ok := d.values[clearProgramKey]
	if !ok {
		return nil, false, nil
	}
	e, err := Decode(n)
	if err != nil {
		return nil, true, err
	}
	return e, true, nil
}

// DefaultClear is the clear-state program used when a document has none.
func DefaultClear() *Expr {
	return &Expr{Op: "approve"}
}
