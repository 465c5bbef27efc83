package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/ir"
)

// Contract is a compiled JSON Schema for one item shape.
type Contract struct {
	name   string
	schema *gojsonschema.Schema
	doc    map[string]any
}

// NewContract compiles the item shape of fs. prefix selects the item fields
// of a collection field set ("bands."); pass "" for an item field set.
func NewContract(name string, fs *FieldSet, prefix string) (*Contract, error) {
	doc := objectSchema()
	for _, key := range fs.Keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rel := strings.TrimPrefix(key, prefix)
		if rel == "" {
			continue
		}
		insert(doc, strings.Split(rel, "."), fs.Types[key])
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema: compiling %s contract: %w", name, err)
	}
	return &Contract{name: name, schema: schema, doc: doc}, nil
}

// Document returns the JSON Schema document the contract was compiled from.
func (c *Contract) Document() map[string]any {
	return c.doc
}

// Validate checks one item against the contract.
func (c *Contract) Validate(item ir.Value) error {
	raw, err := ir.MarshalValue(item)
	if err != nil {
		return apierr.ServerError("Unable to encode %s for contract validation: %v", c.name, err)
	}
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema: validating %s: %w", c.name, err)
	}
	if result.Valid() {
		return nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return apierr.ServerError("Response %s does not satisfy its contract: %s", c.name, strings.Join(violations, "; "))
}

func objectSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

// insert places parts into the nested object schema, creating container
// schemas on the way down.
func insert(obj map[string]any, parts []string, typ string) {
	props := obj["properties"].(map[string]any)
	name := parts[0]
	if len(parts) == 1 {
		if _, ok := props[name]; !ok {
			props[name] = primitive(typ)
		}
		return
	}
	child, ok := props[name].(map[string]any)
	if !ok {
		child = primitive(TypeObject)
		props[name] = child
	}
	if items, ok := child["items"].(map[string]any); ok {
		child = items
	}
	insert(child, parts[1:], typ)
}

func primitive(typ string) map[string]any {
	switch typ {
	case TypeInteger:
		return map[string]any{"type": []any{"integer", "null"}}
	case TypeNumber:
		return map[string]any{"type": []any{"number", "null"}}
	case TypeDate:
		return map[string]any{"type": []any{"string", "null"}, "format": "date"}
	case TypeDateTime:
		return map[string]any{"type": []any{"string", "null"}, "format": "date-time"}
	case TypeArray:
		return map[string]any{"type": "array", "items": objectSchema()}
	case TypeObject:
		return objectSchema()
	default:
		return map[string]any{"type": []any{"string", "null"}}
	}
}
