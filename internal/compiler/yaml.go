package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/ir"
)

// DecodeYAML converts a YAML node into authored Go data: mappings become
// ordered ir.Spec values so directive declaration order survives decoding.
func DecodeYAML(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeYAML(node.Content[0])
	case yaml.AliasNode:
		return DecodeYAML(node.Alias)
	case yaml.MappingNode:
		spec := make(ir.Spec, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			val, err := DecodeYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			spec = append(spec, ir.Entry{Name: key.Value, Raw: val})
		}
		return spec, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := DecodeYAML(child)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
}

// DecodeYAMLSpec decodes a YAML mapping into an ordered directive Spec.
func DecodeYAMLSpec(node *yaml.Node) (ir.Spec, error) {
	raw, err := DecodeYAML(node)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return ir.Spec{}, nil
	}
	spec, ok := raw.(ir.Spec)
	if !ok {
		return nil, fmt.Errorf("line %d: directives must be a mapping", node.Line)
	}
	return spec, nil
}
