package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mcpdock/internal/clients"
	"mcpdock/internal/session"
	"mcpdock/pkg/logging"
)

// Parameter describes one parameter of an invocable: the sanitized surface
// name, the original property name used on the wire, its JSON-Schema type
// and optionality. Optional parameters without a schema default use the
// absent sentinel, conveyed to the executor by omission from the outgoing
// arguments map.
type Parameter struct {
	Name         string
	OriginalName string
	Type         string
	Description  string
	Required     bool
	Default      interface{}
	HasDefault   bool
}

// Invocable is the per-tool runtime object registered on the aggregator.
// It holds no state beyond its session reference (captured in the
// executor) and its parameter metadata.
type Invocable struct {
	// FullName is the namespaced callable name, mcp_<prefix>_<tool>.
	FullName string
	// ShortName is the tool's original name on the child.
	ShortName string
	// Description is copied verbatim from the tool definition.
	Description string
	// Params is the parameter surface in property-name order.
	Params []Parameter

	execute func(ctx context.Context, kwargs map[string]interface{}) (string, error)
}

// Execute assembles the outgoing arguments map from caller-supplied
// kwargs (sanitized keys mapped back to originals, omitted keys dropped)
// and issues tools/call on the owning session, returning the textual
// content of the first result entry.
func (inv *Invocable) Execute(ctx context.Context, kwargs map[string]interface{}) (string, error) {
	return inv.execute(ctx, kwargs)
}

// Translate validates a discovered tool definition and builds its
// invocable. The handle identifies the owning mount; the session is
// resolved through the client manager at call time so an evicted mount
// fails cleanly rather than pinning a dead session.
func Translate(def session.ToolDefinition, prefix, handle string, manager *clients.Manager) (*Invocable, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("tool definition has no name")
	}
	if def.InputSchema == nil {
		return nil, fmt.Errorf("tool %s has no input schema", def.Name)
	}
	schemaType, ok := def.InputSchema["type"].(string)
	if !ok {
		return nil, fmt.Errorf("tool %s input schema has no type", def.Name)
	}
	if schemaType != "object" {
		return nil, fmt.Errorf("tool %s input schema type is %q, expected object", def.Name, schemaType)
	}

	params, err := buildParameters(def)
	if err != nil {
		return nil, err
	}

	inv := &Invocable{
		FullName:    "mcp_" + prefix + "_" + sanitizeName(def.Name),
		ShortName:   def.Name,
		Description: def.Description,
		Params:      params,
	}

	inv.execute = func(ctx context.Context, kwargs map[string]interface{}) (string, error) {
		args := make(map[string]interface{})
		for _, p := range inv.Params {
			v, supplied := kwargs[p.Name]
			if !supplied {
				continue
			}
			args[p.OriginalName] = v
		}

		sess, ok := manager.Get(handle)
		if !ok {
			return "", fmt.Errorf("no live session for mount %s", handle)
		}

		result, err := sess.CallTool(ctx, inv.ShortName, args)
		if err != nil {
			return "", err
		}
		return result.Text(), nil
	}

	return inv, nil
}

// buildParameters derives the parameter surface from the schema's
// properties and required list.
func buildParameters(def session.ToolDefinition) ([]Parameter, error) {
	properties, _ := def.InputSchema["properties"].(map[string]interface{})

	required := make(map[string]bool)
	if reqList, ok := def.InputSchema["required"].([]interface{}); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		sub, _ := properties[name].(map[string]interface{})

		p := Parameter{
			Name:         sanitizeName(name),
			OriginalName: name,
			Type:         propertyType(def.Name, name, sub),
			Required:     required[name],
		}
		if sub != nil {
			if desc, ok := sub["description"].(string); ok {
				p.Description = desc
			}
			if !p.Required {
				if dflt, ok := sub["default"]; ok {
					p.Default = dflt
					p.HasDefault = true
				}
			}
		}
		params = append(params, p)
	}
	return params, nil
}

// propertyType maps a property sub-schema onto the closed parameter type
// set. A two-element union with null yields the non-null member as an
// optional; any other union collapses to its first non-null member.
func propertyType(tool, property string, sub map[string]interface{}) string {
	if sub == nil {
		return "object"
	}

	switch t := sub["type"].(type) {
	case string:
		return normalizeType(t)
	case []interface{}:
		var members []string
		for _, m := range t {
			if name, ok := m.(string); ok {
				members = append(members, name)
			}
		}
		if len(members) == 2 {
			if members[0] == "null" {
				return normalizeType(members[1])
			}
			if members[1] == "null" {
				return normalizeType(members[0])
			}
		}
		for _, m := range members {
			if m != "null" {
				logging.Warn("Translate", "Tool %s property %s has union type %v, using %s",
					tool, property, members, m)
				return normalizeType(m)
			}
		}
		return "null"
	default:
		return "object"
	}
}

// normalizeType collapses unknown schema types to the untyped map.
func normalizeType(t string) string {
	switch t {
	case "string", "integer", "number", "boolean", "object", "array", "null":
		return t
	default:
		return "object"
	}
}

// sanitizeName replaces characters that are not valid in the registration
// surface with underscores. The original name is still used on the wire.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
