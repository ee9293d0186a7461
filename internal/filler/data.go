package filler

import (
	"fmt"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Data keys with a meaning inside relation items.
const (
	PivotKey   = "pivot"
	ThroughKey = "through"
)

// asObject reads the value of a to-one relation slot.
func asObject(parent *types.EntityType, rel *types.Relation, data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case []any, []map[string]any:
		return nil, mappingErr(parent, rel, "expected an object, got a list")
	default:
		return nil, mappingErr(parent, rel, fmt.Sprintf("expected an object, got %T", data))
	}
}

// asList reads the value of a to-many relation slot. nil items are skipped.
func asList(parent *types.EntityType, rel *types.Relation, data any) ([]map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			switch obj := item.(type) {
			case nil:
			case map[string]any:
				out = append(out, obj)
			default:
				return nil, mappingErr(parent, rel, fmt.Sprintf("item %d: expected an object, got %T", i, item))
			}
		}
		return out, nil
	case map[string]any:
		return nil, mappingErr(parent, rel, "expected a list of objects, got an object")
	default:
		return nil, mappingErr(parent, rel, fmt.Sprintf("expected a list of objects, got %T", data))
	}
}

func mappingErr(parent *types.EntityType, rel *types.Relation, reason string) error {
	return relationErr(parent, rel, types.ErrMapping, reason)
}

func relationErr(parent *types.EntityType, rel *types.Relation, err error, reason string) error {
	return &types.RelationError{
		Type:     parent.Name,
		Relation: rel.Name,
		Kind:     rel.Kind,
		Reason:   reason,
		Err:      err,
	}
}

// containsIdentity reports whether any of es denotes the same record as e.
func containsIdentity(es []*types.Entity, e *types.Entity) bool {
	for _, x := range es {
		if x.Is(e) {
			return true
		}
	}
	return false
}
