package registry

import (
	"context"
	"fmt"

	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// Registry dedupes cell method sets and property sets.
type Registry struct {
	hasher *model.Hasher
}

// New creates a Registry keyed with the given hasher.
func New(h *model.Hasher) *Registry {
	return &Registry{hasher: h}
}

// Hasher returns the hasher used for keys.
func (r *Registry) Hasher() *model.Hasher {
	return r.hasher
}

// CellMethodSetKey computes the content key of a multiset of cell methods.
func (r *Registry) CellMethodSetKey(methods []model.CellMethod) string {
	members := make([]string, len(methods))
	for i, m := range methods {
		members[i] = m.Canonical()
	}
	return r.hasher.SetKey(model.DomainCellMethodSet, members)
}

// PropertySetKey computes the content key of a set of properties.
func (r *Registry) PropertySetKey(props []model.Property) (string, error) {
	members := make([]string, len(props))
	for i, p := range props {
		c, err := p.Canonical()
		if err != nil {
			return "", err
		}
		members[i] = c
	}
	return r.hasher.SetKey(model.DomainPropertySet, members), nil
}

// GetOrCreateCellMethodSet returns the set holding exactly methods,
// creating it (and its member rows) if it does not exist.
func (r *Registry) GetOrCreateCellMethodSet(ctx context.Context, tx *store.Tx, methods []model.CellMethod) (model.CellMethodSet, bool, error) {
	key := r.CellMethodSetKey(methods)

	id, err := tx.FindCellMethodSetID(ctx, key)
	if err == nil {
		set, err := tx.GetCellMethodSet(ctx, id)
		return set, false, err
	}
	if !model.IsNotFound(err) {
		return model.CellMethodSet{}, false, err
	}

	id, inserted, err := tx.InsertCellMethodSet(ctx, key)
	if err != nil {
		return model.CellMethodSet{}, false, err
	}
	if inserted {
		for pos, m := range sortedMethods(methods) {
			if err := tx.AddCellMethodSetMember(ctx, id, pos, m); err != nil {
				return model.CellMethodSet{}, false, err
			}
		}
	}
	set, err := tx.GetCellMethodSet(ctx, id)
	if err != nil {
		return model.CellMethodSet{}, false, err
	}
	return set, inserted, nil
}

// GetOrCreatePropertySet returns the set holding exactly props, creating
// it (and any missing property rows) if it does not exist.
func (r *Registry) GetOrCreatePropertySet(ctx context.Context, tx *store.Tx, props []model.Property) (model.PropertySet, bool, error) {
	key, err := r.PropertySetKey(props)
	if err != nil {
		return model.PropertySet{}, false, err
	}

	id, err := tx.FindPropertySetID(ctx, key)
	if err == nil {
		set, err := tx.GetPropertySet(ctx, id)
		return set, false, err
	}
	if !model.IsNotFound(err) {
		return model.PropertySet{}, false, err
	}

	id, inserted, err := tx.InsertPropertySet(ctx, key)
	if err != nil {
		return model.PropertySet{}, false, err
	}
	if inserted {
		for _, p := range props {
			value, err := model.MarshalCanonical(p.Value)
			if err != nil {
				return model.PropertySet{}, false, fmt.Errorf("property %q: %w", p.Key, err)
			}
			if err := tx.AddPropertySetMember(ctx, id, p.Key, string(value)); err != nil {
				return model.PropertySet{}, false, err
			}
		}
	}
	set, err := tx.GetPropertySet(ctx, id)
	if err != nil {
		return model.PropertySet{}, false, err
	}
	return set, inserted, nil
}
