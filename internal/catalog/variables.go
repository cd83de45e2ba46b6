package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/cfstore/internal/integrity"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/registry"
	"github.com/roach88/cfstore/internal/store"
)

// VariableProps describes a variable by value. Properties holds both the
// identity properties and the proxied ones; they are split on the way in.
type VariableProps struct {
	Properties    map[string]any       `json:"properties"`
	CellMethods   []model.CellMethod   `json:"cell_methods,omitempty"`
	SpatialDomain *model.SpatialDomain `json:"spatial_domain,omitempty"`
	TimeDomain    *model.TimeDomain    `json:"time_domain,omitempty"`
	FileID        int64                `json:"file_id"`
	ManifestID    *int64               `json:"manifest_id,omitempty"`
}

// Label names the variable for diagnostics.
func (p VariableProps) Label() string {
	for _, k := range model.RequiredIdentityKeys {
		if v, ok := p.Properties[k]; ok {
			return fmt.Sprint(v)
		}
	}
	return "<unnamed>"
}

// GetOrCreateVariable returns the variable described by props, creating it
// and any shared sub-entities it needs. created reports whether the
// variable row is new.
func (c *Catalog) GetOrCreateVariable(ctx context.Context, props VariableProps) (model.Variable, bool, error) {
	var (
		v       model.Variable
		created bool
	)
	err := c.inTx(ctx, func(tx *store.Tx) error {
		candidate, err := c.resolveVariable(ctx, tx, props)
		if err != nil {
			return err
		}
		v, created, err = tx.GetOrCreateVariable(ctx, candidate)
		return err
	})
	if err != nil {
		return model.Variable{}, false, err
	}
	if created {
		c.metrics.Created("variable")
	}
	return v, created, nil
}

// CreateVariable is GetOrCreateVariable that refuses to return an existing
// variable: an identical attribute tuple is a duplicate.
func (c *Catalog) CreateVariable(ctx context.Context, props VariableProps) (model.Variable, error) {
	var v model.Variable
	err := c.inTx(ctx, func(tx *store.Tx) error {
		candidate, err := c.resolveVariable(ctx, tx, props)
		if err != nil {
			return err
		}
		existing, err := tx.FindVariable(ctx, candidate)
		if err == nil {
			return model.Duplicate("create variable", "variable", existing.UUID)
		}
		if !model.IsNotFound(err) {
			return err
		}
		v, err = tx.InsertVariable(ctx, candidate)
		return err
	})
	if err != nil {
		return model.Variable{}, err
	}
	c.metrics.Created("variable")
	return v, nil
}

// resolveVariable turns props into a variable row, getting or creating its
// property set, cell method set and domains.
func (c *Catalog) resolveVariable(ctx context.Context, tx *store.Tx, props VariableProps) (model.Variable, error) {
	const op = "resolve variable"

	identity, proxied := model.SplitProperties(props.Properties)
	if !model.HasRequiredIdentity(identity) {
		return model.Variable{}, model.Invariant(op,
			"variable in file %d has none of standard_name, long_name, identity", props.FileID)
	}

	if _, err := tx.GetFile(ctx, props.FileID); err != nil {
		return model.Variable{}, err
	}
	if props.ManifestID != nil {
		m, err := tx.GetManifest(ctx, *props.ManifestID)
		if err != nil {
			return model.Variable{}, err
		}
		if m.CFAFileID != props.FileID {
			return model.Variable{}, model.Invariant(op,
				"manifest %s belongs to file %d, not %d", m.UUID, m.CFAFileID, props.FileID)
		}
	}

	v := model.Variable{
		Proxied:      proxied,
		InFileID:     props.FileID,
		InManifestID: props.ManifestID,
	}

	ps, created, err := c.registry.GetOrCreatePropertySet(ctx, tx, registry.PropertiesFromMap(identity))
	if err != nil {
		return model.Variable{}, err
	}
	c.debugCreated(created, "property_set", ps.ID)
	v.PropertySetID = ps.ID

	if len(props.CellMethods) > 0 {
		cms, created, err := c.registry.GetOrCreateCellMethodSet(ctx, tx, props.CellMethods)
		if err != nil {
			return model.Variable{}, err
		}
		c.debugCreated(created, "cell_method_set", cms.ID)
		v.CellMethodSetID = model.Int64Ptr(cms.ID)
	}

	if props.SpatialDomain != nil {
		sd, created, err := tx.GetOrCreateSpatialDomain(ctx, *props.SpatialDomain)
		if err != nil {
			return model.Variable{}, err
		}
		c.debugCreated(created, "spatial_domain", sd.ID)
		v.SpatialDomainID = model.Int64Ptr(sd.ID)
	}

	if props.TimeDomain != nil {
		td, created, err := tx.GetOrCreateTimeDomain(ctx, *props.TimeDomain)
		if err != nil {
			return model.Variable{}, err
		}
		c.debugCreated(created, "time_domain", td.ID)
		v.TimeDomainID = model.Int64Ptr(td.ID)
	}
	return v, nil
}

func (c *Catalog) debugCreated(created bool, entity string, id int64) {
	if created {
		c.log.Debug("shared entity created", "entity", entity, "id", id)
	}
}

// GetVariable returns a variable by id.
func (c *Catalog) GetVariable(ctx context.Context, id int64) (model.Variable, error) {
	var v model.Variable
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		v, err = tx.GetVariable(ctx, id)
		return err
	})
	return v, err
}

// VariableProperties returns the identity properties of a variable.
func (c *Catalog) VariableProperties(ctx context.Context, id int64) (model.PropertySet, error) {
	var ps model.PropertySet
	err := c.inTx(ctx, func(tx *store.Tx) error {
		v, err := tx.GetVariable(ctx, id)
		if err != nil {
			return err
		}
		ps, err = tx.GetPropertySet(ctx, v.PropertySetID)
		return err
	})
	return ps, err
}

// DeleteVariable deletes a variable and reclaims whatever only it
// referenced, up to and including its manifest and file.
func (c *Catalog) DeleteVariable(ctx context.Context, id int64) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.DeleteVariable(ctx, tx, id, integrity.TriggerSelf)
	})
}
