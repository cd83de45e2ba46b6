package catalog

import (
	"context"

	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// CollectionProps describes a new collection.
type CollectionProps struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// CreateCollection creates a collection and applies its tags.
func (c *Catalog) CreateCollection(ctx context.Context, props CollectionProps) (model.Collection, error) {
	var coll model.Collection
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		coll, err = createCollection(ctx, tx, props)
		return err
	})
	if err != nil {
		return model.Collection{}, err
	}
	c.metrics.Created("collection")
	return coll, nil
}

func createCollection(ctx context.Context, tx *store.Tx, props CollectionProps) (model.Collection, error) {
	if props.Name == "" {
		return model.Collection{}, model.Invariant("create collection", "collection name is empty")
	}
	coll, err := tx.CreateCollection(ctx, model.Collection{
		Name:        props.Name,
		Description: props.Description,
		Properties:  props.Properties,
	})
	if err != nil {
		return model.Collection{}, err
	}
	for _, tag := range props.Tags {
		if err := tx.TagCollection(ctx, coll.ID, tag); err != nil {
			return model.Collection{}, err
		}
	}
	return tx.GetCollectionByID(ctx, coll.ID)
}

// GetCollection returns the named collection with its tags.
func (c *Catalog) GetCollection(ctx context.Context, name string) (model.Collection, error) {
	var coll model.Collection
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		coll, err = tx.GetCollection(ctx, name)
		return err
	})
	return coll, err
}

// ListCollections returns every collection name in order.
func (c *Catalog) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		names, err = tx.ListCollections(ctx)
		return err
	})
	return names, err
}

// TagCollection attaches a tag to the named collection.
func (c *Catalog) TagCollection(ctx context.Context, name, tag string) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		coll, err := tx.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		return tx.TagCollection(ctx, coll.ID, tag)
	})
}

// Relate records subject -predicate-> object between two collections.
func (c *Catalog) Relate(ctx context.Context, subject, predicate, object string) (model.Relationship, error) {
	var rel model.Relationship
	err := c.inTx(ctx, func(tx *store.Tx) error {
		s, err := tx.GetCollection(ctx, subject)
		if err != nil {
			return err
		}
		o, err := tx.GetCollection(ctx, object)
		if err != nil {
			return err
		}
		rel, err = tx.CreateRelationship(ctx, s.ID, predicate, o.ID)
		return err
	})
	return rel, err
}

// Relationships returns the relationships whose subject is the named
// collection.
func (c *Catalog) Relationships(ctx context.Context, subject string) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := c.inTx(ctx, func(tx *store.Tx) error {
		s, err := tx.GetCollection(ctx, subject)
		if err != nil {
			return err
		}
		rels, err = tx.Relationships(ctx, s.ID)
		return err
	})
	return rels, err
}

// AddToCollection makes a variable a member of the named collection.
// Returns false if it already was.
func (c *Catalog) AddToCollection(ctx context.Context, name string, variableID int64) (bool, error) {
	var added bool
	err := c.inTx(ctx, func(tx *store.Tx) error {
		coll, err := tx.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		if _, err := tx.GetVariable(ctx, variableID); err != nil {
			return err
		}
		added, err = tx.AddCollectionVariable(ctx, coll.ID, variableID)
		return err
	})
	return added, err
}

// CollectionVariables returns the member variables of the named collection.
func (c *Catalog) CollectionVariables(ctx context.Context, name string) ([]model.Variable, error) {
	var vars []model.Variable
	err := c.inTx(ctx, func(tx *store.Tx) error {
		coll, err := tx.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		ids, err := tx.CollectionVariableIDs(ctx, coll.ID)
		if err != nil {
			return err
		}
		vars = make([]model.Variable, 0, len(ids))
		for _, id := range ids {
			v, err := tx.GetVariable(ctx, id)
			if err != nil {
				return err
			}
			vars = append(vars, v)
		}
		return nil
	})
	return vars, err
}

// EmptyCollection removes every member of the collection. Members that
// belong to no other collection are deleted when force is set; without
// force their presence refuses the request.
func (c *Catalog) EmptyCollection(ctx context.Context, name string, force bool) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.EmptyCollection(ctx, tx, name, force)
	})
}

// DeleteCollection empties and deletes the collection; see EmptyCollection.
func (c *Catalog) DeleteCollection(ctx context.Context, name string, force bool) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.DeleteCollection(ctx, tx, name, force)
	})
}
