package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cfstore/internal/model"
)

// CreateCollection inserts a collection.
// Returns a CodeDuplicate error if the name is taken.
func (t *Tx) CreateCollection(ctx context.Context, c model.Collection) (model.Collection, error) {
	props := c.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := model.MarshalCanonical(props)
	if err != nil {
		return model.Collection{}, fmt.Errorf("create collection %s: properties: %w", c.Name, err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO collections (name, description, properties) VALUES (?, ?, ?)`,
		c.Name, c.Description, string(propsJSON))
	if err != nil {
		return model.Collection{}, classify("create collection", "collection", c.Name, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Collection{}, classify("create collection", "collection", c.Name, err)
	}
	c.Properties = props
	return c, nil
}

// GetCollection retrieves a collection (with tags) by name.
func (t *Tx) GetCollection(ctx context.Context, name string) (model.Collection, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, name, description, properties FROM collections WHERE name = ?`, name)
	c, err := t.scanCollection(ctx, row)
	if err != nil {
		return model.Collection{}, classify("get collection", "collection", name, err)
	}
	return c, nil
}

// GetCollectionByID retrieves a collection (with tags) by id.
func (t *Tx) GetCollectionByID(ctx context.Context, id int64) (model.Collection, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, name, description, properties FROM collections WHERE id = ?`, id)
	c, err := t.scanCollection(ctx, row)
	if err != nil {
		return model.Collection{}, classify("get collection", "collection", id, err)
	}
	return c, nil
}

// ListCollections returns all collection names in order.
func (t *Tx) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, classify("list collections", "collection", "", err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, classify("list collections", "collection", "", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// DeleteCollectionRow removes the collection; memberships, tag links and
// relationships cascade.
func (t *Tx) DeleteCollectionRow(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return classify("delete collection", "collection", id, err)
	}
	return nil
}

// AddCollectionVariable makes the variable a member of the collection.
// Returns added=false if it already was.
func (t *Tx) AddCollectionVariable(ctx context.Context, collectionID, variableID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO collection_variables (collection_id, variable_id) VALUES (?, ?)
		ON CONFLICT(collection_id, variable_id) DO NOTHING
	`, collectionID, variableID)
	if err != nil {
		return false, classify("add collection variable", "collection", collectionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("add collection variable", "collection", collectionID, err)
	}
	return n > 0, nil
}

// RemoveCollectionVariable drops one membership.
func (t *Tx) RemoveCollectionVariable(ctx context.Context, collectionID, variableID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM collection_variables WHERE collection_id = ? AND variable_id = ?`, collectionID, variableID)
	if err != nil {
		return classify("remove collection variable", "collection", collectionID, err)
	}
	return nil
}

// CollectionVariableIDs returns the member variable ids in order.
func (t *Tx) CollectionVariableIDs(ctx context.Context, collectionID int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT variable_id FROM collection_variables WHERE collection_id = ? ORDER BY variable_id`, collectionID)
	if err != nil {
		return nil, classify("collection variables", "collection", collectionID, err)
	}
	return scanIDs(rows)
}

// ExclusiveVariableIDs returns the member variables that belong to no other
// collection.
func (t *Tx) ExclusiveVariableIDs(ctx context.Context, collectionID int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT cv.variable_id
		FROM collection_variables cv
		WHERE cv.collection_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM collection_variables other
			WHERE other.variable_id = cv.variable_id AND other.collection_id != cv.collection_id
		  )
		ORDER BY cv.variable_id
	`, collectionID)
	if err != nil {
		return nil, classify("exclusive variables", "collection", collectionID, err)
	}
	return scanIDs(rows)
}

// VariableCollections returns the names of the collections holding a variable.
func (t *Tx) VariableCollections(ctx context.Context, variableID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT c.name FROM collection_variables cv
		JOIN collections c ON c.id = cv.collection_id
		WHERE cv.variable_id = ?
		ORDER BY c.name
	`, variableID)
	if err != nil {
		return nil, classify("variable collections", "variable", variableID, err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// TagCollection attaches a tag, creating the tag if needed.
func (t *Tx) TagCollection(ctx context.Context, collectionID int64, tag string) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, tag); err != nil {
		return classify("create tag", "tag", tag, err)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO collection_tags (collection_id, tag_id)
		SELECT ?, id FROM tags WHERE name = ?
		ON CONFLICT(collection_id, tag_id) DO NOTHING
	`, collectionID, tag)
	if err != nil {
		return classify("tag collection", "collection", collectionID, err)
	}
	return nil
}

// CreateRelationship records subject -predicate-> object.
func (t *Tx) CreateRelationship(ctx context.Context, subjectID int64, predicate string, objectID int64) (model.Relationship, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO relationships (subject_id, predicate, object_id) VALUES (?, ?, ?)`,
		subjectID, predicate, objectID)
	if err != nil {
		return model.Relationship{}, classify("create relationship", "relationship", predicate, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Relationship{}, classify("create relationship", "relationship", predicate, err)
	}
	return model.Relationship{ID: id, SubjectID: subjectID, Predicate: predicate, ObjectID: objectID}, nil
}

// Relationships returns the relationships in which the collection is the subject.
func (t *Tx) Relationships(ctx context.Context, subjectID int64) ([]model.Relationship, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, subject_id, predicate, object_id FROM relationships
		WHERE subject_id = ? ORDER BY id
	`, subjectID)
	if err != nil {
		return nil, classify("list relationships", "relationship", subjectID, err)
	}
	defer rows.Close()
	rels := []model.Relationship{}
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.Predicate, &r.ObjectID); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (t *Tx) scanCollection(ctx context.Context, row *sql.Row) (model.Collection, error) {
	var c model.Collection
	var props string
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &props); err != nil {
		return model.Collection{}, err
	}
	var err error
	if c.Properties, err = model.UnmarshalObject(props); err != nil {
		return model.Collection{}, err
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT t.name FROM collection_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.collection_id = ?
		ORDER BY t.name
	`, c.ID)
	if err != nil {
		return model.Collection{}, err
	}
	defer rows.Close()
	c.Tags = []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return model.Collection{}, err
		}
		c.Tags = append(c.Tags, tag)
	}
	return c, rows.Err()
}
