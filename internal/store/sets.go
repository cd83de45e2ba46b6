package store

import (
	"context"
	"database/sql"

	"github.com/roach88/cfstore/internal/model"
)

// FindCellMethodSetID returns the id of the set with the given key.
func (t *Tx) FindCellMethodSetID(ctx context.Context, key string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM cell_method_sets WHERE key = ?`, key).Scan(&id)
	if err != nil {
		return 0, classify("find cell method set", "cell_method_set", key, err)
	}
	return id, nil
}

// InsertCellMethodSet claims key for a new set.
// Uses ON CONFLICT(key) DO NOTHING: if another writer holds the key, the
// winner's id is returned with inserted=false.
func (t *Tx) InsertCellMethodSet(ctx context.Context, key string) (int64, bool, error) {
	return t.insertKeyed(ctx, "cell_method_sets", "cell_method_set", key)
}

// AddCellMethodSetMember appends a method to a set, creating the method
// row if needed.
func (t *Tx) AddCellMethodSetMember(ctx context.Context, setID int64, position int, cm model.CellMethod) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cell_methods (axis, method, qualifier, interval) VALUES (?, ?, ?, ?)
		ON CONFLICT(axis, method, qualifier, interval) DO NOTHING
	`, cm.Axis, cm.Method, cm.Qualifier, cm.Interval)
	if err != nil {
		return classify("insert cell method", "cell_method", cm.String(), err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO cell_method_set_members (set_id, position, method_id)
		SELECT ?, ?, id FROM cell_methods
		WHERE axis = ? AND method = ? AND qualifier = ? AND interval = ?
	`, setID, position, cm.Axis, cm.Method, cm.Qualifier, cm.Interval)
	if err != nil {
		return classify("add cell method member", "cell_method_set", setID, err)
	}
	return nil
}

// GetCellMethodSet retrieves a set with its methods in insertion order.
func (t *Tx) GetCellMethodSet(ctx context.Context, id int64) (model.CellMethodSet, error) {
	set := model.CellMethodSet{ID: id}
	err := t.tx.QueryRowContext(ctx, `SELECT key FROM cell_method_sets WHERE id = ?`, id).Scan(&set.Key)
	if err != nil {
		return model.CellMethodSet{}, classify("get cell method set", "cell_method_set", id, err)
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT cm.axis, cm.method, cm.qualifier, cm.interval
		FROM cell_method_set_members m
		JOIN cell_methods cm ON cm.id = m.method_id
		WHERE m.set_id = ?
		ORDER BY m.position
	`, id)
	if err != nil {
		return model.CellMethodSet{}, classify("get cell method set", "cell_method_set", id, err)
	}
	defer rows.Close()
	set.Methods = []model.CellMethod{}
	for rows.Next() {
		var cm model.CellMethod
		if err := rows.Scan(&cm.Axis, &cm.Method, &cm.Qualifier, &cm.Interval); err != nil {
			return model.CellMethodSet{}, classify("get cell method set", "cell_method_set", id, err)
		}
		set.Methods = append(set.Methods, cm)
	}
	if err := rows.Err(); err != nil {
		return model.CellMethodSet{}, classify("get cell method set", "cell_method_set", id, err)
	}
	return set, nil
}

// DeleteCellMethodSet removes a set and any cell method rows no longer
// used by another set.
func (t *Tx) DeleteCellMethodSet(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cell_method_sets WHERE id = ?`, id); err != nil {
		return classify("delete cell method set", "cell_method_set", id, err)
	}
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM cell_methods
		WHERE id NOT IN (SELECT method_id FROM cell_method_set_members)
	`)
	if err != nil {
		return classify("delete orphan cell methods", "cell_method", "", err)
	}
	return nil
}

// FindPropertySetID returns the id of the set with the given key.
func (t *Tx) FindPropertySetID(ctx context.Context, key string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM property_sets WHERE key = ?`, key).Scan(&id)
	if err != nil {
		return 0, classify("find property set", "property_set", key, err)
	}
	return id, nil
}

// InsertPropertySet claims key for a new set; see InsertCellMethodSet.
func (t *Tx) InsertPropertySet(ctx context.Context, key string) (int64, bool, error) {
	return t.insertKeyed(ctx, "property_sets", "property_set", key)
}

// AddPropertySetMember adds a property to a set, creating the property row
// if needed. value must already be canonical JSON.
func (t *Tx) AddPropertySetMember(ctx context.Context, setID int64, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO properties (key, value) VALUES (?, ?)
		ON CONFLICT(key, value) DO NOTHING
	`, key, value)
	if err != nil {
		return classify("insert property", "property", key, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO property_set_members (set_id, property_id)
		SELECT ?, id FROM properties WHERE key = ? AND value = ?
		ON CONFLICT(set_id, property_id) DO NOTHING
	`, setID, key, value)
	if err != nil {
		return classify("add property member", "property_set", setID, err)
	}
	return nil
}

// GetPropertySet retrieves a set with its properties ordered by key.
func (t *Tx) GetPropertySet(ctx context.Context, id int64) (model.PropertySet, error) {
	set := model.PropertySet{ID: id}
	err := t.tx.QueryRowContext(ctx, `SELECT key FROM property_sets WHERE id = ?`, id).Scan(&set.Key)
	if err != nil {
		return model.PropertySet{}, classify("get property set", "property_set", id, err)
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT p.key, p.value
		FROM property_set_members m
		JOIN properties p ON p.id = m.property_id
		WHERE m.set_id = ?
		ORDER BY p.key, p.value
	`, id)
	if err != nil {
		return model.PropertySet{}, classify("get property set", "property_set", id, err)
	}
	defer rows.Close()
	set.Properties = []model.Property{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return model.PropertySet{}, classify("get property set", "property_set", id, err)
		}
		v, err := model.UnmarshalValue(raw)
		if err != nil {
			return model.PropertySet{}, classify("get property set", "property_set", id, err)
		}
		set.Properties = append(set.Properties, model.Property{Key: key, Value: v})
	}
	if err := rows.Err(); err != nil {
		return model.PropertySet{}, classify("get property set", "property_set", id, err)
	}
	return set, nil
}

// DeletePropertySet removes a set and the individual properties that no
// other set uses. Returns the number of orphaned properties deleted.
func (t *Tx) DeletePropertySet(ctx context.Context, id int64) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM property_sets WHERE id = ?`, id); err != nil {
		return 0, classify("delete property set", "property_set", id, err)
	}
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM properties
		WHERE id NOT IN (SELECT property_id FROM property_set_members)
	`)
	if err != nil {
		return 0, classify("delete orphan properties", "property", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("delete orphan properties", "property", "", err)
	}
	return n, nil
}

// CountProperties returns the number of individual property rows.
func (t *Tx) CountProperties(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, classify("count properties", "property", "", err)
	}
	return n, nil
}

// insertKeyed implements the insert-or-get pattern for hash-keyed tables.
// table is never user supplied.
func (t *Tx) insertKeyed(ctx context.Context, table, entity, key string) (int64, bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO `+table+` (key) VALUES (?) ON CONFLICT(key) DO NOTHING`, key)
	if err != nil {
		return 0, false, classify("insert "+entity, entity, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, classify("insert "+entity, entity, key, err)
	}
	if n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, classify("insert "+entity, entity, key, err)
		}
		return id, true, nil
	}

	// Conflict - row already exists, fetch the existing ID
	var id int64
	err = t.tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE key = ?`, key).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return 0, false, classify("select existing "+entity, entity, key, err)
	}
	if err == sql.ErrNoRows {
		return 0, false, model.Invariant("insert "+entity, "key %s conflicted but no row exists", key)
	}
	return id, false, nil
}
