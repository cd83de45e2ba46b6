package store

import (
	"context"
	"database/sql"

	"github.com/roach88/cfstore/internal/model"
)

// CreateLocation inserts a location with zero volume.
// Returns a CodeDuplicate error if the name is taken.
func (t *Tx) CreateLocation(ctx context.Context, name string) (model.Location, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO locations (name, volume) VALUES (?, 0)`, name)
	if err != nil {
		return model.Location{}, classify("create location", "location", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Location{}, classify("create location", "location", name, err)
	}
	return model.Location{ID: id, Name: name}, nil
}

// GetLocation retrieves a location by name.
func (t *Tx) GetLocation(ctx context.Context, name string) (model.Location, error) {
	var loc model.Location
	err := t.tx.QueryRowContext(ctx, `SELECT id, name, volume FROM locations WHERE name = ?`, name).
		Scan(&loc.ID, &loc.Name, &loc.Volume)
	if err != nil {
		return model.Location{}, classify("get location", "location", name, err)
	}
	return loc, nil
}

// GetLocationByID retrieves a location by id.
func (t *Tx) GetLocationByID(ctx context.Context, id int64) (model.Location, error) {
	var loc model.Location
	err := t.tx.QueryRowContext(ctx, `SELECT id, name, volume FROM locations WHERE id = ?`, id).
		Scan(&loc.ID, &loc.Name, &loc.Volume)
	if err != nil {
		return model.Location{}, classify("get location", "location", id, err)
	}
	return loc, nil
}

// ListLocations returns all locations ordered by name.
func (t *Tx) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, volume FROM locations ORDER BY name`)
	if err != nil {
		return nil, classify("list locations", "location", "", err)
	}
	return scanLocations(rows)
}

// AdjustLocationVolume adds delta (possibly negative) to a location's volume.
// A result below zero violates the CHECK constraint and is reported as an
// invariant violation.
func (t *Tx) AdjustLocationVolume(ctx context.Context, id, delta int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE locations SET volume = volume + ? WHERE id = ?`, delta, id)
	if err != nil {
		return classify("adjust volume", "location", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("adjust volume", "location", id, err)
	}
	if n == 0 {
		return model.NotFound("adjust volume", "location", id)
	}
	return nil
}

// DeleteLocationRow removes the location row. Callers check volume first.
func (t *Tx) DeleteLocationRow(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id); err != nil {
		return classify("delete location", "location", id, err)
	}
	return nil
}

// LocationFileSizes returns the sum of the sizes of the files attached to
// the location, computed from the files themselves.
func (t *Tx) LocationFileSizes(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(f.size), 0)
		FROM file_locations fl
		JOIN files f ON f.id = fl.file_id
		WHERE fl.location_id = ?
	`, id).Scan(&total)
	if err != nil {
		return 0, classify("sum location files", "location", id, err)
	}
	return total, nil
}

// LocationFiles returns the files attached to a location ordered by id.
func (t *Tx) LocationFiles(ctx context.Context, id int64) ([]model.File, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+fileColumns("f")+`
		FROM file_locations fl
		JOIN files f ON f.id = fl.file_id
		WHERE fl.location_id = ?
		ORDER BY f.id
	`, id)
	if err != nil {
		return nil, classify("list location files", "location", id, err)
	}
	return scanFiles(rows)
}

func scanLocations(rows *sql.Rows) ([]model.Location, error) {
	defer rows.Close()
	locs := []model.Location{}
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Volume); err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}
