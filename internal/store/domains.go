package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/cfstore/internal/model"
)

// GetOrCreateTimeDomain returns the time domain whose every field equals
// td, inserting it if there is none.
func (t *Tx) GetOrCreateTimeDomain(ctx context.Context, td model.TimeDomain) (model.TimeDomain, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT id FROM time_domains
		WHERE interval = ? AND interval_units = ? AND interval_offset = ?
		  AND calendar = ? AND units = ? AND starting = ? AND ending = ?
		ORDER BY id LIMIT 1
	`, td.Interval, td.IntervalUnits, td.IntervalOffset, td.Calendar, td.Units, td.Starting, td.Ending).Scan(&id)
	switch {
	case err == nil:
		td.ID = id
		return td, false, nil
	case err != sql.ErrNoRows:
		return model.TimeDomain{}, false, classify("find time domain", "time_domain", "", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO time_domains (interval, interval_units, interval_offset, calendar, units, starting, ending)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, td.Interval, td.IntervalUnits, td.IntervalOffset, td.Calendar, td.Units, td.Starting, td.Ending)
	if err != nil {
		return model.TimeDomain{}, false, classify("insert time domain", "time_domain", "", err)
	}
	if td.ID, err = res.LastInsertId(); err != nil {
		return model.TimeDomain{}, false, classify("insert time domain", "time_domain", "", err)
	}
	return td, true, nil
}

// GetTimeDomain retrieves a time domain by id.
func (t *Tx) GetTimeDomain(ctx context.Context, id int64) (model.TimeDomain, error) {
	var td model.TimeDomain
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, interval, interval_units, interval_offset, calendar, units, starting, ending
		FROM time_domains WHERE id = ?
	`, id).Scan(&td.ID, &td.Interval, &td.IntervalUnits, &td.IntervalOffset, &td.Calendar, &td.Units, &td.Starting, &td.Ending)
	if err != nil {
		return model.TimeDomain{}, classify("get time domain", "time_domain", id, err)
	}
	return td, nil
}

// DeleteTimeDomain removes a time domain. Fails with CodeInUse while any
// variable still references it.
func (t *Tx) DeleteTimeDomain(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM time_domains WHERE id = ?`, id); err != nil {
		return classify("delete time domain", "time_domain", id, err)
	}
	return nil
}

// GetOrCreateSpatialDomain returns the spatial domain whose every field
// equals sd, inserting it if there is none.
func (t *Tx) GetOrCreateSpatialDomain(ctx context.Context, sd model.SpatialDomain) (model.SpatialDomain, bool, error) {
	coords, bbox, err := encodeSpatial(sd)
	if err != nil {
		return model.SpatialDomain{}, false, err
	}

	var id int64
	err = t.tx.QueryRowContext(ctx, `
		SELECT id FROM spatial_domains
		WHERE name = ? AND region = ? AND nominal_resolution = ? AND size = ?
		  AND coordinates = ? AND bbox IS ?
		ORDER BY id LIMIT 1
	`, sd.Name, sd.Region, sd.NominalResolution, sd.Size, coords, bbox).Scan(&id)
	switch {
	case err == nil:
		sd.ID = id
		return sd, false, nil
	case err != sql.ErrNoRows:
		return model.SpatialDomain{}, false, classify("find spatial domain", "spatial_domain", sd.Name, err)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO spatial_domains (name, region, nominal_resolution, size, coordinates, bbox)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sd.Name, sd.Region, sd.NominalResolution, sd.Size, coords, bbox)
	if err != nil {
		return model.SpatialDomain{}, false, classify("insert spatial domain", "spatial_domain", sd.Name, err)
	}
	if sd.ID, err = res.LastInsertId(); err != nil {
		return model.SpatialDomain{}, false, classify("insert spatial domain", "spatial_domain", sd.Name, err)
	}
	return sd, true, nil
}

// GetSpatialDomain retrieves a spatial domain by id.
func (t *Tx) GetSpatialDomain(ctx context.Context, id int64) (model.SpatialDomain, error) {
	var sd model.SpatialDomain
	var coords string
	var bbox sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, region, nominal_resolution, size, coordinates, bbox
		FROM spatial_domains WHERE id = ?
	`, id).Scan(&sd.ID, &sd.Name, &sd.Region, &sd.NominalResolution, &sd.Size, &coords, &bbox)
	if err != nil {
		return model.SpatialDomain{}, classify("get spatial domain", "spatial_domain", id, err)
	}
	if err := json.Unmarshal([]byte(coords), &sd.Coordinates); err != nil {
		return model.SpatialDomain{}, fmt.Errorf("get spatial domain %d: coordinates: %w", id, err)
	}
	if bbox.Valid {
		sd.BBox = &model.BBox{}
		if err := json.Unmarshal([]byte(bbox.String), sd.BBox); err != nil {
			return model.SpatialDomain{}, fmt.Errorf("get spatial domain %d: bbox: %w", id, err)
		}
	}
	return sd, nil
}

// DeleteSpatialDomain removes a spatial domain. Fails with CodeInUse while
// any variable still references it.
func (t *Tx) DeleteSpatialDomain(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM spatial_domains WHERE id = ?`, id); err != nil {
		return classify("delete spatial domain", "spatial_domain", id, err)
	}
	return nil
}

func encodeSpatial(sd model.SpatialDomain) (string, sql.NullString, error) {
	coords := sd.Coordinates
	if coords == nil {
		coords = []string{}
	}
	c, err := model.MarshalCanonical(coords)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("spatial domain coordinates: %w", err)
	}
	if sd.BBox == nil {
		return string(c), sql.NullString{}, nil
	}
	b, err := model.MarshalCanonical(map[string]any{
		"west": sd.BBox.West, "south": sd.BBox.South, "east": sd.BBox.East, "north": sd.BBox.North,
	})
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("spatial domain bbox: %w", err)
	}
	return string(c), sql.NullString{String: string(b), Valid: true}, nil
}
