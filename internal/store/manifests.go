package store

import (
	"context"

	"github.com/roach88/cfstore/internal/model"
)

const manifestColumns = `id, uuid, cfa_file_id, key, bounds, units, calendar, parent_uuid, is_quark`

// InsertManifest creates a manifest and its ordered fragment links, or
// returns the existing manifest with the same (cfa_file_id, key).
//
// Uses ON CONFLICT(cfa_file_id, key) DO NOTHING; if the row already exists
// (including one inserted by a concurrent writer) the existing manifest is
// re-read and returned with inserted=false, and fragmentIDs are ignored.
func (t *Tx) InsertManifest(ctx context.Context, m model.Manifest, fragmentIDs []int64) (model.Manifest, bool, error) {
	if m.UUID == "" {
		m.UUID = t.NewUUID()
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO manifests (uuid, cfa_file_id, key, bounds, units, calendar, parent_uuid, is_quark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cfa_file_id, key) DO NOTHING
	`, m.UUID, m.CFAFileID, m.Key, model.EncodeBounds(m.Bounds), m.Units, m.Calendar, m.ParentUUID, m.IsQuark)
	if err != nil {
		return model.Manifest{}, false, classify("insert manifest", "manifest", m.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Manifest{}, false, classify("insert manifest", "manifest", m.Key, err)
	}
	if n == 0 {
		existing, err := t.FindManifest(ctx, m.CFAFileID, m.Key)
		if err != nil {
			return model.Manifest{}, false, err
		}
		return existing, false, nil
	}

	m.ID, err = res.LastInsertId()
	if err != nil {
		return model.Manifest{}, false, classify("insert manifest", "manifest", m.Key, err)
	}
	for pos, fid := range fragmentIDs {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO manifest_fragments (manifest_id, position, file_id) VALUES (?, ?, ?)`,
			m.ID, pos, fid); err != nil {
			return model.Manifest{}, false, classify("insert manifest fragment", "manifest", m.Key, err)
		}
	}

	loaded, err := t.GetManifest(ctx, m.ID)
	if err != nil {
		return model.Manifest{}, false, err
	}
	return loaded, true, nil
}

// GetManifest retrieves a manifest with its fragments in order.
func (t *Tx) GetManifest(ctx context.Context, id int64) (model.Manifest, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+manifestColumns+` FROM manifests WHERE id = ?`, id)
	m, err := scanManifest(row)
	if err != nil {
		return model.Manifest{}, classify("get manifest", "manifest", id, err)
	}
	if m.Fragments, err = t.ManifestFragments(ctx, m.ID); err != nil {
		return model.Manifest{}, err
	}
	return m, nil
}

// GetManifestByUUID retrieves a manifest by UUID.
func (t *Tx) GetManifestByUUID(ctx context.Context, uuid string) (model.Manifest, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM manifests WHERE uuid = ?`, uuid).Scan(&id)
	if err != nil {
		return model.Manifest{}, classify("get manifest", "manifest", uuid, err)
	}
	return t.GetManifest(ctx, id)
}

// FindManifest looks up a manifest by its owning file and content key.
func (t *Tx) FindManifest(ctx context.Context, cfaFileID int64, key string) (model.Manifest, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM manifests WHERE cfa_file_id = ? AND key = ?`, cfaFileID, key).Scan(&id)
	if err != nil {
		return model.Manifest{}, classify("find manifest", "manifest", key, err)
	}
	return t.GetManifest(ctx, id)
}

// ManifestFragments returns the fragment files of a manifest in order.
func (t *Tx) ManifestFragments(ctx context.Context, manifestID int64) ([]model.File, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+fileColumns("f")+`
		FROM manifest_fragments mf
		JOIN files f ON f.id = mf.file_id
		WHERE mf.manifest_id = ?
		ORDER BY mf.position
	`, manifestID)
	if err != nil {
		return nil, classify("manifest fragments", "manifest", manifestID, err)
	}
	files, err := scanFiles(rows)
	if err != nil {
		return nil, classify("manifest fragments", "manifest", manifestID, err)
	}
	return files, nil
}

// DeleteManifestRow removes the manifest and its fragment links (but not
// the fragment files). Returns the fragment ids it listed.
func (t *Tx) DeleteManifestRow(ctx context.Context, id int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT file_id FROM manifest_fragments WHERE manifest_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, classify("delete manifest", "manifest", id, err)
	}
	fragmentIDs, err := scanIDs(rows)
	if err != nil {
		return nil, classify("delete manifest", "manifest", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM manifest_fragments WHERE manifest_id = ?`, id); err != nil {
		return nil, classify("delete manifest", "manifest", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM manifests WHERE id = ?`, id); err != nil {
		return nil, classify("delete manifest", "manifest", id, err)
	}
	return fragmentIDs, nil
}

// QuarkManifestIDs returns the quark manifests derived from the atomic
// manifest with the given UUID.
func (t *Tx) QuarkManifestIDs(ctx context.Context, parentUUID string) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM manifests WHERE parent_uuid = ? AND is_quark = 1 ORDER BY id`, parentUUID)
	if err != nil {
		return nil, classify("list quark manifests", "manifest", parentUUID, err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, classify("list quark manifests", "manifest", parentUUID, err)
	}
	return ids, nil
}

// ListManifests returns every manifest id ordered by id.
func (t *Tx) ListManifests(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM manifests ORDER BY id`)
	if err != nil {
		return nil, classify("list manifests", "manifest", "", err)
	}
	return scanIDs(rows)
}

func scanManifest(row rowScanner) (model.Manifest, error) {
	var m model.Manifest
	var blob []byte
	err := row.Scan(&m.ID, &m.UUID, &m.CFAFileID, &m.Key, &blob, &m.Units, &m.Calendar, &m.ParentUUID, &m.IsQuark)
	if err != nil {
		return model.Manifest{}, err
	}
	if m.Bounds, err = model.DecodeBounds(blob); err != nil {
		return model.Manifest{}, err
	}
	return m, nil
}
