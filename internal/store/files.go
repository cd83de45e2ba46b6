package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cfstore/internal/model"
)

func fileColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	return fmt.Sprintf("%[1]sid, %[1]suuid, %[1]sname, %[1]spath, %[1]ssize, %[1]stype, %[1]schecksum, %[1]schecksum_method, %[1]sformat", p)
}

// InsertFile creates a file row and assigns its UUID.
// Location membership and volume are handled by integrity.AttachFile.
func (t *Tx) InsertFile(ctx context.Context, f model.File) (model.File, error) {
	if !model.ValidFileTypes[f.Type] {
		return model.File{}, model.Invariant("insert file", "invalid file type %q for %s", f.Type, f.Name)
	}
	if f.UUID == "" {
		f.UUID = t.NewUUID()
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO files (uuid, name, path, size, type, checksum, checksum_method, format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.UUID, f.Name, f.Path, f.Size, string(f.Type), f.Checksum, f.ChecksumMethod, f.Format)
	if err != nil {
		return model.File{}, classify("insert file", "file", f.Name, err)
	}
	f.ID, err = res.LastInsertId()
	if err != nil {
		return model.File{}, classify("insert file", "file", f.Name, err)
	}
	return f, nil
}

// GetFile retrieves a file by id.
func (t *Tx) GetFile(ctx context.Context, id int64) (model.File, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+fileColumns("")+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err != nil {
		return model.File{}, classify("get file", "file", id, err)
	}
	return f, nil
}

// GetFileByUUID retrieves a file by UUID.
func (t *Tx) GetFileByUUID(ctx context.Context, uuid string) (model.File, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+fileColumns("")+` FROM files WHERE uuid = ?`, uuid)
	f, err := scanFile(row)
	if err != nil {
		return model.File{}, classify("get file", "file", uuid, err)
	}
	return f, nil
}

// FindFiles returns the files with the given path and name, ordered by id.
func (t *Tx) FindFiles(ctx context.Context, path, name string) ([]model.File, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+fileColumns("")+` FROM files WHERE path = ? AND name = ? ORDER BY id`, path, name)
	if err != nil {
		return nil, classify("find files", "file", path+"/"+name, err)
	}
	return scanFiles(rows)
}

// FileLocations returns the locations holding a copy of the file.
func (t *Tx) FileLocations(ctx context.Context, fileID int64) ([]model.Location, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT l.id, l.name, l.volume
		FROM file_locations fl
		JOIN locations l ON l.id = fl.location_id
		WHERE fl.file_id = ?
		ORDER BY l.id
	`, fileID)
	if err != nil {
		return nil, classify("file locations", "file", fileID, err)
	}
	return scanLocations(rows)
}

// LinkFileLocation records that the file has a copy at the location.
// Returns inserted=false if the link already existed. Volume bookkeeping is
// the caller's responsibility and must happen in the same Tx.
func (t *Tx) LinkFileLocation(ctx context.Context, fileID, locationID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO file_locations (file_id, location_id) VALUES (?, ?)
		ON CONFLICT(file_id, location_id) DO NOTHING
	`, fileID, locationID)
	if err != nil {
		return false, classify("link file location", "file", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("link file location", "file", fileID, err)
	}
	return n > 0, nil
}

// UnlinkFileLocation removes a file/location link.
// Returns removed=false if there was no such link.
func (t *Tx) UnlinkFileLocation(ctx context.Context, fileID, locationID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM file_locations WHERE file_id = ? AND location_id = ?`, fileID, locationID)
	if err != nil {
		return false, classify("unlink file location", "file", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("unlink file location", "file", fileID, err)
	}
	return n > 0, nil
}

// DeleteFileRow removes the file row. Locations, variables and manifests
// must already have been detached.
func (t *Tx) DeleteFileRow(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return classify("delete file", "file", id, err)
	}
	return nil
}

// CountManifestsWithFragment counts manifests listing the file as a fragment.
func (t *Tx) CountManifestsWithFragment(ctx context.Context, fileID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT manifest_id) FROM manifest_fragments WHERE file_id = ?`, fileID).Scan(&n)
	if err != nil {
		return 0, classify("count fragment references", "file", fileID, err)
	}
	return n, nil
}

// ManifestsOwnedBy returns the ids of manifests whose aggregation file is
// fileID. Quark manifests come first so they are deleted before their parent.
func (t *Tx) ManifestsOwnedBy(ctx context.Context, fileID int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM manifests WHERE cfa_file_id = ? ORDER BY is_quark DESC, id ASC`, fileID)
	if err != nil {
		return nil, classify("list owned manifests", "file", fileID, err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, classify("list owned manifests", "file", fileID, err)
	}
	return ids, nil
}

// FindOwnedFragment returns a fragment file already listed by one of the
// manifests of cfaFileID, matched by path and name.
func (t *Tx) FindOwnedFragment(ctx context.Context, cfaFileID int64, path, name string) (model.File, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+fileColumns("f")+`
		FROM files f
		JOIN manifest_fragments mf ON mf.file_id = f.id
		JOIN manifests m ON m.id = mf.manifest_id
		WHERE m.cfa_file_id = ? AND f.path = ? AND f.name = ? AND f.type = 'fragment'
		ORDER BY f.id LIMIT 1
	`, cfaFileID, path, name)
	f, err := scanFile(row)
	if err != nil {
		return model.File{}, classify("find fragment", "file", path+"/"+name, err)
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (model.File, error) {
	var f model.File
	var ft string
	err := row.Scan(&f.ID, &f.UUID, &f.Name, &f.Path, &f.Size, &ft, &f.Checksum, &f.ChecksumMethod, &f.Format)
	if err != nil {
		return model.File{}, err
	}
	f.Type = model.FileType(ft)
	return f, nil
}

func scanFiles(rows *sql.Rows) ([]model.File, error) {
	defer rows.Close()
	files := []model.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
