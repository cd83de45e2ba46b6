package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cfstore/internal/model"
)

// Ref names a variable column that references a shared or owning entity.
type Ref string

const (
	RefPropertySet   Ref = "property_set_id"
	RefSpatialDomain Ref = "spatial_domain_id"
	RefTimeDomain    Ref = "time_domain_id"
	RefCellMethodSet Ref = "cell_method_set_id"
	RefFile          Ref = "in_file_id"
	RefManifest      Ref = "in_manifest_id"
)

var validRefs = map[Ref]bool{
	RefPropertySet:   true,
	RefSpatialDomain: true,
	RefTimeDomain:    true,
	RefCellMethodSet: true,
	RefFile:          true,
	RefManifest:      true,
}

const variableColumns = `id, uuid, proxied, property_set_id, spatial_domain_id, time_domain_id,
	cell_method_set_id, in_file_id, in_manifest_id`

// VariableSignature is the materialised uniqueness tuple of a variable:
// proxied bag, property set, spatial domain, time domain, cell method set,
// file and manifest. It backs the UNIQUE index on variables.signature.
func VariableSignature(v model.Variable) (string, string, error) {
	proxied, err := canonicalProxied(v.Proxied)
	if err != nil {
		return "", "", err
	}
	h, _ := model.NewHasher(model.HashSHA256)
	sig := h.SequenceKey(model.DomainVariable, []string{
		proxied,
		fmt.Sprint(v.PropertySetID),
		refString(v.SpatialDomainID),
		refString(v.TimeDomainID),
		refString(v.CellMethodSetID),
		fmt.Sprint(v.InFileID),
		refString(v.InManifestID),
	})
	return sig, proxied, nil
}

func refString(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func canonicalProxied(p map[string]any) (string, error) {
	if p == nil {
		p = map[string]any{}
	}
	b, err := model.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("proxied properties: %w", err)
	}
	return string(b), nil
}

// FindVariable looks for a variable with exactly v's attribute tuple,
// comparing every column including the canonical proxied bag.
func (t *Tx) FindVariable(ctx context.Context, v model.Variable) (model.Variable, error) {
	proxied, err := canonicalProxied(v.Proxied)
	if err != nil {
		return model.Variable{}, err
	}
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+variableColumns+` FROM variables
		WHERE proxied = ? AND property_set_id = ?
		  AND spatial_domain_id IS ? AND time_domain_id IS ? AND cell_method_set_id IS ?
		  AND in_file_id = ? AND in_manifest_id IS ?
		ORDER BY id LIMIT 1
	`, proxied, v.PropertySetID, nullInt64(v.SpatialDomainID), nullInt64(v.TimeDomainID),
		nullInt64(v.CellMethodSetID), v.InFileID, nullInt64(v.InManifestID))
	found, err := scanVariable(row)
	if err != nil {
		return model.Variable{}, classify("find variable", "variable", "", err)
	}
	return found, nil
}

// InsertVariable creates a variable. A concurrent insert of the same tuple
// surfaces as CodeDuplicate via the signature index.
func (t *Tx) InsertVariable(ctx context.Context, v model.Variable) (model.Variable, error) {
	sig, proxied, err := VariableSignature(v)
	if err != nil {
		return model.Variable{}, err
	}
	if v.UUID == "" {
		v.UUID = t.NewUUID()
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO variables (uuid, proxied, property_set_id, spatial_domain_id, time_domain_id,
			cell_method_set_id, in_file_id, in_manifest_id, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.UUID, proxied, v.PropertySetID, nullInt64(v.SpatialDomainID), nullInt64(v.TimeDomainID),
		nullInt64(v.CellMethodSetID), v.InFileID, nullInt64(v.InManifestID), sig)
	if err != nil {
		return model.Variable{}, classify("insert variable", "variable", sig, err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return model.Variable{}, classify("insert variable", "variable", sig, err)
	}
	if v.Proxied == nil {
		v.Proxied = map[string]any{}
	}
	return v, nil
}

// FindVariableBySignature is the fallback used after a signature conflict.
func (t *Tx) FindVariableBySignature(ctx context.Context, sig string) (model.Variable, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+variableColumns+` FROM variables WHERE signature = ?`, sig)
	v, err := scanVariable(row)
	if err != nil {
		return model.Variable{}, classify("find variable", "variable", sig, err)
	}
	return v, nil
}

// GetOrCreateVariable returns the variable with v's exact attribute tuple,
// inserting it if absent. A signature conflict means another writer won;
// its row is returned with created=false.
func (t *Tx) GetOrCreateVariable(ctx context.Context, v model.Variable) (model.Variable, bool, error) {
	found, err := t.FindVariable(ctx, v)
	if err == nil {
		return found, false, nil
	}
	if !model.IsNotFound(err) {
		return model.Variable{}, false, err
	}

	inserted, err := t.InsertVariable(ctx, v)
	if model.IsDuplicate(err) {
		sig, _, serr := VariableSignature(v)
		if serr != nil {
			return model.Variable{}, false, serr
		}
		winner, ferr := t.FindVariableBySignature(ctx, sig)
		return winner, false, ferr
	}
	if err != nil {
		return model.Variable{}, false, err
	}
	return inserted, true, nil
}

// GetVariable retrieves a variable by id.
func (t *Tx) GetVariable(ctx context.Context, id int64) (model.Variable, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+variableColumns+` FROM variables WHERE id = ?`, id)
	v, err := scanVariable(row)
	if err != nil {
		return model.Variable{}, classify("get variable", "variable", id, err)
	}
	return v, nil
}

// DeleteVariableRow removes the variable and its collection memberships.
func (t *Tx) DeleteVariableRow(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM collection_variables WHERE variable_id = ?`, id); err != nil {
		return classify("delete variable", "variable", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM variables WHERE id = ?`, id); err != nil {
		return classify("delete variable", "variable", id, err)
	}
	return nil
}

// CountVariablesUsing counts the variables whose ref column equals id.
// This is the live reference count for shared sub-entities.
func (t *Tx) CountVariablesUsing(ctx context.Context, ref Ref, id int64) (int64, error) {
	if !validRefs[ref] {
		return 0, fmt.Errorf("count variables: unknown reference %q", ref)
	}
	var n int64
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM variables WHERE `+string(ref)+` = ?`, id).Scan(&n)
	if err != nil {
		return 0, classify("count variables", "variable", ref, err)
	}
	return n, nil
}

// VariablesUsing returns the ids of variables whose ref column equals id.
func (t *Tx) VariablesUsing(ctx context.Context, ref Ref, id int64) ([]int64, error) {
	if !validRefs[ref] {
		return nil, fmt.Errorf("list variables: unknown reference %q", ref)
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM variables WHERE `+string(ref)+` = ? ORDER BY id`, id)
	if err != nil {
		return nil, classify("list variables", "variable", ref, err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, classify("list variables", "variable", ref, err)
	}
	return ids, nil
}

// CountRows returns the number of rows in a catalog table. Used by
// verification and tests; table is never user supplied.
func (t *Tx) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, classify("count rows", table, "", err)
	}
	return n, nil
}

func scanVariable(row rowScanner) (model.Variable, error) {
	var v model.Variable
	var proxied string
	var sd, td, cms, man sql.NullInt64
	err := row.Scan(&v.ID, &v.UUID, &proxied, &v.PropertySetID, &sd, &td, &cms, &v.InFileID, &man)
	if err != nil {
		return model.Variable{}, err
	}
	if v.Proxied, err = model.UnmarshalObject(proxied); err != nil {
		return model.Variable{}, err
	}
	v.SpatialDomainID = ptrInt64(sd)
	v.TimeDomainID = ptrInt64(td)
	v.CellMethodSetID = ptrInt64(cms)
	v.InManifestID = ptrInt64(man)
	return v, nil
}
