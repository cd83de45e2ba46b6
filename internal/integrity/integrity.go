package integrity

import (
	"context"
	"log/slog"

	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// Engine performs cascading deletes inside a caller-supplied transaction.
type Engine struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Engine. A nil logger uses slog.Default; m may be nil.
func New(log *slog.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log, metrics: m}
}

// deleted logs a deletion now and counts it once tx commits.
func (e *Engine) deleted(tx *store.Tx, entity string, id int64, trigger Trigger) {
	tx.AfterCommit(func() { e.metrics.Deleted(entity) })
	e.log.Debug("entity deleted", "entity", entity, "id", id, "trigger", trigger.String())
}

// DeleteVariable deletes a variable and reclaims everything that only it
// referenced: its property set, spatial domain, time domain and cell method
// set, then its manifest, then its file. The file is left alone when the
// deletion was itself started by the file.
func (e *Engine) DeleteVariable(ctx context.Context, tx *store.Tx, id int64, trigger Trigger) error {
	v, err := tx.GetVariable(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.DeleteVariableRow(ctx, id); err != nil {
		return err
	}
	e.deleted(tx, "variable", id, trigger)

	if err := e.reclaimShared(ctx, tx, v); err != nil {
		return err
	}

	if v.InManifestID != nil && trigger != TriggerOwningManifest {
		n, err := tx.CountVariablesUsing(ctx, store.RefManifest, *v.InManifestID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := e.DeleteManifest(ctx, tx, *v.InManifestID, TriggerOwningVariable); err != nil {
				return err
			}
		}
	}

	if trigger != TriggerOwningFile {
		n, err := tx.CountVariablesUsing(ctx, store.RefFile, v.InFileID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := e.DeleteFile(ctx, tx, v.InFileID, TriggerOwningVariable); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) reclaimShared(ctx context.Context, tx *store.Tx, v model.Variable) error {
	orphan := func(ref store.Ref, id int64) (bool, error) {
		n, err := tx.CountVariablesUsing(ctx, ref, id)
		return n == 0, err
	}

	if ok, err := orphan(store.RefPropertySet, v.PropertySetID); err != nil {
		return err
	} else if ok {
		props, err := tx.DeletePropertySet(ctx, v.PropertySetID)
		if err != nil {
			return err
		}
		e.deleted(tx, "property_set", v.PropertySetID, TriggerOwningVariable)
		tx.AfterCommit(func() {
			for range props {
				e.metrics.Deleted("property")
			}
		})
	}

	if v.SpatialDomainID != nil {
		if ok, err := orphan(store.RefSpatialDomain, *v.SpatialDomainID); err != nil {
			return err
		} else if ok {
			if err := tx.DeleteSpatialDomain(ctx, *v.SpatialDomainID); err != nil {
				return err
			}
			e.deleted(tx, "spatial_domain", *v.SpatialDomainID, TriggerOwningVariable)
		}
	}

	if v.TimeDomainID != nil {
		if ok, err := orphan(store.RefTimeDomain, *v.TimeDomainID); err != nil {
			return err
		} else if ok {
			if err := tx.DeleteTimeDomain(ctx, *v.TimeDomainID); err != nil {
				return err
			}
			e.deleted(tx, "time_domain", *v.TimeDomainID, TriggerOwningVariable)
		}
	}

	if v.CellMethodSetID != nil {
		if ok, err := orphan(store.RefCellMethodSet, *v.CellMethodSetID); err != nil {
			return err
		} else if ok {
			if err := tx.DeleteCellMethodSet(ctx, *v.CellMethodSetID); err != nil {
				return err
			}
			e.deleted(tx, "cell_method_set", *v.CellMethodSetID, TriggerOwningVariable)
		}
	}
	return nil
}

// DeleteFile deletes a file and refunds its size to every location holding
// it. A fragment still listed by a manifest cannot be deleted directly. An
// aggregation or standalone file takes its variables and manifests with it.
func (e *Engine) DeleteFile(ctx context.Context, tx *store.Tx, id int64, trigger Trigger) error {
	const op = "delete file"

	f, err := tx.GetFile(ctx, id)
	if err != nil {
		return err
	}

	if f.Type == model.FileFragment {
		n, err := tx.CountManifestsWithFragment(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return model.InUse(op, "file", f.Name, "fragment is listed by %d manifest(s)", n)
		}
		if err := detachAll(ctx, tx, f); err != nil {
			return err
		}
		if err := tx.DeleteFileRow(ctx, id); err != nil {
			return err
		}
		e.deleted(tx, "file", id, trigger)
		return nil
	}

	if err := detachAll(ctx, tx, f); err != nil {
		return err
	}

	if trigger != TriggerOwningVariable {
		vars, err := tx.VariablesUsing(ctx, store.RefFile, id)
		if err != nil {
			return err
		}
		for _, vid := range vars {
			if err := e.DeleteVariable(ctx, tx, vid, TriggerOwningFile); err != nil {
				return err
			}
		}
	}

	// Variable deletion may already have reclaimed some manifests.
	manifests, err := tx.ManifestsOwnedBy(ctx, id)
	if err != nil {
		return err
	}
	for _, mid := range manifests {
		if _, err := tx.GetManifest(ctx, mid); model.IsNotFound(err) {
			continue
		} else if err != nil {
			return err
		}
		if err := e.DeleteManifest(ctx, tx, mid, TriggerOwningFile); err != nil {
			return err
		}
	}

	if err := tx.DeleteFileRow(ctx, id); err != nil {
		return err
	}
	e.deleted(tx, "file", id, trigger)
	return nil
}

// DeleteManifest deletes a manifest, the quark manifests derived from it,
// and every fragment no other manifest lists.
//
// A direct request is refused while any variable references the manifest or
// one of its quarks. When the last variable of an atomic manifest goes but a
// quark of it is still referenced, the manifest is kept.
func (e *Engine) DeleteManifest(ctx context.Context, tx *store.Tx, id int64, trigger Trigger) error {
	const op = "delete manifest"

	m, err := tx.GetManifest(ctx, id)
	if err != nil {
		return err
	}

	var quarks []int64
	if !m.IsQuark {
		if quarks, err = tx.QuarkManifestIDs(ctx, m.UUID); err != nil {
			return err
		}
	}

	refs, err := tx.CountVariablesUsing(ctx, store.RefManifest, id)
	if err != nil {
		return err
	}
	for _, qid := range quarks {
		n, err := tx.CountVariablesUsing(ctx, store.RefManifest, qid)
		if err != nil {
			return err
		}
		refs += n
	}
	if refs > 0 {
		switch trigger {
		case TriggerSelf:
			return model.InUse(op, "manifest", m.UUID, "referenced by %d variable(s)", refs)
		case TriggerOwningVariable:
			e.log.Debug("manifest retained", "id", id, "references", refs)
			return nil
		}
	}

	for _, qid := range quarks {
		if err := e.deleteManifestRow(ctx, tx, qid, TriggerOwningManifest); err != nil {
			return err
		}
	}
	return e.deleteManifestRow(ctx, tx, id, trigger)
}

func (e *Engine) deleteManifestRow(ctx context.Context, tx *store.Tx, id int64, trigger Trigger) error {
	fragments, err := tx.DeleteManifestRow(ctx, id)
	if err != nil {
		return err
	}
	e.deleted(tx, "manifest", id, trigger)

	seen := make(map[int64]bool, len(fragments))
	for _, fid := range fragments {
		if seen[fid] {
			continue
		}
		seen[fid] = true
		n, err := tx.CountManifestsWithFragment(ctx, fid)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := e.DeleteFile(ctx, tx, fid, TriggerOwningManifest); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCollection deletes a collection. Variables that belong to no other
// collection are deleted with it when force is set; otherwise their presence
// refuses the request.
func (e *Engine) DeleteCollection(ctx context.Context, tx *store.Tx, name string, force bool) error {
	c, err := e.emptyCollection(ctx, tx, "delete collection", name, force)
	if err != nil {
		return err
	}
	if err := tx.DeleteCollectionRow(ctx, c.ID); err != nil {
		return err
	}
	e.deleted(tx, "collection", c.ID, TriggerSelf)
	return nil
}

// EmptyCollection removes every member from a collection, deleting the
// exclusive ones when force is set.
func (e *Engine) EmptyCollection(ctx context.Context, tx *store.Tx, name string, force bool) error {
	_, err := e.emptyCollection(ctx, tx, "empty collection", name, force)
	return err
}

func (e *Engine) emptyCollection(ctx context.Context, tx *store.Tx, op, name string, force bool) (model.Collection, error) {
	c, err := tx.GetCollection(ctx, name)
	if err != nil {
		return model.Collection{}, err
	}
	exclusive, err := tx.ExclusiveVariableIDs(ctx, c.ID)
	if err != nil {
		return model.Collection{}, err
	}
	if len(exclusive) > 0 && !force {
		return model.Collection{}, model.InUse(op, "collection", name,
			"%d variable(s) belong to no other collection", len(exclusive))
	}
	for _, vid := range exclusive {
		// An earlier cascade may have taken this variable already.
		if _, err := tx.GetVariable(ctx, vid); model.IsNotFound(err) {
			continue
		} else if err != nil {
			return model.Collection{}, err
		}
		if err := e.DeleteVariable(ctx, tx, vid, TriggerOwningCollection); err != nil {
			return model.Collection{}, err
		}
	}
	remaining, err := tx.CollectionVariableIDs(ctx, c.ID)
	if err != nil {
		return model.Collection{}, err
	}
	for _, vid := range remaining {
		if err := tx.RemoveCollectionVariable(ctx, c.ID, vid); err != nil {
			return model.Collection{}, err
		}
	}
	return c, nil
}

// DeleteLocation deletes a location holding no data.
func (e *Engine) DeleteLocation(ctx context.Context, tx *store.Tx, name string) error {
	loc, err := tx.GetLocation(ctx, name)
	if err != nil {
		return err
	}
	if loc.Volume != 0 {
		return model.InUse("delete location", "location", name, "volume is %d bytes", loc.Volume)
	}
	if err := tx.DeleteLocationRow(ctx, loc.ID); err != nil {
		return err
	}
	e.deleted(tx, "location", loc.ID, TriggerSelf)
	return nil
}
