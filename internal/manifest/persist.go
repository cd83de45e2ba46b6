package manifest

import (
	"context"

	"github.com/roach88/cfstore/internal/integrity"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// Persist writes desc as a manifest owned by cfaFile. Fragment files are
// created as needed, reusing those already listed by the file's other
// manifests, and attached to every location holding cfaFile.
//
// If cfaFile already owns a manifest with desc.Key it is returned with
// created=false and nothing is written.
func Persist(ctx context.Context, tx *store.Tx, cfaFile model.File, desc *Description) (model.Manifest, bool, error) {
	const op = "persist manifest"

	if !cfaFile.Type.IsAggregate() {
		return model.Manifest{}, false, model.Invariant(op, "file %s of type %s cannot own manifests",
			cfaFile.Name, cfaFile.Type)
	}
	if len(desc.Fragments) == 0 {
		return model.Manifest{}, false, model.Invariant(op, "manifest %s has no fragments", desc.Key)
	}
	if desc.Bounds != nil && len(desc.Bounds) != len(desc.Fragments) {
		return model.Manifest{}, false, model.Invariant(op, "manifest %s has %d bounds rows for %d fragments",
			desc.Key, len(desc.Bounds), len(desc.Fragments))
	}

	existing, err := tx.FindManifest(ctx, cfaFile.ID, desc.Key)
	if err == nil {
		return existing, false, nil
	}
	if !model.IsNotFound(err) {
		return model.Manifest{}, false, err
	}

	locs, err := tx.FileLocations(ctx, cfaFile.ID)
	if err != nil {
		return model.Manifest{}, false, err
	}

	fragmentIDs := make([]int64, len(desc.Fragments))
	for i, stub := range desc.Fragments {
		f, err := tx.FindOwnedFragment(ctx, cfaFile.ID, stub.Path, stub.Name)
		if model.IsNotFound(err) {
			f, err = createFragment(ctx, tx, stub, locs)
		}
		if err != nil {
			return model.Manifest{}, false, err
		}
		fragmentIDs[i] = f.ID
	}

	return tx.InsertManifest(ctx, model.Manifest{
		CFAFileID: cfaFile.ID,
		Key:       desc.Key,
		Bounds:    desc.Bounds,
		Units:     desc.Units,
		Calendar:  desc.Calendar,
	}, fragmentIDs)
}

func createFragment(ctx context.Context, tx *store.Tx, stub FragmentStub, locs []model.Location) (model.File, error) {
	f, err := tx.InsertFile(ctx, model.File{
		Name: stub.Name,
		Path: stub.Path,
		Size: stub.Size,
		Type: model.FileFragment,
	})
	if err != nil {
		return model.File{}, err
	}
	for _, loc := range locs {
		if _, err := integrity.AttachFile(ctx, tx, f.ID, loc.ID); err != nil {
			return model.File{}, err
		}
	}
	return f, nil
}
