package catalog

import (
	"context"

	"github.com/roach88/cfstore/internal/integrity"
	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// FileProps describes a file to catalogue. Locations names the locations
// already holding a copy; each must exist.
type FileProps struct {
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	Size           int64          `json:"size"`
	Type           model.FileType `json:"type"`
	Checksum       string         `json:"checksum,omitempty"`
	ChecksumMethod string         `json:"checksum_method,omitempty"`
	Format         string         `json:"format,omitempty"`
	Locations      []string       `json:"locations,omitempty"`
}

// CreateFile catalogues a file and attaches it to its locations.
func (c *Catalog) CreateFile(ctx context.Context, props FileProps) (model.File, error) {
	var f model.File
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		if f, err = insertFile(ctx, tx, props); err != nil {
			return err
		}
		for _, name := range props.Locations {
			if err := attach(ctx, tx, f.ID, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.File{}, err
	}
	c.metrics.Created("file")
	return f, nil
}

func insertFile(ctx context.Context, tx *store.Tx, props FileProps) (model.File, error) {
	ft, err := model.ParseFileType(string(props.Type))
	if err != nil {
		return model.File{}, model.Invariant("create file", "file %s: %v", props.Name, err)
	}
	if props.Size < 0 {
		return model.File{}, model.Invariant("create file", "file %s has negative size %d", props.Name, props.Size)
	}
	return tx.InsertFile(ctx, model.File{
		Name:           props.Name,
		Path:           props.Path,
		Size:           props.Size,
		Type:           ft,
		Checksum:       props.Checksum,
		ChecksumMethod: props.ChecksumMethod,
		Format:         props.Format,
	})
}

func attach(ctx context.Context, tx *store.Tx, fileID int64, location string) error {
	loc, err := tx.GetLocation(ctx, location)
	if err != nil {
		return err
	}
	_, err = integrity.AttachFile(ctx, tx, fileID, loc.ID)
	return err
}

// AttachFile records a copy of the file at the named location. Returns
// false if it was already attached there.
func (c *Catalog) AttachFile(ctx context.Context, fileID int64, location string) (bool, error) {
	var attached bool
	err := c.inTx(ctx, func(tx *store.Tx) error {
		loc, err := tx.GetLocation(ctx, location)
		if err != nil {
			return err
		}
		attached, err = integrity.AttachFile(ctx, tx, fileID, loc.ID)
		return err
	})
	return attached, err
}

// DetachFile removes the file's copy at the named location. Returns false
// if it was not attached there.
func (c *Catalog) DetachFile(ctx context.Context, fileID int64, location string) (bool, error) {
	var detached bool
	err := c.inTx(ctx, func(tx *store.Tx) error {
		loc, err := tx.GetLocation(ctx, location)
		if err != nil {
			return err
		}
		detached, err = integrity.DetachFile(ctx, tx, fileID, loc.ID)
		return err
	})
	return detached, err
}

// GetFile returns a file by id.
func (c *Catalog) GetFile(ctx context.Context, id int64) (model.File, error) {
	var f model.File
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		f, err = tx.GetFile(ctx, id)
		return err
	})
	return f, err
}

// FileLocations returns the locations holding the file.
func (c *Catalog) FileLocations(ctx context.Context, id int64) ([]model.Location, error) {
	var locs []model.Location
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		locs, err = tx.FileLocations(ctx, id)
		return err
	})
	return locs, err
}

// DeleteFile deletes a file with its variables and manifests, refunding
// its size to every location holding it.
func (c *Catalog) DeleteFile(ctx context.Context, id int64) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.DeleteFile(ctx, tx, id, integrity.TriggerSelf)
	})
}

// ManifestProps describes a manifest given directly rather than derived
// from a field. Bounds may be nil for a boundless manifest; otherwise it
// needs one row per fragment.
type ManifestProps struct {
	FileID       int64                   `json:"file_id"`
	Fragments    []manifest.FragmentStub `json:"fragments"`
	Bounds       model.Bounds            `json:"bounds,omitempty"`
	Units        string                  `json:"units,omitempty"`
	Calendar     string                  `json:"calendar,omitempty"`
	BoundsSource string                  `json:"bounds_source,omitempty"`
}

// AddManifest persists a manifest for an aggregation file, reusing an
// identical one if the file already owns it.
func (c *Catalog) AddManifest(ctx context.Context, props ManifestProps) (model.Manifest, bool, error) {
	var (
		m       model.Manifest
		created bool
	)
	err := c.inTx(ctx, func(tx *store.Tx) error {
		f, err := tx.GetFile(ctx, props.FileID)
		if err != nil {
			return err
		}
		m, created, err = manifest.Persist(ctx, tx, f, c.describe(props))
		return err
	})
	if err != nil {
		return model.Manifest{}, false, err
	}
	if created {
		c.metrics.Created("manifest")
	}
	return m, created, nil
}

func (c *Catalog) describe(props ManifestProps) *manifest.Description {
	names := make([]string, len(props.Fragments))
	for i, stub := range props.Fragments {
		names[i] = stub.FullPath()
	}
	source := props.BoundsSource
	if props.Bounds == nil {
		source = ""
	}
	fragKey := manifest.FragmentKey(c.hasher, names)
	return &manifest.Description{
		Key:          manifest.Key(c.hasher, fragKey, source),
		FragmentKey:  fragKey,
		Bounds:       props.Bounds,
		Units:        props.Units,
		Calendar:     props.Calendar,
		Fragments:    props.Fragments,
		BoundsSource: source,
	}
}

// GetManifest returns a manifest with its fragments.
func (c *Catalog) GetManifest(ctx context.Context, id int64) (model.Manifest, error) {
	var m model.Manifest
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		m, err = tx.GetManifest(ctx, id)
		return err
	})
	return m, err
}

// DeleteManifest deletes a manifest no variable references, with its
// quarks and any fragment files no other manifest lists.
func (c *Catalog) DeleteManifest(ctx context.Context, id int64) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.DeleteManifest(ctx, tx, id, integrity.TriggerSelf)
	})
}
