package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cfstore/internal/integrity"
	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/quark"
	"github.com/roach88/cfstore/internal/registry"
	"github.com/roach88/cfstore/internal/store"
)

// Config is everything the facade needs. Only Store is required.
type Config struct {
	Store *store.Store

	// HashAlgorithm keys the registries and manifests ("" means md5).
	HashAlgorithm string

	// FragmentSize reads fragment file sizes during ingestion. May be nil.
	FragmentSize manifest.SizeFunc

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// VerifyQuarks cross-checks each quark's fragment selection against the
	// field library when the caller supplies a field.
	VerifyQuarks bool
}

// Catalog is the entry point for every catalog mutation. Each exported
// method is one transaction.
type Catalog struct {
	store     *store.Store
	hasher    *model.Hasher
	registry  *registry.Registry
	integrity *integrity.Engine
	quarks    *quark.Engine
	size      manifest.SizeFunc
	log       *slog.Logger
	metrics   *metrics.Metrics
	verify    bool
}

// New creates a Catalog from cfg.
func New(cfg Config) (*Catalog, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("catalog: store is required")
	}
	h, err := model.NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		store:     cfg.Store,
		hasher:    h,
		registry:  registry.New(h),
		integrity: integrity.New(log, cfg.Metrics),
		quarks:    quark.NewEngine(h, log, cfg.Metrics),
		size:      cfg.FragmentSize,
		log:       log,
		metrics:   cfg.Metrics,
		verify:    cfg.VerifyQuarks,
	}, nil
}

// Hasher returns the hasher used for content keys.
func (c *Catalog) Hasher() *model.Hasher {
	return c.hasher
}

func (c *Catalog) inTx(ctx context.Context, fn func(*store.Tx) error) error {
	return c.store.InTx(ctx, fn)
}

// CreateLocation creates an empty location.
func (c *Catalog) CreateLocation(ctx context.Context, name string) (model.Location, error) {
	var loc model.Location
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		loc, err = tx.CreateLocation(ctx, name)
		return err
	})
	if err != nil {
		return model.Location{}, err
	}
	c.metrics.Created("location")
	return loc, nil
}

// GetLocation returns the named location.
func (c *Catalog) GetLocation(ctx context.Context, name string) (model.Location, error) {
	var loc model.Location
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		loc, err = tx.GetLocation(ctx, name)
		return err
	})
	return loc, err
}

// ListLocations returns every location ordered by name.
func (c *Catalog) ListLocations(ctx context.Context) ([]model.Location, error) {
	var locs []model.Location
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		locs, err = tx.ListLocations(ctx)
		return err
	})
	return locs, err
}

// DeleteLocation deletes a location whose volume is zero.
func (c *Catalog) DeleteLocation(ctx context.Context, name string) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		return c.integrity.DeleteLocation(ctx, tx, name)
	})
}

// VerifyVolumes compares every location's recorded volume with the sizes
// of its attached files and publishes the recorded volumes as metrics.
func (c *Catalog) VerifyVolumes(ctx context.Context) ([]integrity.VolumeCheck, error) {
	var checks []integrity.VolumeCheck
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		checks, err = integrity.VerifyVolumes(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, chk := range checks {
		c.metrics.SetLocationVolume(chk.Location, chk.Recorded)
		if !chk.OK() {
			c.log.Warn("location volume drift",
				"location", chk.Location, "recorded", chk.Recorded, "actual", chk.Actual)
		}
	}
	return checks, nil
}
