package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// VariableSpec is one parsed variable of an ingested file. Field is set
// for aggregated variables; their manifest is built from it.
type VariableSpec struct {
	Properties    map[string]any
	CellMethods   []model.CellMethod
	SpatialDomain *model.SpatialDomain
	TimeDomain    *model.TimeDomain
	Field         manifest.Field
}

// IngestRequest is one file's worth of catalogue entries.
type IngestRequest struct {
	File        FileProps
	Collections []string
	Variables   []VariableSpec
}

// IngestResult reports what one IngestFile call wrote or reused.
type IngestResult struct {
	File      model.File       `json:"file"`
	Manifests []model.Manifest `json:"manifests"`
	Variables []model.Variable `json:"variables"`
	Created   []JournalEntry   `json:"created"`
}

// JournalEntry records one entity created by a unit of work.
type JournalEntry struct {
	Step   int    `json:"step"`
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
	Label  string `json:"label"`
}

// UnitOfWorkError reports a rolled back ingestion. Step and Payload
// identify the record that failed; Undone lists the entities that had been
// created before it, most recent first.
type UnitOfWorkError struct {
	File    string
	Step    int
	Payload string
	Undone  []JournalEntry
	Err     error
}

func (e *UnitOfWorkError) Error() string {
	return fmt.Sprintf("ingest %s: step %d (%s) failed, %d created entities rolled back: %v",
		e.File, e.Step, e.Payload, len(e.Undone), e.Err)
}

func (e *UnitOfWorkError) Unwrap() error {
	return e.Err
}

// unitOfWork tracks the current step and the journal of one ingestion.
type unitOfWork struct {
	step    int
	payload string
	journal []JournalEntry
}

func (u *unitOfWork) begin(format string, args ...any) {
	u.step++
	u.payload = fmt.Sprintf(format, args...)
}

func (u *unitOfWork) record(entity string, id int64, label string) {
	u.journal = append(u.journal, JournalEntry{Step: u.step, Entity: entity, ID: id, Label: label})
}

// IngestFile catalogues one file with its manifests and variables, and
// adds the variables to the requested collections, creating collections
// that do not exist. Everything happens in one transaction: on failure
// nothing is left behind and a *UnitOfWorkError is returned.
func (c *Catalog) IngestFile(ctx context.Context, req IngestRequest) (IngestResult, error) {
	started := time.Now()
	uow := &unitOfWork{}

	var res IngestResult
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		res, err = c.ingest(ctx, tx, uow, req)
		return err
	})
	if err != nil {
		return IngestResult{}, c.rollback(req.File.Name, uow, err)
	}

	for _, e := range uow.journal {
		c.metrics.Created(e.Entity)
	}
	c.metrics.ObserveIngest(time.Since(started))
	res.Created = uow.journal
	c.log.Info("file ingested",
		"file", res.File.Name,
		"manifests", len(res.Manifests),
		"variables", len(res.Variables),
		"created", len(uow.journal),
	)
	return res, nil
}

func (c *Catalog) rollback(file string, uow *unitOfWork, err error) error {
	undone := make([]JournalEntry, 0, len(uow.journal))
	for i := len(uow.journal) - 1; i >= 0; i-- {
		e := uow.journal[i]
		undone = append(undone, e)
		c.log.Warn("rolled back", "file", file, "step", e.Step, "entity", e.Entity, "id", e.ID, "label", e.Label)
	}
	c.metrics.Rollback()
	c.log.Error("ingest failed", "file", file, "step", uow.step, "payload", uow.payload, "error", err)
	return &UnitOfWorkError{File: file, Step: uow.step, Payload: uow.payload, Undone: undone, Err: err}
}

func (c *Catalog) ingest(ctx context.Context, tx *store.Tx, uow *unitOfWork, req IngestRequest) (IngestResult, error) {
	var res IngestResult

	uow.begin("file %s", req.File.Name)
	f, err := insertFile(ctx, tx, req.File)
	if err != nil {
		return res, err
	}
	uow.record("file", f.ID, f.Name)
	res.File = f

	for _, name := range req.File.Locations {
		uow.begin("location %s", name)
		if err := attach(ctx, tx, f.ID, name); err != nil {
			return res, err
		}
	}

	builder := manifest.NewBuilder(c.hasher, c.size)
	manifests := make(map[string]model.Manifest)
	for _, spec := range req.Variables {
		props := VariableProps{
			Properties:    spec.Properties,
			CellMethods:   spec.CellMethods,
			SpatialDomain: spec.SpatialDomain,
			TimeDomain:    spec.TimeDomain,
			FileID:        f.ID,
		}

		if spec.Field != nil {
			uow.begin("manifest of %s", spec.Field.Identity())
			desc, _, err := builder.Add(spec.Field)
			if err != nil {
				return res, err
			}
			m, ok := manifests[desc.Key]
			if !ok {
				var created bool
				if m, created, err = manifest.Persist(ctx, tx, f, desc); err != nil {
					return res, err
				}
				if created {
					uow.record("manifest", m.ID, m.UUID)
				}
				manifests[desc.Key] = m
				res.Manifests = append(res.Manifests, m)
			}
			props.ManifestID = model.Int64Ptr(m.ID)
			if props.TimeDomain == nil && m.Bounds != nil {
				props.TimeDomain = outerTimeDomain(m)
			}
		}

		uow.begin("variable %s", props.Label())
		candidate, err := c.resolveVariable(ctx, tx, props)
		if err != nil {
			return res, err
		}
		v, created, err := tx.GetOrCreateVariable(ctx, candidate)
		if err != nil {
			return res, err
		}
		if created {
			uow.record("variable", v.ID, props.Label())
		}
		res.Variables = append(res.Variables, v)
	}

	for _, name := range req.Collections {
		uow.begin("collection %s", name)
		coll, err := tx.GetCollection(ctx, name)
		if model.IsNotFound(err) {
			if coll, err = createCollection(ctx, tx, CollectionProps{Name: name}); err == nil {
				uow.record("collection", coll.ID, name)
			}
		}
		if err != nil {
			return res, err
		}
		for _, v := range res.Variables {
			if _, err := tx.AddCollectionVariable(ctx, coll.ID, v.ID); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// outerTimeDomain is the time domain implied by a manifest's bounds when
// the variable does not declare one.
func outerTimeDomain(m model.Manifest) *model.TimeDomain {
	start, end := m.Bounds.Outer()
	return &model.TimeDomain{
		Units:    m.Units,
		Calendar: m.Calendar,
		Starting: start,
		Ending:   end,
	}
}
