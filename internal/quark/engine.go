package quark

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// Result reports a quark request. Each creation flag is independent: a
// request may reuse the manifest but create a new variable.
type Result struct {
	Variable          model.Variable `json:"variable"`
	Manifest          model.Manifest `json:"manifest"`
	Selection         Selection      `json:"selection"`
	VariableCreated   bool           `json:"variable_created"`
	ManifestCreated   bool           `json:"manifest_created"`
	TimeDomainCreated bool           `json:"time_domain_created"`
}

// Engine creates quarks inside a caller-supplied transaction.
type Engine struct {
	hasher  *model.Hasher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an Engine. A nil logger uses slog.Default; m may be nil.
func NewEngine(h *model.Hasher, log *slog.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{hasher: h, log: log, metrics: m}
}

// Key returns the content key of the quark of root built from fragments.
// Quarks of quarks share the root, so equal selections give equal keys.
func (e *Engine) Key(rootUUID string, fragments []model.File) string {
	members := make([]string, 0, len(fragments)+1)
	members = append(members, rootUUID)
	for _, f := range fragments {
		members = append(members, f.UUID)
	}
	return e.hasher.SequenceKey(model.DomainQuark, members)
}

// QuarkManifest returns the manifest covering [start, end] of manifestID,
// creating it if needed. Result.Variable is left empty.
func (e *Engine) QuarkManifest(ctx context.Context, tx *store.Tx, manifestID int64, start, end float64) (Result, error) {
	m, err := tx.GetManifest(ctx, manifestID)
	if err != nil {
		return Result{}, err
	}
	quark, created, sel, err := e.quarkManifest(ctx, tx, m, start, end)
	if err != nil {
		e.metrics.Quark(outcome(err))
		return Result{}, err
	}
	tx.AfterCommit(func() { e.metrics.Quark(outcomeOf(sel, created)) })
	return Result{Manifest: quark, Selection: sel, ManifestCreated: created}, nil
}

// QuarkVariable returns the variable restricted to [start, end]. The
// quark variable copies every attribute of the source except its time
// domain and manifest.
func (e *Engine) QuarkVariable(ctx context.Context, tx *store.Tx, variableID int64, start, end float64) (Result, error) {
	res, err := e.quarkVariable(ctx, tx, variableID, start, end)
	if err != nil {
		e.metrics.Quark(outcome(err))
		return Result{}, err
	}
	tx.AfterCommit(func() {
		e.metrics.Quark(outcomeOf(res.Selection, res.VariableCreated || res.ManifestCreated))
	})
	return res, nil
}

func (e *Engine) quarkVariable(ctx context.Context, tx *store.Tx, variableID int64, start, end float64) (Result, error) {
	const op = "quark variable"

	v, err := tx.GetVariable(ctx, variableID)
	if err != nil {
		return Result{}, err
	}
	if v.InManifestID == nil {
		return Result{}, model.Invariant(op, "variable %s is not aggregated", v.UUID)
	}
	m, err := tx.GetManifest(ctx, *v.InManifestID)
	if err != nil {
		return Result{}, err
	}

	quark, manifestCreated, sel, err := e.quarkManifest(ctx, tx, m, start, end)
	if err != nil {
		return Result{}, err
	}
	if sel.Full {
		return Result{Variable: v, Manifest: m, Selection: sel}, nil
	}

	td, tdCreated, err := e.timeDomain(ctx, tx, v, quark, manifestCreated)
	if err != nil {
		return Result{}, err
	}

	candidate := v
	candidate.ID = 0
	candidate.UUID = ""
	candidate.TimeDomainID = &td.ID
	candidate.InManifestID = &quark.ID

	qv, varCreated, err := tx.GetOrCreateVariable(ctx, candidate)
	if err != nil {
		return Result{}, err
	}
	if varCreated {
		tx.AfterCommit(func() { e.metrics.Created("variable") })
	}

	e.log.Debug("quark resolved",
		"variable", v.UUID,
		"quark_variable", qv.UUID,
		"manifest", quark.UUID,
		"fragments", sel.Len(),
		"variable_created", varCreated,
		"manifest_created", manifestCreated,
		"time_domain_created", tdCreated,
	)

	return Result{
		Variable:          qv,
		Manifest:          quark,
		Selection:         sel,
		VariableCreated:   varCreated,
		ManifestCreated:   manifestCreated,
		TimeDomainCreated: tdCreated,
	}, nil
}

func (e *Engine) quarkManifest(ctx context.Context, tx *store.Tx, m model.Manifest, start, end float64) (model.Manifest, bool, Selection, error) {
	const op = "quark manifest"

	if m.Bounds == nil {
		return model.Manifest{}, false, Selection{}, model.Invariant(op, "manifest %s has no time bounds", m.UUID)
	}
	if len(m.Bounds) != len(m.Fragments) {
		return model.Manifest{}, false, Selection{}, model.Invariant(op,
			"manifest %s has %d bounds rows for %d fragments", m.UUID, len(m.Bounds), len(m.Fragments))
	}

	sel, err := Plan(m.Bounds, start, end)
	if err != nil {
		return model.Manifest{}, false, Selection{}, err
	}
	if sel.Full {
		return m, false, sel, nil
	}

	fragments := m.Fragments[sel.First : sel.Last+1]
	key := e.Key(m.RootUUID(), fragments)

	existing, err := tx.FindManifest(ctx, m.CFAFileID, key)
	if err == nil {
		return existing, false, sel, nil
	}
	if !model.IsNotFound(err) {
		return model.Manifest{}, false, Selection{}, err
	}

	ids := make([]int64, len(fragments))
	for i, f := range fragments {
		ids[i] = f.ID
	}
	quark, created, err := tx.InsertManifest(ctx, model.Manifest{
		CFAFileID:  m.CFAFileID,
		Key:        key,
		Bounds:     slices.Clone(m.Bounds[sel.First : sel.Last+1]),
		Units:      m.Units,
		Calendar:   m.Calendar,
		ParentUUID: m.RootUUID(),
		IsQuark:    true,
	}, ids)
	if err != nil {
		return model.Manifest{}, false, Selection{}, err
	}
	if created {
		tx.AfterCommit(func() { e.metrics.Created("manifest") })
	}
	return quark, created, sel, nil
}

// timeDomain picks the time domain for a quark variable. An existing quark
// manifest already has one through the variables referencing it; a new one
// gets the source domain narrowed to the quark's outer bounds.
func (e *Engine) timeDomain(ctx context.Context, tx *store.Tx, src model.Variable, quark model.Manifest, manifestCreated bool) (model.TimeDomain, bool, error) {
	if !manifestCreated {
		ids, err := tx.VariablesUsing(ctx, store.RefManifest, quark.ID)
		if err != nil {
			return model.TimeDomain{}, false, err
		}
		for _, id := range ids {
			v, err := tx.GetVariable(ctx, id)
			if err != nil {
				return model.TimeDomain{}, false, err
			}
			if v.TimeDomainID != nil {
				td, err := tx.GetTimeDomain(ctx, *v.TimeDomainID)
				return td, false, err
			}
		}
	}

	var td model.TimeDomain
	if src.TimeDomainID != nil {
		var err error
		if td, err = tx.GetTimeDomain(ctx, *src.TimeDomainID); err != nil {
			return model.TimeDomain{}, false, err
		}
	}
	td.ID = 0
	td.Starting, td.Ending = quark.Bounds.Outer()
	if td.Units == "" {
		td.Units = quark.Units
	}
	if td.Calendar == "" {
		td.Calendar = quark.Calendar
	}

	td, created, err := tx.GetOrCreateTimeDomain(ctx, td)
	if err != nil {
		return model.TimeDomain{}, false, err
	}
	if created {
		tx.AfterCommit(func() { e.metrics.Created("time_domain") })
	}
	return td, created, nil
}

func outcome(err error) string {
	if model.IsOutOfRange(err) {
		return metrics.OutcomeOutOfRange
	}
	return metrics.OutcomeError
}

func outcomeOf(sel Selection, created bool) string {
	switch {
	case sel.Full:
		return metrics.OutcomeFull
	case created:
		return metrics.OutcomeCreated
	default:
		return metrics.OutcomeReused
	}
}
