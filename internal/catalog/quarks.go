package catalog

import (
	"context"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/quark"
	"github.com/roach88/cfstore/internal/store"
)

// QuarkOption configures one quark request.
type QuarkOption func(*quarkOptions)

type quarkOptions struct {
	field manifest.Field
}

// WithField supplies the field the quark is cut from. When the catalog is
// configured with VerifyQuarks, the selected fragments are checked against
// the field's own subspace before the quark is committed.
func WithField(f manifest.Field) QuarkOption {
	return func(o *quarkOptions) {
		o.field = f
	}
}

func (c *Catalog) verifyResult(o quarkOptions, res quark.Result, start, end float64) error {
	if !c.verify || o.field == nil {
		return nil
	}
	if err := quark.Verify(o.field, start, end, res.Manifest.Fragments); err != nil {
		c.metrics.Quark(metrics.OutcomeError)
		return err
	}
	return nil
}

// MakeQuark returns the variable restricted to [start, end], creating the
// quark variable, manifest and time domain as needed. An interval covering
// the whole manifest returns the original variable.
func (c *Catalog) MakeQuark(ctx context.Context, variableID int64, start, end float64, opts ...QuarkOption) (quark.Result, error) {
	var o quarkOptions
	for _, opt := range opts {
		opt(&o)
	}
	var res quark.Result
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		if res, err = c.quarks.QuarkVariable(ctx, tx, variableID, start, end); err != nil {
			return err
		}
		return c.verifyResult(o, res, start, end)
	})
	if err != nil {
		return quark.Result{}, err
	}
	return res, nil
}

// MakeManifestQuark is MakeQuark for a bare manifest.
func (c *Catalog) MakeManifestQuark(ctx context.Context, manifestID int64, start, end float64, opts ...QuarkOption) (quark.Result, error) {
	var o quarkOptions
	for _, opt := range opts {
		opt(&o)
	}
	var res quark.Result
	err := c.inTx(ctx, func(tx *store.Tx) error {
		var err error
		if res, err = c.quarks.QuarkManifest(ctx, tx, manifestID, start, end); err != nil {
			return err
		}
		return c.verifyResult(o, res, start, end)
	})
	if err != nil {
		return quark.Result{}, err
	}
	return res, nil
}

// SkippedQuark is a variable a bulk request left out.
type SkippedQuark struct {
	VariableID int64  `json:"variable_id"`
	Reason     string `json:"reason"`
}

// BulkQuarkResult reports a MakeQuarks call.
type BulkQuarkResult struct {
	Results []quark.Result `json:"results"`
	Skipped []SkippedQuark `json:"skipped"`
}

// MakeQuarks quarks each variable in its own transaction. Variables whose
// manifest does not cover [start, end] are skipped and reported; any other
// failure stops the batch and is returned with the results so far.
func (c *Catalog) MakeQuarks(ctx context.Context, variableIDs []int64, start, end float64) (BulkQuarkResult, error) {
	out := BulkQuarkResult{Results: []quark.Result{}, Skipped: []SkippedQuark{}}
	for _, id := range variableIDs {
		res, err := c.MakeQuark(ctx, id, start, end)
		if model.IsOutOfRange(err) {
			c.log.Info("quark skipped", "variable", id, "reason", err.Error())
			out.Skipped = append(out.Skipped, SkippedQuark{VariableID: id, Reason: err.Error()})
			continue
		}
		if err != nil {
			return out, err
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// QuarkPlan is the fragment selection a quark request would make.
type QuarkPlan struct {
	Manifest  model.Manifest  `json:"manifest"`
	Selection quark.Selection `json:"selection"`
}

// PlanQuark computes the selection for the variable's manifest without
// writing anything.
func (c *Catalog) PlanQuark(ctx context.Context, variableID int64, start, end float64) (QuarkPlan, error) {
	var plan QuarkPlan
	err := c.inTx(ctx, func(tx *store.Tx) error {
		v, err := tx.GetVariable(ctx, variableID)
		if err != nil {
			return err
		}
		if v.InManifestID == nil {
			return model.Invariant("plan quark", "variable %s is not aggregated", v.UUID)
		}
		if plan.Manifest, err = tx.GetManifest(ctx, *v.InManifestID); err != nil {
			return err
		}
		plan.Selection, err = planManifest(plan.Manifest, start, end)
		return err
	})
	return plan, err
}

// VerifyQuark checks that the fragments the planner selects from the
// manifest for [start, end] are exactly those the field library keeps.
func (c *Catalog) VerifyQuark(ctx context.Context, field manifest.Field, manifestID int64, start, end float64) error {
	return c.inTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetManifest(ctx, manifestID)
		if err != nil {
			return err
		}
		sel, err := planManifest(m, start, end)
		if err != nil {
			return err
		}
		return quark.Verify(field, start, end, m.Fragments[sel.First:sel.Last+1])
	})
}

func planManifest(m model.Manifest, start, end float64) (quark.Selection, error) {
	if m.Bounds == nil {
		return quark.Selection{}, model.Invariant("plan quark", "manifest %s has no time bounds", m.UUID)
	}
	return quark.Plan(m.Bounds, start, end)
}
