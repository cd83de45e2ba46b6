package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cfstore/internal/catalog"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/quark"
)

// Failure is a file whose unit of work was rolled back.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

func failure(file string, err error) Failure {
	return Failure{File: file, Error: err.Error(), Err: err}
}

// Report summarises one Run.
type Report struct {
	Files    []catalog.IngestResult `json:"files"`
	Quarks   []quark.Result         `json:"quarks"`
	Failures []Failure              `json:"failures"`
}

// Run ingests every file of doc, one unit of work per file, then cuts the
// quarks the document asks for. Locations named by the document are created
// when missing. A failed file does not stop the others; the returned error
// joins every failure.
func Run(ctx context.Context, cat *catalog.Catalog, doc *Document, log *slog.Logger) (Report, error) {
	if log == nil {
		log = slog.Default()
	}
	report := Report{
		Files:    []catalog.IngestResult{},
		Quarks:   []quark.Result{},
		Failures: []Failure{},
	}

	if err := ensureLocations(ctx, cat, doc, log); err != nil {
		return report, err
	}

	var errs []error
	for _, f := range doc.Files {
		req, fields := doc.request(f)
		res, err := cat.IngestFile(ctx, req)
		if err != nil {
			report.Failures = append(report.Failures, failure(f.Name, err))
			errs = append(errs, err)
			continue
		}
		report.Files = append(report.Files, res)

		for i, v := range f.Variables {
			for _, q := range v.Quarks {
				qr, err := cat.MakeQuark(ctx, res.Variables[i].ID, q.Start, q.End, catalog.WithField(fields[i]))
				if err != nil {
					err = fmt.Errorf("quark %s [%v, %v]: %w", fields[i].Identity(), q.Start, q.End, err)
					report.Failures = append(report.Failures, failure(f.Name, err))
					errs = append(errs, err)
					continue
				}
				log.Debug("quark cut", "file", f.Name, "variable", qr.Variable.UUID,
					"fragments", len(qr.Manifest.Fragments), "created", qr.ManifestCreated)
				report.Quarks = append(report.Quarks, qr)
			}
		}
	}

	log.Info("document ingested", "files", len(report.Files), "quarks", len(report.Quarks), "failures", len(report.Failures))
	return report, errors.Join(errs...)
}

func ensureLocations(ctx context.Context, cat *catalog.Catalog, doc *Document, log *slog.Logger) error {
	var names []string
	if doc.Location != "" {
		names = append(names, doc.Location)
	}
	for _, f := range doc.Files {
		names = append(names, f.Locations...)
	}
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		_, err := cat.GetLocation(ctx, name)
		if !model.IsNotFound(err) {
			if err != nil {
				return err
			}
			continue
		}
		if _, err := cat.CreateLocation(ctx, name); err != nil {
			return err
		}
		log.Info("location created", "location", name)
	}
	return nil
}

// request builds the unit of work for f. fields holds the aggregation
// field of each variable, nil for variables without one.
func (d *Document) request(f File) (catalog.IngestRequest, []*AggregationField) {
	locations := f.Locations
	if len(locations) == 0 && d.Location != "" {
		locations = []string{d.Location}
	}
	collections := slices.Clone(f.Collections)
	if d.Collection != "" && !slices.Contains(collections, d.Collection) {
		collections = append(collections, d.Collection)
	}

	fileType := model.FileType(f.Type)
	fields := make([]*AggregationField, len(f.Variables))
	specs := make([]catalog.VariableSpec, len(f.Variables))
	for i, v := range f.Variables {
		specs[i] = catalog.VariableSpec{
			Properties:    v.Properties,
			CellMethods:   v.CellMethods,
			SpatialDomain: v.SpatialDomain.Model(),
			TimeDomain:    v.TimeDomain.Model(),
		}
		if v.Aggregation != nil {
			fields[i] = NewAggregationField(fieldName(f, i, v), *v.Aggregation)
			specs[i].Field = fields[i]
			if fileType == "" {
				fileType = model.FileAggregate
			}
		}
	}

	return catalog.IngestRequest{
		File: catalog.FileProps{
			Name:           f.Name,
			Path:           f.Path,
			Size:           f.Size,
			Type:           fileType,
			Checksum:       f.Checksum,
			ChecksumMethod: f.ChecksumMethod,
			Format:         f.Format,
			Locations:      locations,
		},
		Collections: collections,
		Variables:   specs,
	}, fields
}

func fieldName(f File, i int, v Variable) string {
	props := catalog.VariableProps{Properties: v.Properties}
	if label := props.Label(); label != "<unnamed>" {
		return label
	}
	return fmt.Sprintf("%s#%d", f.Name, i)
}
