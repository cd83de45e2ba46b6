package ingest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cfstore/internal/model"
)

//go:embed schema.cue
var schemaSource string

// Document is one ingestion document. Location and Collection apply to
// every file that names none of its own.
type Document struct {
	Location   string `yaml:"location"`
	Collection string `yaml:"collection"`
	Files      []File `yaml:"files"`
}

// File is one catalogued file with the variables read from it.
type File struct {
	Name           string     `yaml:"name"`
	Path           string     `yaml:"path"`
	Size           int64      `yaml:"size"`
	Type           string     `yaml:"type"`
	Checksum       string     `yaml:"checksum"`
	ChecksumMethod string     `yaml:"checksum_method"`
	Format         string     `yaml:"format"`
	Locations      []string   `yaml:"locations"`
	Collections    []string   `yaml:"collections"`
	Variables      []Variable `yaml:"variables"`
}

// Variable is one field of a file.
type Variable struct {
	Properties    map[string]any     `yaml:"properties"`
	CellMethods   []model.CellMethod `yaml:"cell_methods"`
	SpatialDomain *SpatialDomain     `yaml:"spatial_domain"`
	TimeDomain    *TimeDomain        `yaml:"time_domain"`
	Aggregation   *Aggregation       `yaml:"aggregation"`
	Quarks        []Quark            `yaml:"quarks"`
}

// SpatialDomain mirrors model.SpatialDomain.
type SpatialDomain struct {
	Name              string      `yaml:"name"`
	Region            string      `yaml:"region"`
	NominalResolution string      `yaml:"nominal_resolution"`
	Size              int64       `yaml:"size"`
	Coordinates       []string    `yaml:"coordinates"`
	BBox              *model.BBox `yaml:"bbox"`
}

// Model converts the document form.
func (d *SpatialDomain) Model() *model.SpatialDomain {
	if d == nil {
		return nil
	}
	return &model.SpatialDomain{
		Name:              d.Name,
		Region:            d.Region,
		NominalResolution: d.NominalResolution,
		Size:              d.Size,
		Coordinates:       d.Coordinates,
		BBox:              d.BBox,
	}
}

// TimeDomain mirrors model.TimeDomain.
type TimeDomain struct {
	Interval       float64 `yaml:"interval"`
	IntervalUnits  string  `yaml:"interval_units"`
	IntervalOffset string  `yaml:"interval_offset"`
	Calendar       string  `yaml:"calendar"`
	Units          string  `yaml:"units"`
	Starting       float64 `yaml:"starting"`
	Ending         float64 `yaml:"ending"`
}

// Model converts the document form.
func (d *TimeDomain) Model() *model.TimeDomain {
	if d == nil {
		return nil
	}
	return &model.TimeDomain{
		Interval:       d.Interval,
		IntervalUnits:  d.IntervalUnits,
		IntervalOffset: d.IntervalOffset,
		Calendar:       d.Calendar,
		Units:          d.Units,
		Starting:       d.Starting,
		Ending:         d.Ending,
	}
}

// Aggregation describes the fragments behind an aggregated variable.
// Bounds holds one row per time record and Counts the number of records
// in each fragment.
type Aggregation struct {
	Fragments      []string    `yaml:"fragments"`
	TimeCoordinate string      `yaml:"time_coordinate"`
	Units          string      `yaml:"units"`
	Calendar       string      `yaml:"calendar"`
	Bounds         [][]float64 `yaml:"bounds"`
	Counts         []int       `yaml:"counts"`
}

// Quark is a time subspace to cut once the variable is catalogued.
type Quark struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// DocumentError reports a document rejected by the schema.
type DocumentError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *DocumentError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "document"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Validator checks documents against the embedded schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	schema := v.LookupPath(cue.ParsePath("#Document"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("lookup document schema: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Decode validates a YAML or JSON document and decodes it.
func (v *Validator) Decode(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if raw == nil {
		return nil, &DocumentError{Message: "document is empty"}
	}

	value := v.schema.Unify(v.ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, documentError(err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	doc, err := v.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// check covers the constraints the schema cannot express.
func (d *Document) check() error {
	for i, f := range d.Files {
		for j, v := range f.Variables {
			agg := v.Aggregation
			if agg == nil {
				if len(v.Quarks) > 0 {
					return &DocumentError{
						Path:    fmt.Sprintf("files.%d.variables.%d.quarks", i, j),
						Message: "quarks need an aggregation",
					}
				}
				continue
			}
			path := fmt.Sprintf("files.%d.variables.%d.aggregation", i, j)
			for k, row := range agg.Bounds {
				if len(row) != 2 {
					return &DocumentError{Path: fmt.Sprintf("%s.bounds.%d", path, k), Message: "bounds rows need two values"}
				}
			}
			if len(agg.Counts) > 0 && len(agg.Counts) != len(agg.Fragments) {
				return &DocumentError{
					Path:    path + ".counts",
					Message: fmt.Sprintf("%d counts for %d fragments", len(agg.Counts), len(agg.Fragments)),
				}
			}
		}
	}
	return nil
}

// documentError extracts the first CUE error with its path and position.
func documentError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &DocumentError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	de := &DocumentError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		de.Pos = positions[0]
	}
	return de
}
