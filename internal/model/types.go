package model

import (
	"fmt"
	"strings"
)

// FileType classifies a catalogued file.
type FileType string

const (
	FileAggregate       FileType = "aggregate"
	FileAggregateAtomic FileType = "aggregate_atomic"
	FileAggregateQuark  FileType = "aggregate_quark"
	FileStandalone      FileType = "standalone"
	FileFragment        FileType = "fragment"
)

// ValidFileTypes lists the accepted file types.
var ValidFileTypes = map[FileType]bool{
	FileAggregate:       true,
	FileAggregateAtomic: true,
	FileAggregateQuark:  true,
	FileStandalone:      true,
	FileFragment:        true,
}

// ParseFileType converts a user supplied string, case-insensitively.
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.ToLower(strings.TrimSpace(s)))
	if ft == "" {
		return FileStandalone, nil
	}
	if !ValidFileTypes[ft] {
		return "", fmt.Errorf("unknown file type %q", s)
	}
	return ft, nil
}

// IsAggregate reports whether files of this type may own manifests.
func (t FileType) IsAggregate() bool {
	return t == FileAggregate || t == FileAggregateAtomic || t == FileAggregateQuark
}

// Location is a storage volume holding physical file copies.
// Volume is the sum of the sizes of the files attached to it.
type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Volume int64  `json:"volume"`
}

// File is a catalogued file.
type File struct {
	ID             int64    `json:"id"`
	UUID           string   `json:"uuid"`
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	Size           int64    `json:"size"`
	Type           FileType `json:"type"`
	Checksum       string   `json:"checksum,omitempty"`
	ChecksumMethod string   `json:"checksum_method,omitempty"`
	Format         string   `json:"format,omitempty"`
}

// Bounds holds one [start, end] pair per row.
type Bounds [][2]float64

// Outer returns the first start and the last end.
// The caller must ensure Bounds is non-empty.
func (b Bounds) Outer() (float64, float64) {
	return b[0][0], b[len(b)-1][1]
}

// Manifest lists the fragments composing an aggregation file.
type Manifest struct {
	ID         int64  `json:"id"`
	UUID       string `json:"uuid"`
	CFAFileID  int64  `json:"cfa_file_id"`
	Key        string `json:"key"`
	Bounds     Bounds `json:"bounds,omitempty"`
	Units      string `json:"units,omitempty"`
	Calendar   string `json:"calendar,omitempty"`
	ParentUUID string `json:"parent_uuid,omitempty"`
	IsQuark    bool   `json:"is_quark"`
	Fragments  []File `json:"fragments,omitempty"`
}

// RootUUID returns the UUID of the atomic manifest this one derives from.
func (m *Manifest) RootUUID() string {
	if m.IsQuark && m.ParentUUID != "" {
		return m.ParentUUID
	}
	return m.UUID
}

// TimeDomain describes the temporal sampling of a variable.
type TimeDomain struct {
	ID             int64   `json:"id"`
	Interval       float64 `json:"interval"`
	IntervalUnits  string  `json:"interval_units,omitempty"`
	IntervalOffset string  `json:"interval_offset,omitempty"`
	Calendar       string  `json:"calendar,omitempty"`
	Units          string  `json:"units,omitempty"`
	Starting       float64 `json:"starting"`
	Ending         float64 `json:"ending"`
}

// BBox is a lon/lat bounding box.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// SpatialDomain describes the horizontal grid of a variable.
type SpatialDomain struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name,omitempty"`
	Region            string   `json:"region,omitempty"`
	NominalResolution string   `json:"nominal_resolution,omitempty"`
	Size              int64    `json:"size"`
	Coordinates       []string `json:"coordinates,omitempty"`
	BBox              *BBox    `json:"bbox,omitempty"`
}

// CellMethod is one (axis, method, qualifier, interval) tuple.
type CellMethod struct {
	Axis      string `json:"axis" yaml:"axis"`
	Method    string `json:"method" yaml:"method"`
	Qualifier string `json:"qualifier,omitempty" yaml:"qualifier"`
	Interval  string `json:"interval,omitempty" yaml:"interval"`
}

// Canonical returns the registry member string for the cell method.
func (c CellMethod) Canonical() string {
	return strings.Join([]string{c.Axis, c.Method, c.Qualifier, c.Interval}, "\x1e")
}

// String renders the method the way it appears in a cell_methods attribute.
func (c CellMethod) String() string {
	s := c.Axis + ": " + c.Method
	if c.Qualifier != "" {
		s += " " + c.Qualifier
	}
	if c.Interval != "" {
		s += " (interval: " + c.Interval + ")"
	}
	return s
}

// CellMethodSet is an immutable, hash-keyed set of cell methods.
type CellMethodSet struct {
	ID      int64        `json:"id"`
	Key     string       `json:"key"`
	Methods []CellMethod `json:"methods"`
}

// Property is one identity-bearing key/value pair.
type Property struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Canonical returns the registry member string for the property.
func (p Property) Canonical() (string, error) {
	v, err := MarshalCanonical(p.Value)
	if err != nil {
		return "", fmt.Errorf("property %q: %w", p.Key, err)
	}
	k, err := MarshalCanonical(p.Key)
	if err != nil {
		return "", fmt.Errorf("property %q: %w", p.Key, err)
	}
	return string(k) + "=" + string(v), nil
}

// PropertySet is an immutable, hash-keyed set of identity properties.
type PropertySet struct {
	ID         int64      `json:"id"`
	Key        string     `json:"key"`
	Properties []Property `json:"properties"`
}

// Get returns the value stored under key.
func (ps *PropertySet) Get(key string) (any, bool) {
	for _, p := range ps.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Variable is a logical field held in a file.
type Variable struct {
	ID              int64          `json:"id"`
	UUID            string         `json:"uuid"`
	Proxied         map[string]any `json:"_proxied"`
	PropertySetID   int64          `json:"property_set_id"`
	SpatialDomainID *int64         `json:"spatial_domain_id,omitempty"`
	TimeDomainID    *int64         `json:"time_domain_id,omitempty"`
	CellMethodSetID *int64         `json:"cell_method_set_id,omitempty"`
	InFileID        int64          `json:"in_file_id"`
	InManifestID    *int64         `json:"in_manifest_id,omitempty"`
}

// Collection groups variables.
type Collection struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// Tag labels collections.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Relationship is a directed, named predicate between two collections.
type Relationship struct {
	ID        int64  `json:"id"`
	SubjectID int64  `json:"subject_id"`
	Predicate string `json:"predicate"`
	ObjectID  int64  `json:"object_id"`
}

// IdentityKeys are the property keys stored in a PropertySet rather than
// in a variable's proxied bag.
var IdentityKeys = map[string]bool{
	"standard_name": true,
	"long_name":     true,
	"identity":      true,
	"atomic_origin": true,
	"units":         true,
	"source":        true,
	"experiment_id": true,
	"variant_label": true,
	"frequency":     true,
}

// RequiredIdentityKeys: a variable needs at least one of these.
var RequiredIdentityKeys = []string{"standard_name", "long_name", "identity"}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// SplitProperties separates identity properties from the proxied bag.
// Neither result aliases props.
func SplitProperties(props map[string]any) (identity, proxied map[string]any) {
	identity = make(map[string]any)
	proxied = make(map[string]any)
	for k, v := range props {
		if IdentityKeys[k] {
			identity[k] = v
		} else {
			proxied[k] = v
		}
	}
	return identity, proxied
}

// HasRequiredIdentity reports whether identity carries at least one of
// RequiredIdentityKeys.
func HasRequiredIdentity(identity map[string]any) bool {
	for _, k := range RequiredIdentityKeys {
		if _, ok := identity[k]; ok {
			return true
		}
	}
	return false
}
