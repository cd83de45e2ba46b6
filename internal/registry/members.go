package registry

import (
	"sort"

	"github.com/roach88/cfstore/internal/model"
)

// sortedMethods orders methods by their canonical form so that the stored
// member order does not depend on which caller created the set first.
func sortedMethods(methods []model.CellMethod) []model.CellMethod {
	out := make([]model.CellMethod, len(methods))
	copy(out, methods)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Canonical() < out[j].Canonical()
	})
	return out
}

// PropertiesFromMap converts an identity-property map into a property list
// ordered by key.
func PropertiesFromMap(m map[string]any) []model.Property {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	props := make([]model.Property, len(keys))
	for i, k := range keys {
		props[i] = model.Property{Key: k, Value: m[k]}
	}
	return props
}
