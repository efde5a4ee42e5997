// Package jsondiff computes leaf-level differences between two JSON values.
// It is schema-agnostic: inputs are whatever encoding/json produces
// (map[string]any, []any, scalars), and values are compared by a canonical
// serialized form so that e.g. the number 1 and the string "1" stay distinct.
package jsondiff

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RootPath is the path assigned to the top-level value.
const RootPath = "$"

// Missing is the canonical rendering of a path absent on one side.
const Missing = "undefined"

// Change records one leaf path whose canonical representation differs
// between the two inputs.
type Change struct {
	Path string `json:"path"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Flatten reduces a decoded JSON value to a map of leaf path → canonical
// representation. Empty containers flatten to the literals "{}" and "[]",
// null to "null", and every other scalar to its JSON-serialized form.
func Flatten(v any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, RootPath, v)
	return out
}

func flattenInto(out map[string]string, path string, v any) {
	switch t := v.(type) {
	case nil:
		out[path] = "null"
	case map[string]any:
		if len(t) == 0 {
			out[path] = "{}"
			return
		}
		for k, child := range t {
			flattenInto(out, path+"."+k, child)
		}
	case []any:
		if len(t) == 0 {
			out[path] = "[]"
			return
		}
		for i, child := range t {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			// Unserializable values still need a stable representation.
			out[path] = fmt.Sprintf("%v", t)
			return
		}
		out[path] = string(b)
	}
}

// Diff returns one Change per leaf path whose canonical representation
// differs between before and after. A path present on only one side has the
// other side rendered as Missing. Output is sorted by path; callers that
// care about display order re-sort by timestamp after persistence.
func Diff(before, after any) []Change {
	b := Flatten(before)
	a := Flatten(after)

	paths := make([]string, 0, len(b)+len(a))
	seen := make(map[string]bool, len(b)+len(a))
	for p := range b {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range a {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var changes []Change
	for _, p := range paths {
		from, ok := b[p]
		if !ok {
			from = Missing
		}
		to, ok := a[p]
		if !ok {
			to = Missing
		}
		if from != to {
			changes = append(changes, Change{Path: p, From: from, To: to})
		}
	}
	return changes
}
