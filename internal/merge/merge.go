// Package merge combines partial metadata records into one. Records are merged
// through their JSON form: objects merge key by key, arrays merge as sets and
// any other non-null overlay value replaces the base value.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/modernizer/internal/models"
)

// Source identifies which extraction produced a partial record.
type Source int

const (
	SourceCommonFiles Source = iota
	SourceDescriptor
	SourceJava
	SourceCIScript
	SourceFinalized
)

var sourceNames = map[Source]string{
	SourceCommonFiles: "common-files",
	SourceDescriptor:  "descriptor",
	SourceJava:        "source",
	SourceCIScript:    "ci-script",
	SourceFinalized:   "finalized",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Precedence is the fixed fold order; later sources win on scalar conflicts.
func Precedence() []Source {
	return []Source{SourceCommonFiles, SourceDescriptor, SourceJava, SourceCIScript, SourceFinalized}
}

// MergeValues merges two JSON-decoded values. A nil overlay keeps base. Arrays
// are unioned by canonical JSON encoding, keeping base order first. Neither
// argument is modified.
func MergeValues(base, overlay any) any {
	if overlay == nil {
		return clone(base)
	}
	if base == nil {
		return clone(overlay)
	}
	switch o := overlay.(type) {
	case map[string]any:
		b, ok := base.(map[string]any)
		if !ok {
			return clone(o)
		}
		out := make(map[string]any, len(b)+len(o))
		for k, v := range b {
			out[k] = clone(v)
		}
		for k, v := range o {
			out[k] = MergeValues(out[k], v)
		}
		return out
	case []any:
		b, ok := base.([]any)
		if !ok {
			return clone(o)
		}
		return union(b, o)
	default:
		return o
	}
}

func union(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]any{a, b} {
		for _, v := range list {
			key := canonical(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, clone(v))
		}
	}
	return out
}

// canonical encodes v with sorted object keys, which encoding/json guarantees
// for maps.
func canonical(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(raw)
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}

// MergeJSON merges two serialized records. Empty input counts as null.
func MergeJSON(base, overlay []byte) ([]byte, error) {
	b, err := decode(base)
	if err != nil {
		return nil, fmt.Errorf("decode base: %w", err)
	}
	o, err := decode(overlay)
	if err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}
	return json.Marshal(MergeValues(b, o))
}

func decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Merge merges overlay into base and returns a new record. Either may be nil.
func Merge(base, overlay *models.Metadata) (*models.Metadata, error) {
	a, err := encode(base)
	if err != nil {
		return nil, err
	}
	b, err := encode(overlay)
	if err != nil {
		return nil, err
	}
	raw, err := MergeJSON(a, b)
	if err != nil {
		return nil, err
	}
	out := models.NewMetadata()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode merged metadata: %w", err)
	}
	return out, nil
}

func encode(m *models.Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return raw, nil
}

// MergeAll folds records left to right.
func MergeAll(records ...*models.Metadata) (*models.Metadata, error) {
	out := models.NewMetadata()
	for _, r := range records {
		var err error
		if out, err = Merge(out, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MergeOrdered folds the partial records in Precedence order, whatever order
// they were produced in. Missing sources are skipped.
func MergeOrdered(parts map[Source]*models.Metadata) (*models.Metadata, error) {
	ordered := make([]*models.Metadata, 0, len(parts))
	for _, s := range Precedence() {
		if m, ok := parts[s]; ok && m != nil {
			ordered = append(ordered, m)
		}
	}
	return MergeAll(ordered...)
}
