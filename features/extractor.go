package features

import "github.com/pkg/errors"

// Extractor applies a list of templates to a context of atoms.
type Extractor struct {
	templates []Template
	tables    []int32
}

// NewExtractor creates an extractor. tables[i] is the embedding table fed by templates[i].
func NewExtractor(templates []Template, tables []int) (*Extractor, error) {
	if len(templates) != len(tables) {
		return nil, errors.Errorf("%d templates but %d tables", len(templates), len(tables))
	}
	retVal := &Extractor{
		templates: make([]Template, len(templates)),
		tables:    make([]int32, len(tables)),
	}
	copy(retVal.templates, templates)
	for i, t := range tables {
		if t < 0 {
			return nil, errors.Errorf("template %d feeds a negative table %d", i, t)
		}
		retVal.tables[i] = int32(t)
	}
	return retVal, nil
}

// Len returns the number of templates.
func (x *Extractor) Len() int { return len(x.templates) }

// Extract appends one feature per template to out and returns it.
// Templates whose atoms are all zero are skipped.
func (x *Extractor) Extract(context []uint64, out []Feature) []Feature {
	for i, t := range x.templates {
		r := t.Resolve(context)
		if r.IsZero() {
			continue
		}
		out = append(out, Feature{I: x.tables[i], Key: r.Key(), Value: 1})
	}
	return out
}
