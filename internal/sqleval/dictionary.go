package sqleval

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// dictionary maps the keys stored in SQLite back to values.
//
// SQL statements only copy keys between tables, so every key in the
// database was added here first: by loading facts, by a head constant or
// by a guard output.
type dictionary struct {
	values  map[string]ir.Value
	pending []ir.Value // added but not yet fed to the guards
}

func newDictionary() *dictionary {
	return &dictionary{values: make(map[string]ir.Value)}
}

// add records v and returns its key.
func (d *dictionary) add(v ir.Value) string {
	k := v.Key()
	if _, ok := d.values[k]; !ok {
		d.values[k] = v
		d.pending = append(d.pending, v)
	}
	return k
}

// take returns the values added since the previous call.
func (d *dictionary) take() []ir.Value {
	p := d.pending
	d.pending = nil
	return p
}

func (d *dictionary) decode(keys []string) (ir.Row, error) {
	row := make(ir.Row, len(keys))
	for i, k := range keys {
		v, ok := d.values[k]
		if !ok {
			return nil, fmt.Errorf("unknown value key %q", k)
		}
		row[i] = v
	}
	return row, nil
}
