package processor

import (
	"bytes"
	"encoding/json"
)

// Record is an ordered mapping from field name to Value. Field order is
// the order in which keys were first set.
type Record struct {
	keys   []string
	values map[string]Value
}

// Sequence is the ordered list of records owned by one run.
type Sequence []*Record

func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Get returns the value for key and whether the key is present.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value for key, or Null when absent.
func (r *Record) Value(key string) Value {
	if v, ok := r.values[key]; ok {
		return v
	}
	return Null
}

func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Set stores v under key, appending the key if it is new.
func (r *Record) Set(key string, v Value) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value at oldKey to newKey. newKey takes the position
// of oldKey; an existing newKey entry is replaced. Returns false if oldKey
// is absent.
func (r *Record) Rename(oldKey, newKey string) bool {
	v, ok := r.values[oldKey]
	if !ok {
		return false
	}
	if oldKey == newKey {
		return true
	}
	r.Delete(newKey)
	for i, k := range r.keys {
		if k == oldKey {
			r.keys[i] = newKey
			break
		}
	}
	delete(r.values, oldKey)
	r.values[newKey] = v
	return true
}

// Keys returns a copy of the field names in order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int { return len(r.keys) }

// MarshalJSON writes the record as a JSON object preserving field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
