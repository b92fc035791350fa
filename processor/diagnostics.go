package processor

import (
	"fmt"
	"log"
)

// Diagnostic describes a non-fatal, per-record failure.
type Diagnostic struct {
	Index  int         `json:"index"`
	Field  string      `json:"field"`
	Step   string      `json:"step"`
	Value  interface{} `json:"value"`
	Reason string      `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("record %d: %s(%s) value=%v: %s", d.Index, d.Step, d.Field, d.Value, d.Reason)
}

// Diagnostics collects per-record failures for one run.
type Diagnostics struct {
	entries []Diagnostic
	quiet   bool
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// SetQuiet disables logging of each new entry.
func (d *Diagnostics) SetQuiet(quiet bool) {
	d.quiet = quiet
}

// Add records a failure and logs it.
func (d *Diagnostics) Add(index int, step, field string, value Value, reason string) {
	entry := Diagnostic{
		Index:  index,
		Field:  field,
		Step:   step,
		Value:  value.Interface(),
		Reason: reason,
	}
	d.entries = append(d.entries, entry)
	if !d.quiet {
		log.Printf("TransformFlights: %s", entry)
	}
}

func (d *Diagnostics) Entries() []Diagnostic {
	out := make([]Diagnostic, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d *Diagnostics) Len() int { return len(d.entries) }

// ForField returns the entries recorded against a single field.
func (d *Diagnostics) ForField(field string) []Diagnostic {
	var out []Diagnostic
	for _, e := range d.entries {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}
