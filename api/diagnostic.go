package api

import (
	"strconv"
	"strings"
	"sync"
)

// Diagnostic is one message emitted by a build: a template with positional
// placeholders {0}, {1}, ... and the arguments substituted into them.
type Diagnostic struct {
	Template string   `json:"template" hcl:"template"`
	Args     []string `json:"args,omitempty" hcl:"args,optional"`
}

// NewDiagnostic builds a Diagnostic from a template and its arguments.
func NewDiagnostic(template string, args ...string) Diagnostic {
	return Diagnostic{Template: template, Args: args}
}

// String substitutes the arguments into the template. Placeholders without
// an argument are left as they are.
func (d Diagnostic) String() string {
	if len(d.Args) == 0 {
		return d.Template
	}
	pairs := make([]string, 0, 2*len(d.Args))
	for i, a := range d.Args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", a)
	}
	return strings.NewReplacer(pairs...).Replace(d.Template)
}

// Equal reports whether two diagnostics have the same template and args.
func (d Diagnostic) Equal(o Diagnostic) bool {
	if d.Template != o.Template || len(d.Args) != len(o.Args) {
		return false
	}
	for i := range d.Args {
		if d.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// Sink receives diagnostics as a build produces them.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is a Sink that keeps diagnostics in arrival order.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns a copy of everything reported so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}
