package export

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/boomerchi/dream-go/internal/graph"
	"github.com/boomerchi/dream-go/internal/tensor"
)

// Context is the single authority for identity-based deduplication and
// ID assignment across one document. It owns the dedup tables and the
// ordered layer list; serializers only ever mutate a document through
// it.
//
// A context is single-use: create one per export session, run the
// serializers in topological order, then Finalize. It is not safe for
// concurrent use; the pipeline is specified single-threaded.
type Context struct {
	fold FoldFunc
	log  *zap.Logger

	vars      map[graph.Handle]int
	varMeta   []VariableMeta
	consts    map[graph.Handle]constEntry
	constants []Constant
	layers    []Layer

	doc *Document
}

type constEntry struct {
	id       int
	declared tensor.Shape
}

// Option configures a Context.
type Option func(*Context)

// WithFold selects the batch-norm fold strategy. The default is
// FoldLegacy.
func WithFold(f FoldFunc) Option {
	return func(c *Context) { c.fold = f }
}

// WithLogger attaches a logger for per-layer progress. The default
// discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Context) { c.log = log }
}

// NewContext creates an empty context for one export session.
func NewContext(opts ...Option) *Context {
	c := &Context{
		fold:   FoldLegacy,
		log:    zap.NewNop(),
		vars:   make(map[graph.Handle]int),
		consts: make(map[graph.Handle]constEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InternVariable returns the ID for a variable, allocating the next
// sequential ID on first sight. The same handle always resolves to the
// same ID for the life of the context; distinct handles always get
// distinct IDs, even if their tensors are numerically equal.
func (c *Context) InternVariable(v *graph.Var) (int, error) {
	if c.doc != nil {
		return 0, ErrFinalized
	}
	if v == nil || v.Handle() == graph.InvalidHandle {
		return 0, &ConfigError{Details: "variable has no identity"}
	}

	if id, ok := c.vars[v.Handle()]; ok {
		return id, nil
	}

	id := len(c.varMeta)
	c.vars[v.Handle()] = id
	c.varMeta = append(c.varMeta, VariableMeta{
		Name:  v.Name(),
		Shape: v.Shape().Clone(),
	})

	if len(c.vars) != len(c.varMeta) {
		return 0, &IdentityError{Details: "variable table out of sync with ID counter"}
	}
	return id, nil
}

// InternConstant returns the ID for a constant, deduplicating by the
// identity of the source parameter. src == graph.InvalidHandle means
// the tensor was synthesized by the exporter and always gets a fresh
// ID. A handle re-interned under a different declared shape indicates
// an exporter bug and fails with an IdentityError.
func (c *Context) InternConstant(src graph.Handle, t *tensor.Tensor, declared tensor.Shape) (int, error) {
	if c.doc != nil {
		return 0, ErrFinalized
	}

	if src != graph.InvalidHandle {
		if entry, ok := c.consts[src]; ok {
			if !entry.declared.Equal(declared) {
				return 0, &IdentityError{
					Details: fmt.Sprintf("constant %d re-interned with declared shape %v, was %v", src, declared, entry.declared),
				}
			}
			return entry.id, nil
		}
	}

	constant, err := NewConstant(t, declared)
	if err != nil {
		return 0, err
	}

	id := len(c.constants)
	c.constants = append(c.constants, constant)
	if src != graph.InvalidHandle {
		c.consts[src] = constEntry{id: id, declared: declared.Clone()}
	}
	return id, nil
}

// AddLayer appends a completed layer record to the document. Layer
// order is the call order; the context assumes the caller serializes in
// a valid topological order and does not verify it.
func (c *Context) AddLayer(l Layer) error {
	if c.doc != nil {
		return ErrFinalized
	}
	c.layers = append(c.layers, l)
	c.log.Debug("layer serialized",
		zap.String("type", l.Type),
		zap.Int("index", len(c.layers)-1),
	)
	return nil
}

// Finalize returns the accumulated document. It is idempotent and
// returns the same snapshot on every call; all further Intern and Add
// calls fail with ErrFinalized.
func (c *Context) Finalize() (*Document, error) {
	if c.doc != nil {
		return c.doc, nil
	}

	doc := &Document{
		Layers:    c.layers,
		Variables: make(map[string]VariableMeta, len(c.varMeta)),
		Constants: make(map[string]Constant, len(c.constants)),
	}
	for id, meta := range c.varMeta {
		doc.Variables[strconv.Itoa(id)] = meta
	}
	for id, constant := range c.constants {
		doc.Constants[strconv.Itoa(id)] = constant
	}

	c.doc = doc
	c.log.Info("document finalized",
		zap.Int("layers", len(doc.Layers)),
		zap.Int("variables", len(doc.Variables)),
		zap.Int("constants", len(doc.Constants)),
	)
	return doc, nil
}
