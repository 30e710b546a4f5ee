// Package escritos runs one submission from type selection to written files.
package escritos

import (
	"context"
	"errors"
	"sync"
	"time"

	"escritos/internal/artifacts"
	"escritos/internal/collector"
	"escritos/internal/docx"
	"escritos/internal/output"
	"escritos/internal/schema"
	u "escritos/internal/utils"
)

// State is a step of the submission lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateValidating State = "validating"
	StateFailed     State = "failed"
	StateRendering  State = "rendering"
	StateWriting    State = "writing"
	StateDone       State = "done"
)

// Submission is one request to generate an escrito.
type Submission struct {
	Type   string
	Source collector.Source
}

// Result is what a Done submission exposes.
type Result struct {
	output.Result
	Type        string
	Values      collector.Values
	GeneratedAt time.Time
	// DocumentID and PDFID are download ids; empty without an artifact store.
	DocumentID string
	PDFID      string
}

// Generator wires the registry, renderer and writer together.
type Generator struct {
	Registry  *schema.Registry
	Renderer  *docx.Renderer
	Writer    *output.Writer
	Artifacts *artifacts.Store
	Now       func() time.Time

	mu sync.Mutex
}

// New returns a Generator with the real clock.
func New(reg *schema.Registry, r *docx.Renderer, w *output.Writer, store *artifacts.Store) *Generator {
	return &Generator{
		Registry:  reg,
		Renderer:  r,
		Writer:    w,
		Artifacts: store,
		Now:       time.Now,
	}
}

// Generate runs sub to completion. Submissions are serialized. On a
// *collector.MissingFieldsError nothing has been rendered or written and the
// caller may retry straight away.
func (g *Generator) Generate(ctx context.Context, sub Submission) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	dt, err := g.Registry.Lookup(sub.Type)
	if err != nil {
		return nil, err
	}

	g.step(sub.Type, StateCollecting)
	values, err := collector.Collect(ctx, dt, sub.Source)
	if err != nil {
		return nil, g.fail(sub.Type, err)
	}

	g.step(sub.Type, StateValidating)
	if err := collector.Validate(dt, values); err != nil {
		return nil, g.fail(sub.Type, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, g.fail(sub.Type, err)
	}

	now := g.now()
	g.step(sub.Type, StateRendering)
	rendered, err := g.Renderer.Render(dt, docx.BuildContext(values, now))
	if err != nil {
		return nil, g.fail(sub.Type, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, g.fail(sub.Type, err)
	}

	g.step(sub.Type, StateWriting)
	written, err := g.Writer.Write(dt, values, rendered, now)
	if err != nil {
		return nil, g.fail(sub.Type, err)
	}

	res := &Result{
		Result:      written,
		Type:        dt.Name,
		Values:      values,
		GeneratedAt: now,
	}
	// Both files are on disk at this point; a store outage only costs the
	// download links.
	if g.Artifacts != nil {
		docID, docErr := g.Artifacts.Register(ctx, artifacts.FromArtifact(written.Document))
		pdfID, pdfErr := g.Artifacts.Register(ctx, artifacts.FromArtifact(written.PDF))
		if err := errors.Join(docErr, pdfErr); err != nil {
			u.Warn("Could not register download links", "type", dt.Name, "folder", written.Folder, "error", err)
		} else {
			res.DocumentID, res.PDFID = docID, pdfID
		}
	}

	u.Info("Escrito generated",
		"type", dt.Name,
		"identifier", written.Identifier,
		"folder", written.Folder,
		"state", StateDone,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *Generator) step(docType string, s State) {
	u.Debug("Submission step", "type", docType, "state", s)
}

func (g *Generator) fail(docType string, err error) error {
	u.Warn("Submission failed", "type", docType, "state", StateFailed, "error", err)
	return err
}
