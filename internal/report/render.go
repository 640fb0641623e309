package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// Format selects the output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
)

// ParseFormat maps "text" or "json" to a Format. The empty string selects
// Text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", Text:
		return Text, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want %q or %q)", s, Text, JSON)
}

// maxSource bounds the width of expression source in text output.
const maxSource = 80

// Renderer writes reports about the trees of one interner.
type Renderer struct {
	w      io.Writer
	in     *intern.Interner
	format Format

	head *color.Color
	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFormat sets the output format.
//
// Default: Text
func WithFormat(f Format) Option {
	return func(r *Renderer) {
		r.format = f
	}
}

// WithColor forces colour on or off. Without it fatih/color decides from
// the terminal and NO_COLOR.
func WithColor(on bool) Option {
	return func(r *Renderer) {
		for _, c := range []*color.Color{r.head, r.ok, r.fail, r.dim} {
			if on {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// New returns a Renderer writing to w. in must be the interner the
// reported trees were built in.
func New(w io.Writer, in *intern.Interner, opts ...Option) *Renderer {
	r := &Renderer{
		w:      w,
		in:     in,
		format: Text,
		head:   color.New(color.Bold),
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Types renders a type report.
func (r *Renderer) Types(rep *analysis.TypeReport) error {
	if r.format == JSON {
		doc, err := TypeDocumentOf(r.in, rep)
		if err != nil {
			return err
		}
		return r.writeJSON(doc)
	}

	var b strings.Builder
	if err := r.title(&b, "type inference", rep.RunID, rep.Root); err != nil {
		return err
	}

	typings := newTable("EXPR", "TYPE", "SOURCE")
	for _, t := range rep.Typings {
		src, err := r.source(t.Expr)
		if err != nil {
			return err
		}
		typings.add(t.Expr.String(), t.Type.String(), src)
	}
	r.section(&b, "TypeOf", typings)

	bindings := newTable("NAME", "VALUE", "SOURCE")
	for _, bd := range rep.Bindings {
		src, err := r.source(bd.Value)
		if err != nil {
			return err
		}
		bindings.add(bd.Name.String(), bd.Value.String(), src)
	}
	r.section(&b, "Bind", bindings)

	errs := newTable("EXPR", "SOURCE")
	for _, e := range rep.Errors {
		src, err := r.source(e)
		if err != nil {
			return err
		}
		errs.add(e.String(), src)
	}
	r.section(&b, "TypeError", errs)

	if rep.OK() {
		fmt.Fprintf(&b, "%s %s, every expression typed\n", r.ok.Sprint("ok:"), plural(len(rep.Typings), "typing"))
	} else {
		fmt.Fprintf(&b, "%s %s without a type\n", r.fail.Sprint("FAIL:"), plural(len(rep.Errors), "expression"))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Linearity renders a linearity report.
func (r *Renderer) Linearity(rep *analysis.LinearityReport) error {
	if r.format == JSON {
		doc, err := LinearityDocumentOf(r.in, rep)
		if err != nil {
			return err
		}
		return r.writeJSON(doc)
	}

	var b strings.Builder
	if err := r.title(&b, "linearity", rep.RunID, rep.Root); err != nil {
		return err
	}

	origins := newTable("NAME", "PATH")
	for _, o := range rep.Origins {
		p, err := FormatPath(r.in, o.Path)
		if err != nil {
			return err
		}
		origins.add(o.Name.String(), p)
	}
	r.section(&b, "Origin", origins)

	uses := newTable("PATH", "EXPR", "SOURCE")
	if rep.Base != nil {
		for _, u := range rep.Base.Uses {
			row, err := r.pathAt(u.Path, u.Expr)
			if err != nil {
				return err
			}
			uses.add(row...)
		}
	}
	r.section(&b, "Used", uses)

	anc := newTable("ANCESTOR", "DESCENDANT", "EXPR")
	for _, a := range rep.AncestorUsed {
		p, err := FormatPath(r.in, a.Ancestor)
		if err != nil {
			return err
		}
		q, err := FormatPath(r.in, a.Descendant)
		if err != nil {
			return err
		}
		anc.add(p, q, a.Expr.String())
	}
	r.section(&b, "AncestorUsed", anc)

	dbl := newTable("PATH", "EXPR", "OTHER")
	for _, d := range rep.DoubleUse {
		p, err := FormatPath(r.in, d.Path)
		if err != nil {
			return err
		}
		dbl.add(p, d.Expr.String(), d.Other.String())
	}
	r.section(&b, "DoubleUse", dbl)

	viol := newTable("PATH", "EXPR", "SOURCE")
	for _, v := range rep.Violations {
		row, err := r.pathAt(v.Path, v.Expr)
		if err != nil {
			return err
		}
		viol.add(row...)
	}
	r.section(&b, "Violation", viol)

	if rep.OK() {
		fmt.Fprintf(&b, "%s no conflicting uses\n", r.ok.Sprint("ok:"))
	} else {
		fmt.Fprintf(&b, "%s %s\n", r.fail.Sprint("FAIL:"), plural(len(rep.Violations), "violation"))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) title(b *strings.Builder, name, runID string, root ir.ExprID) error {
	src, err := r.source(root)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "%s  %s\n", r.head.Sprint(name), r.dim.Sprint("run="+runID))
	fmt.Fprintf(b, "root %s: %s\n\n", root, src)
	return nil
}

func (r *Renderer) section(b *strings.Builder, name string, t *table) {
	b.WriteString(r.head.Sprint(name))
	b.WriteByte('\n')
	if len(t.rows) == 0 {
		b.WriteString("  ")
		b.WriteString(r.dim.Sprint("(none)"))
		b.WriteString("\n\n")
		return
	}
	t.write(b, "  ", r.dim)
	b.WriteByte('\n')
}

func (r *Renderer) source(id ir.ExprID) (string, error) {
	s, err := FormatExpr(r.in, id, true)
	if err != nil {
		return "", err
	}
	return clip(s, maxSource), nil
}

func (r *Renderer) pathAt(p ir.PathID, e ir.ExprID) ([]string, error) {
	ps, err := FormatPath(r.in, p)
	if err != nil {
		return nil, err
	}
	src, err := r.source(e)
	if err != nil {
		return nil, err
	}
	return []string{ps, e.String(), src}, nil
}

func (r *Renderer) writeJSON(doc any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
