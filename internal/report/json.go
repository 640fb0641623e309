package report

import (
	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// ExprJSON is an expression id with its inline source.
type ExprJSON struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// TypingJSON is one TypeOf fact.
type TypingJSON struct {
	Expr ExprJSON `json:"expr"`
	Type string   `json:"type"`
}

// BindingJSON is one Bind fact.
type BindingJSON struct {
	Name  string   `json:"name"`
	Value ExprJSON `json:"value"`
}

// StatsJSON summarises the evaluator's work.
type StatsJSON struct {
	Strata  int `json:"strata"`
	Rounds  int `json:"rounds"`
	Derived int `json:"derived"`
}

// TypeDocument is the JSON form of a type report.
type TypeDocument struct {
	Analysis string        `json:"analysis"`
	RunID    string        `json:"run_id"`
	Root     ExprJSON      `json:"root"`
	OK       bool          `json:"ok"`
	Typings  []TypingJSON  `json:"typings"`
	Bindings []BindingJSON `json:"bindings"`
	Errors   []ExprJSON    `json:"errors"`
	Stats    StatsJSON     `json:"stats"`
	Digest   string        `json:"digest"`
}

// PathUseJSON is a path consumed at an expression.
type PathUseJSON struct {
	Path string   `json:"path"`
	Expr ExprJSON `json:"expr"`
}

// OriginJSON is one Origin fact.
type OriginJSON struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// AncestorUseJSON is one AncestorUsed fact.
type AncestorUseJSON struct {
	Ancestor   string   `json:"ancestor"`
	Descendant string   `json:"descendant"`
	Expr       ExprJSON `json:"expr"`
}

// DoubleUseJSON is one DoubleUse fact.
type DoubleUseJSON struct {
	Path  string   `json:"path"`
	Expr  ExprJSON `json:"expr"`
	Other ExprJSON `json:"other"`
}

// LinearityDocument is the JSON form of a linearity report.
type LinearityDocument struct {
	Analysis     string            `json:"analysis"`
	RunID        string            `json:"run_id"`
	Root         ExprJSON          `json:"root"`
	OK           bool              `json:"ok"`
	Origins      []OriginJSON      `json:"origins"`
	Used         []PathUseJSON     `json:"used"`
	AncestorUsed []AncestorUseJSON `json:"ancestor_used"`
	DoubleUse    []DoubleUseJSON   `json:"double_use"`
	Violations   []PathUseJSON     `json:"violations"`
	Stats        StatsJSON         `json:"stats"`
	Digest       string            `json:"digest"`
}

// TypeDocumentOf converts a type report. Slices are empty, never nil.
func TypeDocumentOf(in *intern.Interner, rep *analysis.TypeReport) (*TypeDocument, error) {
	root, err := exprJSON(in, rep.Root)
	if err != nil {
		return nil, err
	}
	doc := &TypeDocument{
		Analysis: "typeinfer",
		RunID:    rep.RunID,
		Root:     root,
		OK:       rep.OK(),
		Typings:  make([]TypingJSON, 0, len(rep.Typings)),
		Bindings: make([]BindingJSON, 0, len(rep.Bindings)),
		Errors:   make([]ExprJSON, 0, len(rep.Errors)),
		Stats:    statsJSON(rep.Stats),
		Digest:   rep.Digest,
	}
	for _, t := range rep.Typings {
		e, err := exprJSON(in, t.Expr)
		if err != nil {
			return nil, err
		}
		doc.Typings = append(doc.Typings, TypingJSON{Expr: e, Type: t.Type.String()})
	}
	for _, b := range rep.Bindings {
		v, err := exprJSON(in, b.Value)
		if err != nil {
			return nil, err
		}
		doc.Bindings = append(doc.Bindings, BindingJSON{Name: b.Name.String(), Value: v})
	}
	for _, id := range rep.Errors {
		e, err := exprJSON(in, id)
		if err != nil {
			return nil, err
		}
		doc.Errors = append(doc.Errors, e)
	}
	return doc, nil
}

// LinearityDocumentOf converts a linearity report. Slices are empty,
// never nil.
func LinearityDocumentOf(in *intern.Interner, rep *analysis.LinearityReport) (*LinearityDocument, error) {
	root, err := exprJSON(in, rep.Root)
	if err != nil {
		return nil, err
	}
	doc := &LinearityDocument{
		Analysis:     "linearity",
		RunID:        rep.RunID,
		Root:         root,
		OK:           rep.OK(),
		Origins:      make([]OriginJSON, 0, len(rep.Origins)),
		Used:         []PathUseJSON{},
		AncestorUsed: make([]AncestorUseJSON, 0, len(rep.AncestorUsed)),
		DoubleUse:    make([]DoubleUseJSON, 0, len(rep.DoubleUse)),
		Violations:   make([]PathUseJSON, 0, len(rep.Violations)),
		Stats:        statsJSON(rep.Stats),
		Digest:       rep.Digest,
	}
	for _, o := range rep.Origins {
		p, err := FormatPath(in, o.Path)
		if err != nil {
			return nil, err
		}
		doc.Origins = append(doc.Origins, OriginJSON{Name: o.Name.String(), Path: p})
	}
	if rep.Base != nil {
		for _, u := range rep.Base.Uses {
			pu, err := pathUseJSON(in, u.Path, u.Expr)
			if err != nil {
				return nil, err
			}
			doc.Used = append(doc.Used, pu)
		}
	}
	for _, a := range rep.AncestorUsed {
		p, err := FormatPath(in, a.Ancestor)
		if err != nil {
			return nil, err
		}
		q, err := FormatPath(in, a.Descendant)
		if err != nil {
			return nil, err
		}
		e, err := exprJSON(in, a.Expr)
		if err != nil {
			return nil, err
		}
		doc.AncestorUsed = append(doc.AncestorUsed, AncestorUseJSON{Ancestor: p, Descendant: q, Expr: e})
	}
	for _, d := range rep.DoubleUse {
		p, err := FormatPath(in, d.Path)
		if err != nil {
			return nil, err
		}
		e, err := exprJSON(in, d.Expr)
		if err != nil {
			return nil, err
		}
		o, err := exprJSON(in, d.Other)
		if err != nil {
			return nil, err
		}
		doc.DoubleUse = append(doc.DoubleUse, DoubleUseJSON{Path: p, Expr: e, Other: o})
	}
	for _, v := range rep.Violations {
		pu, err := pathUseJSON(in, v.Path, v.Expr)
		if err != nil {
			return nil, err
		}
		doc.Violations = append(doc.Violations, pu)
	}
	return doc, nil
}

func exprJSON(in *intern.Interner, id ir.ExprID) (ExprJSON, error) {
	src, err := FormatExpr(in, id, true)
	if err != nil {
		return ExprJSON{}, err
	}
	return ExprJSON{ID: id.String(), Source: src}, nil
}

func pathUseJSON(in *intern.Interner, p ir.PathID, e ir.ExprID) (PathUseJSON, error) {
	ps, err := FormatPath(in, p)
	if err != nil {
		return PathUseJSON{}, err
	}
	ej, err := exprJSON(in, e)
	if err != nil {
		return PathUseJSON{}, err
	}
	return PathUseJSON{Path: ps, Expr: ej}, nil
}

func statsJSON(s engine.Stats) StatsJSON {
	return StatsJSON{Strata: len(s.Strata), Rounds: s.Rounds, Derived: s.Derived}
}
