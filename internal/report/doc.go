// Package report renders analysis reports as aligned, optionally coloured
// text or as JSON documents.
//
// Expression ids print zero-based (e0, e1, ...) and binders as x0, x1; in
// expression source binders print as x_0, x_1. A path prints as its root
// binder followed by field indices: x0.1.0.
package report
