// Package ir provides the core data model shared by every analysis stage.
//
// This package contains type definitions and encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Ids (NameID, ExprID, PathID) pack the issuing interner's generation
//     with a 1-based local index; zero means "no id" and is never issued.
//     Ids print and hash by local index.
//   - Expr and Path are closed sum types (sealed interfaces). Consumers
//     switch over every variant.
//   - Every fact value implements Value and renders a canonical Key, which
//     is the identity used for set semantics inside the evaluator.
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only encoding
//     used for content digests.
package ir
