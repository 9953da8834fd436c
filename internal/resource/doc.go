// Package resource implements documents and document aggregates: Resource
// (one URI-addressed, insertion-ordered collection of objects) and Set (a
// resource aggregate with a metamodel registry, URI mapping/normalisation,
// and cross-document reference resolution).
//
// Concurrency model: one mutex domain per Resource and one per Set-level
// table (resource registry, URI map, factory table). Operations on the
// same resource observe a total order; cross-resource resolution snapshots
// the registry so it never observes a torn resource list. No operation
// performs I/O.
//
// Lookups are total. Malformed URIs, unknown fragments and dangling
// identifiers degrade to nil results so decoders can probe speculatively;
// the only surfaced URI error is the rewrite-chain cap.
package resource
