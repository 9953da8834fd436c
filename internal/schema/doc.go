// Package schema holds the descriptor types for user-defined metamodels:
// packages, classes, structural features and enums, plus the namespace-URI
// registry that resource sets and codecs consult.
//
// Schema data is read-only once built. Instances reference these descriptors
// but never mutate them; all lookups are total and return nil for absent
// names rather than erroring, so decoders can probe speculatively.
package schema
