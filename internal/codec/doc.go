// Package codec serialises resources to and from interchange documents.
//
// Three surfaces live here: a JSON document codec that round-trips native
// ids and dynamic features, an XMI-style XML codec for tool interchange,
// and a canonical-JSON marshaller feeding the content-addressed document
// hash used by the repository for change detection. The in-memory core
// never depends on any of these; codecs sit strictly at the boundary.
package codec
