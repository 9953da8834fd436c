// Package model implements the entity layer of the persistence core:
// 128-bit identifiers, the sealed Value sum type, dual-keyed feature
// stores, model objects, and the opposite-reference Mutator.
//
// Identity rules:
//   - every Object carries an ID fixed at construction; equality and
//     hashing derive from the ID alone
//   - references between objects are stored as IDs (Ref/RefList), never as
//     pointers; resolving an ID to a live object is the resource layer's job
//
// FeatureStore is deliberately opposite-agnostic. Mutations that must keep
// two inverse features consistent go through Mutator, the single
// synchronising mutation path.
package model
