// Package docstore is a small document database abstraction: collections of
// JSON documents addressed by id, with filtered queries, merge updates with
// array-union/remove sentinels and atomic multi-document batches.
//
// Sub-collections are plain collection paths such as "users/u1/productScores".
package docstore

import (
	"context"
	stderrors "errors"
)

var ErrNotFound = stderrors.New("docstore: document not found")

type Op string

const (
	OpEq  Op = "=="
	OpIn  Op = "in"
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Filter compares a top-level field. A nil Value with OpEq matches documents
// where the field is missing or null.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field string, op Op, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

type Doc struct {
	ID   string
	Data map[string]interface{}
}

// Decode unmarshals the document into out.
func (d Doc) Decode(out interface{}) error {
	return decode(d.Data, out)
}

// Store is implemented by the in-memory and Postgres backends.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, q Query) ([]Doc, error)
	Count(ctx context.Context, q Query) (int, error)
	// Set replaces the document.
	Set(ctx context.Context, collection, id string, data interface{}) error
	// Merge updates the given top-level fields, creating the document when
	// missing. Values may be ArrayUnion, ArrayRemove or ServerTimestamp.
	Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Delete is a no-op for missing documents.
	Delete(ctx context.Context, collection, id string) error
	// RunBatch applies every write recorded by fn atomically, or none when
	// fn or the commit fails.
	RunBatch(ctx context.Context, fn func(Batch) error) error
	Ping(ctx context.Context) error
}

// Batch records writes for RunBatch.
type Batch interface {
	Set(collection, id string, data interface{})
	Merge(collection, id string, fields map[string]interface{})
	Delete(collection, id string)
}

type opKind int

const (
	opSet opKind = iota
	opMerge
	opDelete
)

type write struct {
	kind       opKind
	collection string
	id         string
	data       map[string]interface{}
	fields     map[string]interface{}
}

// batch encodes eagerly so commit only fails on storage errors.
type batch struct {
	writes []write
	err    error
}

func (b *batch) Set(collection, id string, data interface{}) {
	encoded, err := encode(data)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.writes = append(b.writes, write{kind: opSet, collection: collection, id: id, data: encoded})
}

func (b *batch) Merge(collection, id string, fields map[string]interface{}) {
	encoded, err := encodeFields(fields)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.writes = append(b.writes, write{kind: opMerge, collection: collection, id: id, fields: encoded})
}

func (b *batch) Delete(collection, id string) {
	b.writes = append(b.writes, write{kind: opDelete, collection: collection, id: id})
}
