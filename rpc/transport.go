package rpc

import (
	"context"
	"time"
)

// CallOptions carries per-call policy for a Transport method.
// The zero value means the transport's defaults.
type CallOptions struct {
	// Timeout bounds the call, streams included. Zero means the transport's
	// default for unary calls and no deadline for streams.
	Timeout time.Duration

	// DisableRetry turns off transport-level retries for this call.
	DisableRetry bool
}

// RunQueryStream yields streamed query results. Recv returns io.EOF once the
// backend has sent everything.
type RunQueryStream interface {
	Recv() (*RunQueryResponse, error)
}

// BatchGetStream yields streamed batch read results, one per requested name.
// Recv returns io.EOF once the backend has sent everything.
type BatchGetStream interface {
	Recv() (*BatchGetDocumentsResponse, error)
}

// Transport is the wire boundary to an Arbor backend. Implementations own
// per-call deadlines and retry policy; callers treat each method as a single
// logical call and never replay streams.
type Transport interface {
	// BeginTransaction starts a transaction and returns its ID.
	BeginTransaction(ctx context.Context, req *BeginTransactionRequest, opts CallOptions) (*BeginTransactionResponse, error)

	// Commit applies writes atomically, inside a transaction when the
	// request names one.
	Commit(ctx context.Context, req *CommitRequest, opts CallOptions) (*CommitResponse, error)

	// Rollback abandons a transaction.
	Rollback(ctx context.Context, req *RollbackRequest, opts CallOptions) error

	// RunQuery executes a query as a result stream.
	RunQuery(ctx context.Context, req *RunQueryRequest, opts CallOptions) (RunQueryStream, error)

	// BatchGetDocuments reads documents by name as a result stream.
	BatchGetDocuments(ctx context.Context, req *BatchGetDocumentsRequest, opts CallOptions) (BatchGetStream, error)

	// ListDocuments returns one page of a collection's documents.
	ListDocuments(ctx context.Context, req *ListDocumentsRequest, opts CallOptions) (*ListDocumentsResponse, error)

	// ListCollectionIDs returns one page of the collection IDs under a
	// document.
	ListCollectionIDs(ctx context.Context, req *ListCollectionIDsRequest, opts CallOptions) (*ListCollectionIDsResponse, error)
}
