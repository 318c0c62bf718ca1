package rpc

import (
	"time"
)

// TransactionOptions selects the mode of a new transaction.
// At most one of ReadOnly and ReadWrite may be set; leaving both nil asks the
// backend for a plain read-write transaction.
type TransactionOptions struct {
	// ReadOnly requests a snapshot transaction that can only read.
	ReadOnly *ReadOnlyOptions `json:"readOnly,omitempty"`

	// ReadWrite requests a locking transaction that can read and write.
	ReadWrite *ReadWriteOptions `json:"readWrite,omitempty"`
}

// ReadWriteOptions configures a read-write transaction.
type ReadWriteOptions struct {
	// RetryTransaction carries the ID of a previous attempt so the backend
	// can prioritize the retry against competing writers.
	RetryTransaction []byte `json:"retryTransaction,omitempty"`
}

// ReadOnlyOptions configures a read-only transaction.
type ReadOnlyOptions struct {
	// ReadTime pins all reads to the given snapshot. Zero means the current
	// time at begin.
	ReadTime time.Time `json:"readTime"`
}

// Document is a stored document on the wire.
type Document struct {
	// Name is the full resource name, e.g.
	// "databases/default/documents/users/alice".
	Name string `json:"name"`

	// Fields holds the document data as already-decoded JSON values.
	// Nil for placeholder documents returned by listings with ShowMissing.
	Fields map[string]any `json:"fields,omitempty"`

	// CreateTime and UpdateTime are set by the backend on reads.
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// DocumentMask names a set of top-level fields. A nil *DocumentMask on a
// request means all fields; a non-nil mask restricts results to FieldPaths,
// which may be empty to select names only.
type DocumentMask struct {
	FieldPaths []string `json:"fieldPaths,omitempty"`
}

// Precondition guards a write. At most one of Exists and UpdateTime may be
// set; an empty precondition always passes.
type Precondition struct {
	// Exists requires the document to exist (true) or not exist (false).
	Exists *bool `json:"exists,omitempty"`

	// UpdateTime requires the document's last update time to match exactly.
	UpdateTime *time.Time `json:"updateTime,omitempty"`
}

// Write is a single mutation. Exactly one of Update and Delete must be set.
type Write struct {
	// Update stores the given document.
	Update *Document `json:"update,omitempty"`

	// Delete names a document to remove.
	Delete string `json:"delete,omitempty"`

	// UpdateMask restricts Update to the named top-level fields; fields of
	// the existing document outside the mask are left untouched. A nil mask
	// replaces the whole document.
	UpdateMask *DocumentMask `json:"updateMask,omitempty"`

	// CurrentDocument is an optional precondition on the target.
	CurrentDocument *Precondition `json:"currentDocument,omitempty"`
}

// WriteResult reports the outcome of one applied Write.
type WriteResult struct {
	// UpdateTime is the document's update time after the write. For deletes
	// it is the commit time.
	UpdateTime time.Time `json:"updateTime"`
}

// Empty is the body of responses that carry no data.
type Empty struct{}

// BeginTransactionRequest starts a transaction.
type BeginTransactionRequest struct {
	// Database is the database resource name, e.g. "databases/default".
	Database string `json:"database"`

	// Options selects the transaction mode. Nil means read-write.
	Options *TransactionOptions `json:"options,omitempty"`
}

// BeginTransactionResponse carries the new transaction's ID.
type BeginTransactionResponse struct {
	Transaction []byte `json:"transaction"`
}

// CommitRequest applies writes, optionally inside a transaction.
type CommitRequest struct {
	Database string `json:"database"`

	// Writes are applied atomically, in order.
	Writes []*Write `json:"writes,omitempty"`

	// Transaction commits the identified transaction. Empty commits the
	// writes standalone.
	Transaction []byte `json:"transaction,omitempty"`
}

// CommitResponse reports per-write results in request order.
type CommitResponse struct {
	WriteResults []*WriteResult `json:"writeResults,omitempty"`

	// CommitTime is the time the commit took effect.
	CommitTime time.Time `json:"commitTime"`
}

// RollbackRequest abandons a transaction.
type RollbackRequest struct {
	Database    string `json:"database"`
	Transaction []byte `json:"transaction"`
}

// BatchGetDocumentsRequest reads a set of documents by name.
type BatchGetDocumentsRequest struct {
	Database string `json:"database"`

	// Documents are full resource names. The stream responds once per name,
	// in whatever order the backend finds convenient.
	Documents []string `json:"documents"`

	// Mask restricts the fields returned. Nil returns all fields.
	Mask *DocumentMask `json:"mask,omitempty"`

	// Transaction reads inside the identified transaction.
	Transaction []byte `json:"transaction,omitempty"`

	// ReadTime reads the state at the given time. Zero means now.
	ReadTime time.Time `json:"readTime"`
}

// BatchGetDocumentsResponse is one streamed result. Exactly one of Found and
// Missing is set.
type BatchGetDocumentsResponse struct {
	// Found is the document when it exists.
	Found *Document `json:"found,omitempty"`

	// Missing is the requested name when no document exists there.
	Missing string `json:"missing,omitempty"`

	// ReadTime is the snapshot time this result was read at.
	ReadTime time.Time `json:"readTime"`
}

// Query is the wire shape of a structured query. The client only issues
// whole-collection scans; richer query construction is a backend concern.
type Query struct {
	// CollectionID names the collection to scan, relative to the request's
	// parent document.
	CollectionID string `json:"collectionId"`

	// AllDescendants scans every collection with CollectionID under the
	// parent instead of the immediate child collection only.
	AllDescendants bool `json:"allDescendants,omitempty"`

	// Limit bounds the number of results. Zero means no bound.
	Limit int32 `json:"limit,omitempty"`
}

// RunQueryRequest executes a query as a result stream.
type RunQueryRequest struct {
	// Parent is the document to query under, or the database's document
	// root for top-level collections.
	Parent string `json:"parent"`

	Query *Query `json:"query"`

	// Transaction reads inside the identified transaction.
	Transaction []byte `json:"transaction,omitempty"`

	// ReadTime reads the state at the given time. Zero means now.
	ReadTime time.Time `json:"readTime"`

	// ExplainOptions asks for query plan information. With Analyze unset
	// the query is planned but not run.
	ExplainOptions *ExplainOptions `json:"explainOptions,omitempty"`
}

// RunQueryResponse is one streamed query result.
type RunQueryResponse struct {
	// Document is the next result, nil for responses that only carry
	// bookkeeping such as Done or ExplainMetrics.
	Document *Document `json:"document,omitempty"`

	// ReadTime is the snapshot time the result was read at.
	ReadTime time.Time `json:"readTime"`

	// SkippedResults counts results passed over before this one.
	SkippedResults int32 `json:"skippedResults,omitempty"`

	// Done marks the final response of the stream.
	Done bool `json:"done,omitempty"`

	// ExplainMetrics arrives on the final response when the request carried
	// ExplainOptions.
	ExplainMetrics *ExplainMetrics `json:"explainMetrics,omitempty"`
}

// ExplainOptions requests query profiling.
type ExplainOptions struct {
	// Analyze runs the query and reports execution stats. Unset plans the
	// query without running it.
	Analyze bool `json:"analyze,omitempty"`
}

// ExplainMetrics reports query planning and execution information.
type ExplainMetrics struct {
	// PlanSummary describes the indexes the planner chose.
	PlanSummary map[string]any `json:"planSummary,omitempty"`

	// ResultsReturned counts documents produced. Zero when Analyze was
	// unset.
	ResultsReturned int64 `json:"resultsReturned,omitempty"`

	// ReadOperations counts billed read units.
	ReadOperations int64 `json:"readOperations,omitempty"`

	// ExecutionDuration is the backend-side execution time.
	ExecutionDuration time.Duration `json:"executionDuration,omitempty"`
}

// ListDocumentsRequest pages through the documents of one collection.
type ListDocumentsRequest struct {
	// Parent is the document owning the collection, or the database's
	// document root for top-level collections.
	Parent string `json:"parent"`

	// CollectionID names the collection under Parent.
	CollectionID string `json:"collectionId"`

	// PageSize bounds the page. Zero lets the backend choose.
	PageSize int32 `json:"pageSize,omitempty"`

	// PageToken resumes listing from a previous response.
	PageToken string `json:"pageToken,omitempty"`

	// Mask restricts the fields returned. Nil returns all fields.
	Mask *DocumentMask `json:"mask,omitempty"`

	// ShowMissing includes placeholder documents that have no data but do
	// have sub-collections. Placeholders carry only their Name.
	ShowMissing bool `json:"showMissing,omitempty"`

	// ReadTime lists the state at the given time. Zero means now.
	ReadTime time.Time `json:"readTime"`
}

// ListDocumentsResponse is one page of documents.
type ListDocumentsResponse struct {
	Documents []*Document `json:"documents,omitempty"`

	// NextPageToken is empty on the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// ListCollectionIDsRequest pages through the collection IDs under a document.
type ListCollectionIDsRequest struct {
	// Parent is a document name, or the database's document root for
	// top-level collections.
	Parent string `json:"parent"`

	// PageSize bounds the page. Zero lets the backend choose.
	PageSize int32 `json:"pageSize,omitempty"`

	// PageToken resumes listing from a previous response.
	PageToken string `json:"pageToken,omitempty"`

	// ReadTime lists the state at the given time. Zero means now.
	ReadTime time.Time `json:"readTime"`
}

// ListCollectionIDsResponse is one page of collection IDs.
type ListCollectionIDsResponse struct {
	CollectionIDs []string `json:"collectionIds,omitempty"`

	// NextPageToken is empty on the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`
}
