//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jacentio/arbor/rpc"
)

// memoryBackend is a self-contained Arbor backend: a document table, a
// transaction registry and just enough commit semantics to exercise the
// client end to end. Contention can be forced with abortCommits.
type memoryBackend struct {
	database string

	mu             sync.Mutex
	docs           map[string]*storedDoc
	txns           map[string]*serverTxn
	seq            int
	abortRemaining int
	retryTokens    [][]byte
}

type storedDoc struct {
	fields     map[string]any
	createTime time.Time
	updateTime time.Time
}

type serverTxn struct {
	readOnly bool
}

func newMemoryBackend(database string) *memoryBackend {
	return &memoryBackend{
		database: database,
		docs:     make(map[string]*storedDoc),
		txns:     make(map[string]*serverTxn),
	}
}

// abortCommits makes the next n transactional commits fail with Aborted.
func (b *memoryBackend) abortCommits(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.abortRemaining = n
}

// beginRetryTokens returns the retry token carried by each begin so far, nil
// for fresh begins.
func (b *memoryBackend) beginRetryTokens() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.retryTokens))
	copy(out, b.retryTokens)
	return out
}

func (b *memoryBackend) root() string {
	return b.database + "/documents"
}

func (b *memoryBackend) BeginTransaction(ctx context.Context, req *rpc.BeginTransactionRequest) (*rpc.BeginTransactionResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn := &serverTxn{}
	var token []byte
	if req.Options != nil {
		if req.Options.ReadOnly != nil {
			txn.readOnly = true
		}
		if req.Options.ReadWrite != nil {
			token = req.Options.ReadWrite.RetryTransaction
		}
	}
	b.retryTokens = append(b.retryTokens, token)

	b.seq++
	id := fmt.Sprintf("txn-%04d", b.seq)
	b.txns[id] = txn
	return &rpc.BeginTransactionResponse{Transaction: []byte(id)}, nil
}

func (b *memoryBackend) Commit(ctx context.Context, req *rpc.CommitRequest) (*rpc.CommitResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Transaction != nil {
		id := string(req.Transaction)
		txn, ok := b.txns[id]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unknown transaction %q", id)
		}
		delete(b.txns, id)
		if txn.readOnly && len(req.Writes) > 0 {
			return nil, status.Error(codes.InvalidArgument, "writes in a read-only transaction")
		}
		if b.abortRemaining > 0 {
			b.abortRemaining--
			return nil, status.Errorf(codes.Aborted, "transaction %q contended", id)
		}
	}

	// Check every precondition before touching anything.
	for _, w := range req.Writes {
		name := w.Delete
		if w.Update != nil {
			name = w.Update.Name
		}
		if err := checkPrecondition(w.CurrentDocument, b.docs[name]); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	results := make([]*rpc.WriteResult, len(req.Writes))
	for i, w := range req.Writes {
		switch {
		case w.Update != nil:
			b.apply(w, now)
		case w.Delete != "":
			delete(b.docs, w.Delete)
		}
		results[i] = &rpc.WriteResult{UpdateTime: now}
	}
	return &rpc.CommitResponse{WriteResults: results, CommitTime: now}, nil
}

func (b *memoryBackend) apply(w *rpc.Write, now time.Time) {
	name := w.Update.Name
	doc := b.docs[name]
	if doc == nil {
		doc = &storedDoc{fields: make(map[string]any), createTime: now}
		b.docs[name] = doc
	}
	if w.UpdateMask == nil {
		doc.fields = copyFields(w.Update.Fields)
	} else {
		for _, path := range w.UpdateMask.FieldPaths {
			if v, ok := w.Update.Fields[path]; ok {
				doc.fields[path] = v
			} else {
				delete(doc.fields, path)
			}
		}
	}
	doc.updateTime = now
}

func checkPrecondition(cond *rpc.Precondition, doc *storedDoc) error {
	if cond == nil {
		return nil
	}
	if cond.Exists != nil {
		if *cond.Exists && doc == nil {
			return status.Error(codes.NotFound, "document does not exist")
		}
		if !*cond.Exists && doc != nil {
			return status.Error(codes.AlreadyExists, "document already exists")
		}
	}
	if cond.UpdateTime != nil {
		if doc == nil || !doc.updateTime.Equal(*cond.UpdateTime) {
			return status.Error(codes.FailedPrecondition, "update time mismatch")
		}
	}
	return nil
}

func (b *memoryBackend) Rollback(ctx context.Context, req *rpc.RollbackRequest) (*rpc.Empty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.txns, string(req.Transaction))
	return &rpc.Empty{}, nil
}

func (b *memoryBackend) RunQuery(req *rpc.RunQueryRequest, stream rpc.RunQueryServerStream) error {
	b.mu.Lock()
	if req.Transaction != nil {
		if _, ok := b.txns[string(req.Transaction)]; !ok {
			b.mu.Unlock()
			return status.Errorf(codes.NotFound, "unknown transaction %q", req.Transaction)
		}
	}
	prefix := req.Parent + "/" + req.Query.CollectionID + "/"
	var names []string
	for name := range b.docs {
		if strings.HasPrefix(name, prefix) && !strings.Contains(name[len(prefix):], "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if req.Query.Limit > 0 && int32(len(names)) > req.Query.Limit {
		names = names[:req.Query.Limit]
	}
	now := time.Now().UTC()
	responses := make([]*rpc.RunQueryResponse, 0, len(names)+1)
	for _, name := range names {
		responses = append(responses, &rpc.RunQueryResponse{
			Document: b.wireDoc(name, nil),
			ReadTime: now,
		})
	}
	if req.ExplainOptions != nil {
		responses = append(responses, &rpc.RunQueryResponse{
			ReadTime: now,
			Done:     true,
			ExplainMetrics: &rpc.ExplainMetrics{
				PlanSummary:     map[string]any{"indexes_used": []any{}},
				ResultsReturned: int64(len(names)),
				ReadOperations:  int64(len(names)),
			},
		})
	}
	b.mu.Unlock()

	for _, resp := range responses {
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) BatchGetDocuments(req *rpc.BatchGetDocumentsRequest, stream rpc.BatchGetServerStream) error {
	b.mu.Lock()
	if req.Transaction != nil {
		if _, ok := b.txns[string(req.Transaction)]; !ok {
			b.mu.Unlock()
			return status.Errorf(codes.NotFound, "unknown transaction %q", req.Transaction)
		}
	}
	now := time.Now().UTC()
	responses := make([]*rpc.BatchGetDocumentsResponse, 0, len(req.Documents))
	for _, name := range req.Documents {
		if _, ok := b.docs[name]; ok {
			responses = append(responses, &rpc.BatchGetDocumentsResponse{
				Found:    b.wireDoc(name, req.Mask),
				ReadTime: now,
			})
		} else {
			responses = append(responses, &rpc.BatchGetDocumentsResponse{
				Missing:  name,
				ReadTime: now,
			})
		}
	}
	b.mu.Unlock()

	for _, resp := range responses {
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) ListDocuments(ctx context.Context, req *rpc.ListDocumentsRequest) (*rpc.ListDocumentsResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := req.Parent + "/" + req.CollectionID + "/"
	present := map[string]bool{}
	for name := range b.docs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			// A deeper document implies this ID as a placeholder.
			if req.ShowMissing {
				id := rest[:i]
				if _, ok := present[id]; !ok {
					present[id] = false
				}
			}
		} else {
			present[rest] = true
		}
	}
	ids := make([]string, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resp := &rpc.ListDocumentsResponse{}
	for _, id := range ids {
		name := prefix + id
		if present[id] {
			resp.Documents = append(resp.Documents, b.wireDoc(name, req.Mask))
		} else {
			resp.Documents = append(resp.Documents, &rpc.Document{Name: name})
		}
	}
	return resp, nil
}

func (b *memoryBackend) ListCollectionIDs(ctx context.Context, req *rpc.ListCollectionIDsRequest) (*rpc.ListCollectionIDsResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := req.Parent + "/"
	seen := map[string]bool{}
	for name := range b.docs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &rpc.ListCollectionIDsResponse{CollectionIDs: ids}, nil
}

// wireDoc copies a stored document into its wire form, honoring a
// names-only mask.
func (b *memoryBackend) wireDoc(name string, mask *rpc.DocumentMask) *rpc.Document {
	doc := b.docs[name]
	out := &rpc.Document{
		Name:       name,
		CreateTime: doc.createTime,
		UpdateTime: doc.updateTime,
	}
	if mask == nil {
		out.Fields = copyFields(doc.fields)
	} else if len(mask.FieldPaths) > 0 {
		out.Fields = make(map[string]any, len(mask.FieldPaths))
		for _, path := range mask.FieldPaths {
			if v, ok := doc.fields[path]; ok {
				out.Fields[path] = v
			}
		}
	}
	return out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
