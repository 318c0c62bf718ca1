package docstore_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/jacentio/arbor/docstore"
	"github.com/jacentio/arbor/rpc"
)

// --- Fake Transport ---

// fakeTransport scripts the transport boundary for unit tests. Methods with
// no script succeed with benign defaults: begin hands out "txn", commit
// returns one empty result per write, reads come back missing and listings
// come back empty.
type fakeTransport struct {
	mu    sync.Mutex
	calls []string

	beginFn      func(*rpc.BeginTransactionRequest) (*rpc.BeginTransactionResponse, error)
	commitFn     func(*rpc.CommitRequest) (*rpc.CommitResponse, error)
	rollbackFn   func(*rpc.RollbackRequest) error
	runQueryFn   func(*rpc.RunQueryRequest) (rpc.RunQueryStream, error)
	batchGetFn   func(*rpc.BatchGetDocumentsRequest) (rpc.BatchGetStream, error)
	listDocsFn   func(*rpc.ListDocumentsRequest) (*rpc.ListDocumentsResponse, error)
	listColIDsFn func(*rpc.ListCollectionIDsRequest) (*rpc.ListCollectionIDsResponse, error)
}

func (f *fakeTransport) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

// callCount reports how many times the named method was invoked.
func (f *fakeTransport) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeTransport) BeginTransaction(ctx context.Context, req *rpc.BeginTransactionRequest, opts rpc.CallOptions) (*rpc.BeginTransactionResponse, error) {
	f.record("BeginTransaction")
	if f.beginFn != nil {
		return f.beginFn(req)
	}
	return &rpc.BeginTransactionResponse{Transaction: []byte("txn")}, nil
}

func (f *fakeTransport) Commit(ctx context.Context, req *rpc.CommitRequest, opts rpc.CallOptions) (*rpc.CommitResponse, error) {
	f.record("Commit")
	if f.commitFn != nil {
		return f.commitFn(req)
	}
	results := make([]*rpc.WriteResult, len(req.Writes))
	for i := range results {
		results[i] = &rpc.WriteResult{}
	}
	return &rpc.CommitResponse{WriteResults: results}, nil
}

func (f *fakeTransport) Rollback(ctx context.Context, req *rpc.RollbackRequest, opts rpc.CallOptions) error {
	f.record("Rollback")
	if f.rollbackFn != nil {
		return f.rollbackFn(req)
	}
	return nil
}

func (f *fakeTransport) RunQuery(ctx context.Context, req *rpc.RunQueryRequest, opts rpc.CallOptions) (rpc.RunQueryStream, error) {
	f.record("RunQuery")
	if f.runQueryFn != nil {
		return f.runQueryFn(req)
	}
	return &queryStream{}, nil
}

func (f *fakeTransport) BatchGetDocuments(ctx context.Context, req *rpc.BatchGetDocumentsRequest, opts rpc.CallOptions) (rpc.BatchGetStream, error) {
	f.record("BatchGetDocuments")
	if f.batchGetFn != nil {
		return f.batchGetFn(req)
	}
	responses := make([]*rpc.BatchGetDocumentsResponse, len(req.Documents))
	for i, name := range req.Documents {
		responses[i] = &rpc.BatchGetDocumentsResponse{Missing: name}
	}
	return &batchStream{responses: responses}, nil
}

func (f *fakeTransport) ListDocuments(ctx context.Context, req *rpc.ListDocumentsRequest, opts rpc.CallOptions) (*rpc.ListDocumentsResponse, error) {
	f.record("ListDocuments")
	if f.listDocsFn != nil {
		return f.listDocsFn(req)
	}
	return &rpc.ListDocumentsResponse{}, nil
}

func (f *fakeTransport) ListCollectionIDs(ctx context.Context, req *rpc.ListCollectionIDsRequest, opts rpc.CallOptions) (*rpc.ListCollectionIDsResponse, error) {
	f.record("ListCollectionIds")
	if f.listColIDsFn != nil {
		return f.listColIDsFn(req)
	}
	return &rpc.ListCollectionIDsResponse{}, nil
}

// --- Fake Streams ---

// queryStream replays scripted query responses, then err or io.EOF.
type queryStream struct {
	responses []*rpc.RunQueryResponse
	err       error
}

func (s *queryStream) Recv() (*rpc.RunQueryResponse, error) {
	if len(s.responses) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// batchStream replays scripted batch read responses, then err or io.EOF.
type batchStream struct {
	responses []*rpc.BatchGetDocumentsResponse
	err       error
}

func (s *batchStream) Recv() (*rpc.BatchGetDocumentsResponse, error) {
	if len(s.responses) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// --- Helpers ---

const testDatabase = "databases/test"

func newTestClient(ft *fakeTransport) *docstore.Client {
	return docstore.New(ft, docstore.Config{
		Database: testDatabase,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// docName builds a full resource name under the test database.
func docName(path string) string {
	return testDatabase + "/documents/" + path
}
