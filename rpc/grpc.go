package rpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service and method names of the backend's gRPC surface, exported so that
// servers and tests can register matching handlers.
const (
	ServiceName = "arbor.v1.Arbor"

	MethodBeginTransaction  = "/arbor.v1.Arbor/BeginTransaction"
	MethodCommit            = "/arbor.v1.Arbor/Commit"
	MethodRollback          = "/arbor.v1.Arbor/Rollback"
	MethodRunQuery          = "/arbor.v1.Arbor/RunQuery"
	MethodBatchGetDocuments = "/arbor.v1.Arbor/BatchGetDocuments"
	MethodListDocuments     = "/arbor.v1.Arbor/ListDocuments"
	MethodListCollectionIDs = "/arbor.v1.Arbor/ListCollectionIds"
)

const defaultCallTimeout = 60 * time.Second

// GRPCTransport implements Transport over a gRPC client connection, speaking
// JSON-encoded messages under the [CodecName] content subtype.
//
// Unary methods that are safe to repeat (BeginTransaction, Rollback and the
// listings) are retried on Unavailable with exponential backoff unless the
// call disables retries. Commit is never retried here: the caller cannot
// tell a lost response from a lost request. Streams are never replayed.
type GRPCTransport struct {
	conn        *grpc.ClientConn
	callTimeout time.Duration
	newBackOff  func() backoff.BackOff
	logger      *slog.Logger
}

// GRPCOption configures a GRPCTransport.
type GRPCOption func(*GRPCTransport)

// WithCallTimeout sets the deadline applied to unary calls that carry no
// per-call timeout. Default: 60s.
func WithCallTimeout(d time.Duration) GRPCOption {
	return func(t *GRPCTransport) {
		if d > 0 {
			t.callTimeout = d
		}
	}
}

// WithRetryPolicy sets the backoff source for retried unary calls. The
// function is invoked once per call.
func WithRetryPolicy(newBackOff func() backoff.BackOff) GRPCOption {
	return func(t *GRPCTransport) {
		if newBackOff != nil {
			t.newBackOff = newBackOff
		}
	}
}

// WithLogger sets the transport's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) GRPCOption {
	return func(t *GRPCTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewGRPCTransport wraps an established client connection. The transport
// does not own the connection; closing it remains the caller's job.
func NewGRPCTransport(conn *grpc.ClientConn, opts ...GRPCOption) *GRPCTransport {
	t := &GRPCTransport{
		conn:        conn,
		callTimeout: defaultCallTimeout,
		newBackOff:  defaultRetryPolicy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func defaultRetryPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	return bo
}

// BeginTransaction starts a transaction and returns its ID.
func (t *GRPCTransport) BeginTransaction(ctx context.Context, req *BeginTransactionRequest, opts CallOptions) (*BeginTransactionResponse, error) {
	resp := new(BeginTransactionResponse)
	if err := t.invoke(ctx, MethodBeginTransaction, req, resp, opts, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// Commit applies writes atomically. It is not retried by the transport.
func (t *GRPCTransport) Commit(ctx context.Context, req *CommitRequest, opts CallOptions) (*CommitResponse, error) {
	resp := new(CommitResponse)
	if err := t.invoke(ctx, MethodCommit, req, resp, opts, false); err != nil {
		return nil, err
	}
	return resp, nil
}

// Rollback abandons a transaction.
func (t *GRPCTransport) Rollback(ctx context.Context, req *RollbackRequest, opts CallOptions) error {
	return t.invoke(ctx, MethodRollback, req, new(Empty), opts, true)
}

// ListDocuments returns one page of a collection's documents.
func (t *GRPCTransport) ListDocuments(ctx context.Context, req *ListDocumentsRequest, opts CallOptions) (*ListDocumentsResponse, error) {
	resp := new(ListDocumentsResponse)
	if err := t.invoke(ctx, MethodListDocuments, req, resp, opts, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListCollectionIDs returns one page of the collection IDs under a document.
func (t *GRPCTransport) ListCollectionIDs(ctx context.Context, req *ListCollectionIDsRequest, opts CallOptions) (*ListCollectionIDsResponse, error) {
	resp := new(ListCollectionIDsResponse)
	if err := t.invoke(ctx, MethodListCollectionIDs, req, resp, opts, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// RunQuery executes a query as a result stream.
func (t *GRPCTransport) RunQuery(ctx context.Context, req *RunQueryRequest, opts CallOptions) (RunQueryStream, error) {
	cs, cancel, err := t.openStream(ctx, "RunQuery", MethodRunQuery, req, opts)
	if err != nil {
		return nil, err
	}
	return &grpcRunQueryStream{cs: cs, cancel: cancel}, nil
}

// BatchGetDocuments reads documents by name as a result stream.
func (t *GRPCTransport) BatchGetDocuments(ctx context.Context, req *BatchGetDocumentsRequest, opts CallOptions) (BatchGetStream, error) {
	cs, cancel, err := t.openStream(ctx, "BatchGetDocuments", MethodBatchGetDocuments, req, opts)
	if err != nil {
		return nil, err
	}
	return &grpcBatchGetStream{cs: cs, cancel: cancel}, nil
}

// invoke performs one unary call, retrying on Unavailable when the method is
// idempotent and the call permits it.
func (t *GRPCTransport) invoke(ctx context.Context, method string, req, resp any, opts CallOptions, idempotent bool) error {
	timeout := t.callTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retry := idempotent && !opts.DisableRetry
	bo := t.newBackOff()
	bo.Reset()

	for {
		err := t.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(CodecName))
		if err == nil || !retry || status.Code(err) != codes.Unavailable {
			return err
		}

		d := bo.NextBackOff()
		if d == backoff.Stop {
			return err
		}
		t.logger.Debug("retrying unary call", "method", method, "backoff", d, "error", err)

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// openStream starts a server stream and sends the single request message.
func (t *GRPCTransport) openStream(ctx context.Context, name, method string, req any, opts CallOptions) (grpc.ClientStream, context.CancelFunc, error) {
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	desc := &grpc.StreamDesc{StreamName: name, ServerStreams: true}
	cs, err := t.conn.NewStream(ctx, desc, method, grpc.CallContentSubtype(CodecName))
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		cancel()
		return nil, nil, err
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, nil, err
	}
	return cs, cancel, nil
}

type grpcRunQueryStream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

func (s *grpcRunQueryStream) Recv() (*RunQueryResponse, error) {
	resp := new(RunQueryResponse)
	if err := s.cs.RecvMsg(resp); err != nil {
		s.cancel()
		return nil, err
	}
	return resp, nil
}

type grpcBatchGetStream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

func (s *grpcBatchGetStream) Recv() (*BatchGetDocumentsResponse, error) {
	resp := new(BatchGetDocumentsResponse)
	if err := s.cs.RecvMsg(resp); err != nil {
		s.cancel()
		return nil, err
	}
	return resp, nil
}
