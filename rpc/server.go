package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Server is the backend half of the wire contract. It exists for servers and
// test scaffolding; the client packages never depend on it.
type Server interface {
	BeginTransaction(context.Context, *BeginTransactionRequest) (*BeginTransactionResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Rollback(context.Context, *RollbackRequest) (*Empty, error)
	RunQuery(*RunQueryRequest, RunQueryServerStream) error
	BatchGetDocuments(*BatchGetDocumentsRequest, BatchGetServerStream) error
	ListDocuments(context.Context, *ListDocumentsRequest) (*ListDocumentsResponse, error)
	ListCollectionIDs(context.Context, *ListCollectionIDsRequest) (*ListCollectionIDsResponse, error)
}

// RunQueryServerStream sends query results to one client.
type RunQueryServerStream interface {
	Send(*RunQueryResponse) error
	Context() context.Context
}

// BatchGetServerStream sends batch read results to one client.
type BatchGetServerStream interface {
	Send(*BatchGetDocumentsResponse) error
	Context() context.Context
}

// RegisterServer registers srv with a gRPC server under [ServiceName].
func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&Desc, srv)
}

// Desc is the gRPC service descriptor for [Server].
var Desc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BeginTransaction", Handler: beginTransactionHandler},
		{MethodName: "Commit", Handler: commitHandler},
		{MethodName: "Rollback", Handler: rollbackHandler},
		{MethodName: "ListDocuments", Handler: listDocumentsHandler},
		{MethodName: "ListCollectionIds", Handler: listCollectionIDsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "RunQuery", Handler: runQueryHandler, ServerStreams: true},
		{StreamName: "BatchGetDocuments", Handler: batchGetDocumentsHandler, ServerStreams: true},
	},
}

func beginTransactionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(BeginTransactionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).BeginTransaction(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodBeginTransaction}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).BeginTransaction(ctx, req.(*BeginTransactionRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func commitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CommitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Commit(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCommit}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func rollbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(RollbackRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Rollback(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRollback}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Rollback(ctx, req.(*RollbackRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func listDocumentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListDocumentsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ListDocuments(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListDocuments}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).ListDocuments(ctx, req.(*ListDocumentsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func listCollectionIDsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListCollectionIDsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ListCollectionIDs(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListCollectionIDs}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).ListCollectionIDs(ctx, req.(*ListCollectionIDsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func runQueryHandler(srv any, stream grpc.ServerStream) error {
	req := new(RunQueryRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Server).RunQuery(req, &runQueryServerStream{stream})
}

func batchGetDocumentsHandler(srv any, stream grpc.ServerStream) error {
	req := new(BatchGetDocumentsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Server).BatchGetDocuments(req, &batchGetServerStream{stream})
}

type runQueryServerStream struct {
	grpc.ServerStream
}

func (s *runQueryServerStream) Send(resp *RunQueryResponse) error {
	return s.ServerStream.SendMsg(resp)
}

type batchGetServerStream struct {
	grpc.ServerStream
}

func (s *batchGetServerStream) Send(resp *BatchGetDocumentsResponse) error {
	return s.ServerStream.SendMsg(resp)
}
