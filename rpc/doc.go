// Package rpc defines the wire contract between the docstore client and an
// Arbor backend.
//
// The package has two halves: the plain request/response messages plus the
// [Transport] interface consumed by docstore, and a ready-made gRPC binding
// of that interface ([NewGRPCTransport]) that speaks JSON-encoded messages
// over a standard *grpc.ClientConn.
//
// # Transport
//
// A Transport owns per-call policy: deadlines from [CallOptions.Timeout] and
// retries of idempotent unary methods. Layers above treat every method as a
// single logical call and never replay streams.
//
// # Streams
//
// RunQuery and BatchGetDocuments are server-streaming. Their stream values
// yield one response per [RunQueryStream.Recv] or [BatchGetStream.Recv] and
// return io.EOF when the backend is done. Abandoning a stream early is done
// by cancelling the context it was opened with.
//
// # Serving
//
// Servers and tests register handlers against [ServiceName] using the
// exported method name constants; the JSON codec is registered under the
// [CodecName] content subtype on both ends.
package rpc
