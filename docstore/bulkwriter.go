package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jacentio/arbor/rpc"
)

const (
	// maxBatchWrites is the largest number of writes sent in one commit.
	maxBatchWrites = 20

	// numSenders bounds the commits in flight at once.
	numSenders = 10

	// maxWriteAttempts bounds the send attempts for one batch.
	maxWriteAttempts = 10

	// defaultOpsPerSecond is the starting throughput limit. The limit ramps
	// up by rampFactor every rampInterval, mirroring how the backend scales
	// fresh traffic.
	defaultOpsPerSecond = 500
	rampFactor          = 1.5
	rampInterval        = 5 * time.Minute
)

// BulkWriterOption customizes a [BulkWriter].
type BulkWriterOption func(*bulkWriterSettings)

type bulkWriterSettings struct {
	initialOpsPerSecond float64
	maxOpsPerSecond     float64
	onResult            func(*DocumentRef, *rpc.WriteResult)
	onError             func(*DocumentRef, error)
}

// WithInitialOpsPerSecond overrides the starting throughput limit. Values
// below one are ignored.
func WithInitialOpsPerSecond(n int) BulkWriterOption {
	return func(s *bulkWriterSettings) {
		if n >= 1 {
			s.initialOpsPerSecond = float64(n)
		}
	}
}

// WithMaxOpsPerSecond caps the throughput limit so the ramp-up stops there.
// Values below one are ignored.
func WithMaxOpsPerSecond(n int) BulkWriterOption {
	return func(s *bulkWriterSettings) {
		if n >= 1 {
			s.maxOpsPerSecond = float64(n)
		}
	}
}

// WithOnResult registers a callback invoked once per write that the backend
// acknowledged. Callbacks run on sender goroutines and must not block.
func WithOnResult(f func(*DocumentRef, *rpc.WriteResult)) BulkWriterOption {
	return func(s *bulkWriterSettings) { s.onResult = f }
}

// WithOnError registers a callback invoked once per write that failed
// terminally. Callbacks run on sender goroutines and must not block.
func WithOnError(f func(*DocumentRef, error)) BulkWriterOption {
	return func(s *bulkWriterSettings) { s.onError = f }
}

// BulkWriterStats summarizes a bulk writer's progress so far.
type BulkWriterStats struct {
	// Enqueued counts writes accepted by Create, Set, Update and Delete.
	Enqueued int64
	// Succeeded counts writes the backend acknowledged.
	Succeeded int64
	// Failed counts writes that failed terminally.
	Failed int64
}

// BulkWriter streams many standalone writes to the backend with batching,
// bounded concurrency and a ramped throughput limit. Writes are acknowledged
// through the [WithOnResult] and [WithOnError] callbacks rather than return
// values. Methods are safe for concurrent use.
type BulkWriter struct {
	c        *Client
	ctx      context.Context
	limiter  *rate.Limiter
	maxRate  rate.Limit
	onResult func(*DocumentRef, *rpc.WriteResult)
	onError  func(*DocumentRef, error)

	group   *errgroup.Group
	batches chan []*bulkOp

	mu        sync.Mutex
	cur       []*bulkOp
	pending   int
	idle      chan struct{}
	closed    bool
	lastRamp  time.Time
	enqueued  int64
	succeeded int64
	failed    int64

	closeOnce sync.Once
}

type bulkOp struct {
	ref   *DocumentRef
	write *rpc.Write
}

// BulkWriter creates a bulk writer bound to ctx. Cancelling ctx abandons
// in-flight and queued writes, which then fail with the context's error.
func (c *Client) BulkWriter(ctx context.Context, opts ...BulkWriterOption) *BulkWriter {
	s := bulkWriterSettings{initialOpsPerSecond: defaultOpsPerSecond}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxOpsPerSecond > 0 && s.initialOpsPerSecond > s.maxOpsPerSecond {
		s.initialOpsPerSecond = s.maxOpsPerSecond
	}

	initial := rate.Limit(s.initialOpsPerSecond)
	b := &BulkWriter{
		c:        c,
		ctx:      ctx,
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		maxRate:  rate.Limit(s.maxOpsPerSecond),
		onResult: s.onResult,
		onError:  s.onError,
		batches:  make(chan []*bulkOp, numSenders),
		lastRamp: time.Now(),
	}
	b.group, _ = errgroup.WithContext(ctx)
	for i := 0; i < numSenders; i++ {
		b.group.Go(b.sender)
	}
	return b
}

// Create enqueues a write that creates the document. It fails if the
// document already exists.
func (b *BulkWriter) Create(d *DocumentRef, data map[string]any) error {
	name, err := documentName(d)
	if err != nil {
		return err
	}
	return b.enqueue(d, newCreateWrite(name, data))
}

// Set enqueues a write that replaces the document's contents, or merges into
// them under [Merge].
func (b *BulkWriter) Set(d *DocumentRef, data map[string]any, opts ...SetOption) error {
	name, err := documentName(d)
	if err != nil {
		return err
	}
	return b.enqueue(d, newSetWrite(name, data, opts))
}

// Update enqueues a write that changes the named fields of an existing
// document.
func (b *BulkWriter) Update(d *DocumentRef, data map[string]any, preconds ...Precondition) error {
	name, err := documentName(d)
	if err != nil {
		return err
	}
	w, err := newUpdateWrite(name, data, preconds)
	if err != nil {
		return err
	}
	return b.enqueue(d, w)
}

// Delete enqueues a write that deletes the document.
func (b *BulkWriter) Delete(d *DocumentRef, preconds ...Precondition) error {
	name, err := documentName(d)
	if err != nil {
		return err
	}
	w, err := newDeleteWrite(name, preconds)
	if err != nil {
		return err
	}
	return b.enqueue(d, w)
}

func (b *BulkWriter) enqueue(ref *DocumentRef, w *rpc.Write) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBulkWriterClosed
	}
	b.cur = append(b.cur, &bulkOp{ref: ref, write: w})
	b.enqueued++
	b.pending++
	var batch []*bulkOp
	if len(b.cur) >= maxBatchWrites {
		batch = b.cur
		b.cur = nil
	}
	b.mu.Unlock()

	if batch != nil {
		b.send(batch)
	}
	return nil
}

// send hands a batch to the senders. The channel send happens outside the
// mutex so a full queue cannot deadlock against senders finishing batches.
func (b *BulkWriter) send(batch []*bulkOp) {
	select {
	case b.batches <- batch:
	case <-b.ctx.Done():
		b.finishBatch(batch, nil, b.ctx.Err())
	}
}

// Flush sends any partially filled batch and waits until every enqueued
// write has been acknowledged or has failed terminally.
func (b *BulkWriter) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.cur
	b.cur = nil
	done := b.idleLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.send(batch)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding writes and shuts the senders down. Further
// enqueues fail with [ErrBulkWriterClosed]. Close may be called more than
// once.
func (b *BulkWriter) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	err := b.Flush(ctx)
	b.closeOnce.Do(func() { close(b.batches) })
	if werr := b.group.Wait(); err == nil {
		err = werr
	}
	return err
}

// Stats reports the writer's progress so far.
func (b *BulkWriter) Stats() BulkWriterStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkWriterStats{
		Enqueued:  b.enqueued,
		Succeeded: b.succeeded,
		Failed:    b.failed,
	}
}

// idleLocked returns a channel that is closed once no writes are in flight.
func (b *BulkWriter) idleLocked() chan struct{} {
	if b.pending == 0 {
		done := make(chan struct{})
		close(done)
		return done
	}
	if b.idle == nil {
		b.idle = make(chan struct{})
	}
	return b.idle
}

// sender drains the batch queue until Close closes it or the writer's
// context ends, so an abandoned writer does not strand its goroutines.
func (b *BulkWriter) sender() error {
	for {
		select {
		case batch, ok := <-b.batches:
			if !ok {
				return nil
			}
			b.sendBatch(batch)
		case <-b.ctx.Done():
			b.drainFailed()
			return nil
		}
	}
}

// drainFailed fails the batches still queued at cancellation so flushes
// resolve instead of waiting on writes nobody will send.
func (b *BulkWriter) drainFailed() {
	for {
		select {
		case batch, ok := <-b.batches:
			if !ok {
				return
			}
			b.finishBatch(batch, nil, b.ctx.Err())
		default:
			return
		}
	}
}

// sendBatch commits one batch, retrying transient failures before reporting
// per-write outcomes.
func (b *BulkWriter) sendBatch(batch []*bulkOp) {
	writes := make([]*rpc.Write, len(batch))
	for i, op := range batch {
		writes[i] = op.write
	}

	// 1. Respect the throughput limit before touching the backend.
	if err := b.limiter.WaitN(b.ctx, len(writes)); err != nil {
		b.finishBatch(batch, nil, err)
		return
	}
	b.maybeRamp()

	// 2. Commit, retrying the batch while the failure is transient.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	var (
		results []*rpc.WriteResult
		err     error
	)
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if attempt > 1 {
			if serr := sleep(b.ctx, bo.NextBackOff()); serr != nil {
				break
			}
		}
		results, err = b.c.commitWrites(b.ctx, writes, nil)
		if err == nil || !retryableWrite(err) {
			break
		}
	}
	b.finishBatch(batch, results, err)
}

// finishBatch reports each write's outcome and releases the batch from the
// pending count.
func (b *BulkWriter) finishBatch(batch []*bulkOp, results []*rpc.WriteResult, err error) {
	if err == nil && len(results) != len(batch) {
		err = fmt.Errorf("arbor: expected %d write results, got %d", len(batch), len(results))
	}
	for i, op := range batch {
		if err != nil {
			if b.onError != nil {
				b.onError(op.ref, err)
			}
		} else if b.onResult != nil {
			b.onResult(op.ref, results[i])
		}
	}

	b.mu.Lock()
	if err != nil {
		b.failed += int64(len(batch))
	} else {
		b.succeeded += int64(len(batch))
	}
	b.pending -= len(batch)
	if b.pending == 0 && b.idle != nil {
		close(b.idle)
		b.idle = nil
	}
	b.mu.Unlock()
}

// maybeRamp raises the throughput limit once per ramp interval, up to the
// configured ceiling.
func (b *BulkWriter) maybeRamp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if time.Since(b.lastRamp) < rampInterval {
		return
	}
	b.lastRamp = time.Now()
	limit := b.limiter.Limit() * rampFactor
	if b.maxRate > 0 && limit > b.maxRate {
		limit = b.maxRate
	}
	b.limiter.SetLimit(limit)
	b.limiter.SetBurst(burstFor(limit))
}

// burstFor sizes the limiter's burst for a throughput limit. The burst must
// cover a full batch, or WaitN would reject full batches outright at low
// limits instead of throttling them.
func burstFor(limit rate.Limit) int {
	if limit < maxBatchWrites {
		return maxBatchWrites
	}
	return int(limit)
}

// retryableWrite reports whether a failed commit is worth resending.
func retryableWrite(err error) bool {
	switch status.Code(err) {
	case codes.Aborted, codes.Unavailable, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
