package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Creator persists a vertex tree; *graph.Builder implements it.
type Creator interface {
	CreateVertex(ctx context.Context, v common.Vertex, session store.Session) ([]*common.VertexRecord, error)
}

// Locker is implemented by *leaselock.Client.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Handler turns vertex_queue messages into CreateVertex calls.
type Handler struct {
	creator  Creator
	locker   Locker
	lockOpts leaselock.Options
}

// NewHandlerParams configures a Handler. Locker is optional; with it, trees
// sharing a root scoping key are written one at a time across workers.
type NewHandlerParams struct {
	Creator  Creator
	Locker   Locker
	LockOpts leaselock.Options
}

func NewHandler(params NewHandlerParams) (*Handler, error) {
	if params.Creator == nil {
		return nil, errors.New("queue handler needs a creator")
	}
	opts := params.LockOpts
	opts.Wait = true
	if opts.TokenPrefix == "" {
		opts.TokenPrefix = "worker-"
	}
	return &Handler{creator: params.Creator, locker: params.Locker, lockOpts: opts}, nil
}

// Handle processes one message body.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	start := time.Now()
	msg, err := ParseVertexMessage(body)
	if err != nil {
		return err
	}

	vertex, err := schema.Decode(msg.Vertex)
	if err != nil {
		return Permanent(err)
	}

	create := func(ctx context.Context) error {
		records, err := h.creator.CreateVertex(ctx, vertex, "")
		if err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				return Permanent(err)
			}
			return err
		}
		logger.Info("[Queue] Vertex tree created",
			"correlation_id", msg.CorrelationID,
			"root", vertex.Base().Name,
			"vertices", len(records),
			"duration", time.Since(start))
		return nil
	}

	if h.locker == nil {
		return create(ctx)
	}
	return h.locker.WithLease(ctx, leaselock.KeyFor(vertex.Key()), h.lockOpts, create)
}
