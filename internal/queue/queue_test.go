package queue

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
	"github.com/OFFIS-RIT/depgraph/pkg/store/memory"
	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	declared  []string
	published []published
	failWith  error
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

type acker struct {
	acks, nacks int
	requeued    bool
}

func (a *acker) Ack(tag uint64, multiple bool) error { a.acks++; return nil }

func (a *acker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error { return nil }

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func treeSpec() *schema.VertexSpec {
	return &schema.VertexSpec{
		Category: common.CategoryMicroService,
		Name:     "dep-graph-builder",
		Type:     "mono",
		Dependencies: []*schema.VertexSpec{
			{Category: common.CategorySystemModule, Name: "edge/edge.service.js", Type: "Class"},
		},
	}
}

func newHandler(t *testing.T, locker Locker) (*Handler, *graph.Builder) {
	t.Helper()
	b, err := graph.NewBuilder(graph.NewBuilderParams{Connector: memory.New()})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	h, err := NewHandler(NewHandlerParams{Creator: b, Locker: locker})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, b
}

func body(t *testing.T, spec *schema.VertexSpec) []byte {
	t.Helper()
	m, err := NewVertexMessage(spec)
	if err != nil {
		t.Fatalf("NewVertexMessage() error = %v", err)
	}
	if m.CorrelationID == "" {
		t.Fatal("empty correlation id")
	}
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return b
}

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, VertexQueue); err != nil {
		t.Fatalf("SetupQueues() error = %v", err)
	}
	want := []string{"vertex_queue", "vertex_queue_dlq", "vertex_queue_retry"}
	if !reflect.DeepEqual(ch.declared, want) {
		t.Fatalf("declared = %v, want %v", ch.declared, want)
	}
}

func TestHandleCreatesTreeUnderLease(t *testing.T) {
	locker := &recordingLocker{}
	h, b := newHandler(t, locker)

	if err := h.Handle(context.Background(), body(t, treeSpec())); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reflect.DeepEqual(locker.keys, []string{"vertex:microService///dep-graph-builder"}) {
		t.Fatalf("lease keys = %v", locker.keys)
	}
	_, err := b.GetVertex(context.Background(), common.VertexQuery{
		Category:     common.CategorySystemModule,
		Name:         "edge/edge.service.js",
		MicroService: "dep-graph-builder",
	})
	if err != nil {
		t.Fatalf("GetVertex() error = %v", err)
	}
}

func TestHandlePermanentFailures(t *testing.T) {
	forbidden := treeSpec()
	forbidden.SourceCode = "not allowed on a micro service"
	missingType := treeSpec()
	missingType.Dependencies[0].Type = ""

	tests := []struct {
		name string
		body []byte
	}{
		{name: "not json", body: []byte("{")},
		{name: "no vertex", body: []byte(`{"correlation_id":"x"}`)},
		{name: "forbidden field", body: body(t, forbidden)},
		{name: "invalid tree", body: body(t, missingType)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandler(t, nil)
			if err := h.Handle(context.Background(), tt.body); !errors.Is(err, ErrPermanent) {
				t.Fatalf("Handle() error = %v, want ErrPermanent", err)
			}
		})
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		headers amqp091.Table
		want    int
	}{
		{headers: nil, want: 0},
		{headers: amqp091.Table{"x-retries": int32(3)}, want: 3},
		{headers: amqp091.Table{"x-retries": int64(7)}, want: 7},
		{headers: amqp091.Table{"x-retries": "9"}, want: 0},
	}
	for _, tt := range tests {
		if got := Retries(tt.headers); got != tt.want {
			t.Errorf("Retries(%v) = %d, want %d", tt.headers, got, tt.want)
		}
	}
}

func TestProcess(t *testing.T) {
	valid := body(t, treeSpec())

	tests := []struct {
		name       string
		body       []byte
		headers    amqp091.Table
		publishErr error
		want       string
		wantTarget string
	}{
		{name: "success", body: valid, want: OutcomeOK},
		{name: "malformed body", body: []byte("{"), want: OutcomeDeadLetter, wantTarget: "vertex_queue_dlq"},
		{name: "redelivered success", body: valid, headers: amqp091.Table{"x-retries": int32(MaxRetries)}, want: OutcomeOK},
		{name: "republish fails", body: []byte("{"), publishErr: errors.New("channel closed"), want: OutcomeRequeued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandler(t, nil)
			ch := &fakeChannel{failWith: tt.publishErr}
			a := &acker{}
			msg := amqp091.Delivery{Acknowledger: a, Body: tt.body, Headers: tt.headers}

			if got := Process(context.Background(), ch, h, msg, VertexQueue); got != tt.want {
				t.Fatalf("Process() = %q, want %q", got, tt.want)
			}
			switch tt.want {
			case OutcomeOK, OutcomeDeadLetter:
				if a.acks != 1 {
					t.Fatalf("acks = %d, want 1", a.acks)
				}
			case OutcomeRequeued:
				if a.nacks != 1 || !a.requeued {
					t.Fatalf("nacks = %d requeued = %v", a.nacks, a.requeued)
				}
			}
			if tt.wantTarget != "" && (len(ch.published) != 1 || ch.published[0].key != tt.wantTarget) {
				t.Fatalf("published = %+v, want one message to %s", ch.published, tt.wantTarget)
			}
		})
	}
}

type failingCreator struct{}

func (failingCreator) CreateVertex(ctx context.Context, v common.Vertex, s store.Session) ([]*common.VertexRecord, error) {
	return nil, errors.New("backend unavailable")
}

func TestProcessRetryThenDeadLetter(t *testing.T) {
	h, err := NewHandler(NewHandlerParams{Creator: failingCreator{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	b := body(t, treeSpec())

	ch := &fakeChannel{}
	msg := amqp091.Delivery{Acknowledger: &acker{}, Body: b, Headers: amqp091.Table{"x-retries": int32(2)}}
	if got := Process(context.Background(), ch, h, msg, VertexQueue); got != OutcomeRetry {
		t.Fatalf("Process() = %q, want retry", got)
	}
	p := ch.published[0]
	if p.key != "vertex_queue_retry" || p.msg.Headers["x-retries"] != int32(3) {
		t.Fatalf("published %s with headers %v", p.key, p.msg.Headers)
	}

	msg.Headers = amqp091.Table{"x-retries": int32(MaxRetries)}
	if got := Process(context.Background(), ch, h, msg, VertexQueue); got != OutcomeDeadLetter {
		t.Fatalf("Process() = %q, want dead_letter", got)
	}
	if ch.published[1].key != "vertex_queue_dlq" || ch.published[1].msg.Headers["x-error"] != "backend unavailable" {
		t.Fatalf("published %+v", ch.published[1])
	}
}
