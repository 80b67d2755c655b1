package graph

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// Builder turns vertex trees into vertices and Uses edges in a graph backend
// and answers lookups and traversals against it. It owns no storage; all
// state lives behind the connector.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	connector store.Connector
	validator *schema.Validator
	observer  Observer
}

// NewBuilderParams defines the collaborators of a Builder.
//
// Connector is required. Validator defaults to schema.New(). Observer is
// optional and receives counts and timings of every CreateVertex call.
type NewBuilderParams struct {
	Connector store.Connector
	Validator *schema.Validator
	Observer  Observer
}

// NewBuilder creates a Builder.
//
// Example:
//
//	registry := providers.Connectors()
//	conn, err := registry.New(ctx, "ARCADEDB", opts)
//	if err != nil {
//		log.Fatal(err)
//	}
//	b, err := graph.NewBuilder(graph.NewBuilderParams{Connector: conn})
func NewBuilder(params NewBuilderParams) (*Builder, error) {
	if params.Connector == nil {
		return nil, errors.New("graph builder needs a connector")
	}
	v := params.Validator
	if v == nil {
		v = schema.New()
	}
	o := params.Observer
	if o == nil {
		o = nopObserver{}
	}
	return &Builder{connector: params.Connector, validator: v, observer: o}, nil
}

// Observer is notified about the outcome of write operations.
type Observer interface {
	VertexCreated(c common.Category)
	VertexMerged(c common.Category)
	EdgeLinked()
	SessionCommitted()
	SessionRolledBack()
	CreateVertexDone(d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) VertexCreated(common.Category)         {}
func (nopObserver) VertexMerged(common.Category)          {}
func (nopObserver) EdgeLinked()                           {}
func (nopObserver) SessionCommitted()                     {}
func (nopObserver) SessionRolledBack()                    {}
func (nopObserver) CreateVertexDone(time.Duration, error) {}

// InitGraph prepares the backend schema.
func (b *Builder) InitGraph(ctx context.Context) error {
	return b.connector.InitGraph(ctx)
}
