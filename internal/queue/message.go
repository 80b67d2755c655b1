package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/schema"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// VertexMessage is the body of a vertex_queue message.
type VertexMessage struct {
	CorrelationID string             `json:"correlation_id"`
	Vertex        *schema.VertexSpec `json:"vertex"`
}

// NewVertexMessage wraps spec with a fresh correlation id.
func NewVertexMessage(spec *schema.VertexSpec) (*VertexMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &VertexMessage{CorrelationID: id, Vertex: spec}, nil
}

func (m *VertexMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseVertexMessage decodes a message body. Malformed bodies are permanent
// failures.
func ParseVertexMessage(body []byte) (*VertexMessage, error) {
	var m VertexMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, Permanent(fmt.Errorf("malformed vertex message: %w", err))
	}
	if m.Vertex == nil {
		return nil, Permanent(errors.New("vertex message has no vertex"))
	}
	return &m, nil
}
