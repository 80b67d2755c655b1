package graph

import (
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

// NotFoundError reports a vertex that could not be resolved. Side is "from"
// or "to" when the vertex was an edge endpoint and empty otherwise.
type NotFoundError struct {
	Side  string
	Query common.VertexQuery
}

func (e *NotFoundError) Error() string {
	payload, _ := json.Marshal(e.Query)
	if e.Side == "" {
		return fmt.Sprintf("vertex not found: %s", payload)
	}
	return fmt.Sprintf("vertex %s not found: %s", e.Side, payload)
}

// TransactionError is returned by CreateVertex. Cause is the first error hit
// while writing the tree; RollbackErr is set when the compensating rollback
// failed as well.
type TransactionError struct {
	Cause       error
	RollbackErr error
}

func (e *TransactionError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("failed to create vertex: failed to rollback due to %v after: %v", e.RollbackErr, e.Cause)
	}
	return fmt.Sprintf("failed to create vertex: %v", e.Cause)
}

func (e *TransactionError) Unwrap() []error {
	errs := []error{e.Cause}
	if e.RollbackErr != nil {
		errs = append(errs, e.RollbackErr)
	}
	return errs
}
