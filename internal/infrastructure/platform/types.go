package platform

import (
	"encoding/json"
	"strings"

	domain "github.com/shopsight/backend/internal/domain/platform"
)

// graphQLRequest is the wire envelope for every admin API call
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLError is one top-level error returned by the admin API
type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// graphQLResponse is the wire envelope of every admin API response
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// userError is a validation failure reported inside a mutation payload
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// bulkOperationNode is the platform's view of one bulk operation
type bulkOperationNode struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	URL         string `json:"url"`
	ObjectCount int64  `json:"objectCount,string"`
	FileSize    int64  `json:"fileSize,string"`
}

// submitPayload is the bulkOperationRunQuery mutation result
type submitPayload struct {
	BulkOperationRunQuery struct {
		BulkOperation *bulkOperationNode `json:"bulkOperation"`
		UserErrors    []userError        `json:"userErrors"`
	} `json:"bulkOperationRunQuery"`
}

// pollPayload is the node(id:) poll query result
type pollPayload struct {
	Node *bulkOperationNode `json:"node"`
}

// operationStateFromWire maps the platform's status vocabulary onto the
// domain's four states. Unknown in-flight statuses count as running so a
// vocabulary addition on the platform side degrades to extra polls, not
// failed jobs.
func operationStateFromWire(status string) domain.OperationState {
	switch strings.ToUpper(status) {
	case "CREATED":
		return domain.OperationStateCreated
	case "COMPLETED":
		return domain.OperationStateCompleted
	case "FAILED", "CANCELED", "EXPIRED":
		return domain.OperationStateFailed
	default:
		return domain.OperationStateRunning
	}
}

// toStatus converts a wire node into the domain status
func (n *bulkOperationNode) toStatus() *domain.OperationStatus {
	return &domain.OperationStatus{
		State:       operationStateFromWire(n.Status),
		ErrorCode:   n.ErrorCode,
		URL:         n.URL,
		ObjectCount: n.ObjectCount,
		FileSize:    n.FileSize,
	}
}
