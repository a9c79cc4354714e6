package protocol

import "encoding/json"

// JSON-RPC 2.0 message types for agent mode communication.

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or int; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeWaitTimeout  = -32000
	CodeQueryFailed  = -32001
	CodePlanInvalid  = -32002
	CodeStoreFailure = -32003
)

// Method constants for all supported JSON-RPC methods.
const (
	// Element state waits.
	MethodWaitEnabled = "wait.enabled"
	MethodWaitValue   = "wait.value"

	// Fixture page manipulation.
	MethodPageSet = "page.set"
	MethodPageGet = "page.get"

	// Session context.
	MethodContextLastTarget = "context.last_target"

	// Wait history.
	MethodHistory = "history"

	// Wait plans.
	MethodPlanRun = "plan.run"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// Parameter and result types for the wait methods.

// WaitParams holds parameters for "wait.enabled" and "wait.value". A missing
// timeout_ms uses the configured default.
type WaitParams struct {
	Selector  string `json:"selector"`
	TimeoutMS *int   `json:"timeout_ms,omitempty"`
	Reverse   bool   `json:"reverse,omitempty"`
}

// WaitResult is returned when a wait succeeds.
type WaitResult struct {
	Command   string `json:"command"`
	Selector  string `json:"selector"`
	Reverse   bool   `json:"reverse"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// WaitErrorData accompanies a CodeWaitTimeout error.
type WaitErrorData struct {
	Command   string `json:"command"`
	Selector  string `json:"selector"`
	Reverse   bool   `json:"reverse"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// ElementDef describes one fixture element; enabled defaults to true.
type ElementDef struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Value   string `json:"value"`
}

// PageSetParams holds parameters for "page.set". Remove undeclares the selector.
type PageSetParams struct {
	Selector string       `json:"selector"`
	Elements []ElementDef `json:"elements"`
	Remove   bool         `json:"remove,omitempty"`
}

// PageGetParams holds parameters for "page.get". An empty selector lists all selectors.
type PageGetParams struct {
	Selector string `json:"selector,omitempty"`
}

// HistoryParams holds parameters for "history".
type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

// PlanRunParams holds parameters for "plan.run".
type PlanRunParams struct {
	Path     string            `json:"path"`
	Vars     map[string]string `json:"vars,omitempty"`
	FailFast bool              `json:"fail_fast,omitempty"`
}
