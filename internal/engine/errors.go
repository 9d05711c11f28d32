package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while driving directives.
//
// Runtime errors include:
//   - Unknown node: a command addressed a node that does not exist
//   - Duplicate node: a node id is already registered
//   - Unknown directive: an activation named a directive the node lacks
//   - Resolution depth: a computed descriptor kept returning descriptors
//   - Resolution panic: a user function panicked during resolution
//
// Resolution errors never escape Tick; they are logged and the directive
// degrades. They are returned from the public command methods.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// NodeID identifies the affected node.
	NodeID string

	// Name identifies the affected directive.
	Name string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownNode indicates the node id is not registered.
	ErrCodeUnknownNode RuntimeErrorCode = "UNKNOWN_NODE"

	// ErrCodeDuplicateNode indicates the node id is already registered.
	ErrCodeDuplicateNode RuntimeErrorCode = "DUPLICATE_NODE"

	// ErrCodeUnknownDirective indicates the node has no such directive.
	ErrCodeUnknownDirective RuntimeErrorCode = "UNKNOWN_DIRECTIVE"

	// ErrCodeResolveDepth indicates descriptor nesting exceeded the limit.
	ErrCodeResolveDepth RuntimeErrorCode = "RESOLVE_DEPTH"

	// ErrCodeResolvePanic indicates a user function panicked.
	ErrCodeResolvePanic RuntimeErrorCode = "RESOLVE_PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.NodeID != "" && e.Name != "" {
		return fmt.Sprintf("%s: %s (node=%s, directive=%s)", e.Code, e.Message, e.NodeID, e.Name)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownNode returns true if the error reports a missing node.
// Uses errors.As to handle wrapped errors.
func IsUnknownNode(err error) bool {
	return hasCode(err, ErrCodeUnknownNode)
}

// IsUnknownDirective returns true if the error reports a missing directive.
func IsUnknownDirective(err error) bool {
	return hasCode(err, ErrCodeUnknownDirective)
}

// IsResolveError returns true for depth and panic resolution failures.
func IsResolveError(err error) bool {
	return hasCode(err, ErrCodeResolveDepth) || hasCode(err, ErrCodeResolvePanic)
}

// NewUnknownNodeError creates a RuntimeError for a missing node.
func NewUnknownNodeError(nodeID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownNode,
		Message: "node is not registered",
		NodeID:  nodeID,
	}
}

// NewDuplicateNodeError creates a RuntimeError for a reused node id.
func NewDuplicateNodeError(nodeID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDuplicateNode,
		Message: "node id already registered",
		NodeID:  nodeID,
	}
}

// NewUnknownDirectiveError creates a RuntimeError for a missing directive.
func NewUnknownDirectiveError(nodeID, name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownDirective,
		Message: "node has no such directive",
		NodeID:  nodeID,
		Name:    name,
	}
}

// NewResolveDepthError creates a RuntimeError for runaway nesting.
func NewResolveDepthError(nodeID, name string, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeResolveDepth,
		Message: fmt.Sprintf("descriptor nesting exceeded %d levels", limit),
		NodeID:  nodeID,
		Name:    name,
	}
}

// NewResolvePanicError creates a RuntimeError for a recovered panic.
func NewResolvePanicError(nodeID, name string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeResolvePanic,
		Message: fmt.Sprintf("user function panicked: %v", recovered),
		NodeID:  nodeID,
		Name:    name,
	}
}
