package engine

import "errors"

var (
	// ErrUnknownNodeType is recorded when a node's type has no handler.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNodeNotFound is recorded when the instance points at a node the graph does not contain.
	ErrNodeNotFound = errors.New("node not found in graph")

	// ErrMissingEdge is recorded when a non-terminal node has no outgoing edge for its result.
	ErrMissingEdge = errors.New("no outgoing edge")

	// ErrCycleDetected is recorded when a single step visits more nodes than the graph holds.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNotPaused is returned by Resume for instances that are not paused.
	ErrNotPaused = errors.New("instance is not paused")
)
