package designer

import "errors"

var (
	ErrSessionClosed      = errors.New("designer session is closed")
	ErrNodeNotFound       = errors.New("node not found")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrUnknownNodeType    = errors.New("unknown node type")
	ErrInvalidPort        = errors.New("invalid port")
	ErrSelfConnection     = errors.New("cannot connect a node to itself")
	ErrNoConnection       = errors.New("no connection in progress")
	ErrGraphEmpty         = errors.New("graph has no nodes")
	ErrUnknownConfigField = errors.New("unknown configuration field")
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)
