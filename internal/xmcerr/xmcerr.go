// Package xmcerr defines the typed error taxonomy used across the training
// and prediction engine: IO, Parse, Shape, Config, Resource and Topology
// errors. Each kind is a distinct type so callers can discriminate with
// errors.As instead of string matching.
package xmcerr

import "fmt"

// Context carries optional file/line/label context attached to an error.
type Context struct {
	File  string
	Line  int
	Label int64 // -1 if not applicable
}

func (c Context) String() string {
	if c.File == "" && c.Line == 0 && c.Label < 0 {
		return ""
	}

	s := ""
	if c.File != "" {
		s += c.File
		if c.Line > 0 {
			s += fmt.Sprintf(":%d", c.Line)
		}
	}

	if c.Label >= 0 {
		if s != "" {
			s += " "
		}

		s += fmt.Sprintf("label=%d", c.Label)
	}

	return s
}

// IOError wraps open/read/write failures and truncated files.
type IOError struct {
	Context
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if ctx := e.Context.String(); ctx != "" {
		return fmt.Sprintf("io: %s: %v (%s)", e.Op, e.Err, ctx)
	}

	return fmt.Sprintf("io: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError builds an IOError with no extra context.
func NewIOError(op string, err error) *IOError {
	return &IOError{Context: Context{Label: -1}, Op: op, Err: err}
}

// ParseError covers malformed headers, numeric tokens, duplicate/unknown
// keys, negative dimensions and non-unit binary values.
type ParseError struct {
	Context
	Msg string
}

func (e *ParseError) Error() string {
	if ctx := e.Context.String(); ctx != "" {
		return fmt.Sprintf("parse: %s (%s)", e.Msg, ctx)
	}

	return fmt.Sprintf("parse: %s", e.Msg)
}

// NewParseError builds a ParseError at the given file/line.
func NewParseError(file string, line int, format string, args ...any) *ParseError {
	return &ParseError{Context: Context{File: file, Line: line, Label: -1}, Msg: fmt.Sprintf(format, args...)}
}

// ShapeError covers feature/label count mismatches, result-buffer
// dimension mismatches and out-of-range labels.
type ShapeError struct {
	Context
	Msg string
}

func (e *ShapeError) Error() string {
	if ctx := e.Context.String(); ctx != "" {
		return fmt.Sprintf("shape: %s (%s)", e.Msg, ctx)
	}

	return fmt.Sprintf("shape: %s", e.Msg)
}

// NewShapeError builds a ShapeError, optionally tied to a label.
func NewShapeError(label int64, format string, args ...any) *ShapeError {
	return &ShapeError{Context: Context{Label: label}, Msg: fmt.Sprintf(format, args...)}
}

// ConfigError covers invalid hyperparameters and contradictory flags.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s", e.Msg) }

// NewConfigError builds a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ResourceError covers thread spawn and affinity bind failures.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string { return fmt.Sprintf("resource: %s: %v", e.Op, e.Err) }
func (e *ResourceError) Unwrap() error { return e.Err }

// NewResourceError builds a ResourceError.
func NewResourceError(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Err: err}
}

// TopologyError records a disabled NUMA node reference. This is never
// fatal: it is logged and the caller substitutes the single authoritative
// copy. The type still exists so callers that want to know about the
// substitution can inspect it.
type TopologyError struct {
	NodeID int
	Msg    string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology: node %d: %s", e.NodeID, e.Msg)
}

// NewTopologyError builds a TopologyError.
func NewTopologyError(nodeID int, format string, args ...any) *TopologyError {
	return &TopologyError{NodeID: nodeID, Msg: fmt.Sprintf(format, args...)}
}

// FailedLabel records a per-label training error that did not abort the run.
type FailedLabel struct {
	Label int64
	Err   error
}

func (f FailedLabel) String() string {
	return fmt.Sprintf("label %d: %v", f.Label, f.Err)
}
