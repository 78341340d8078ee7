// Package telemetry is how components report what happened to them. Components
// receive an API instead of logging directly so tests can assert on reports.
package telemetry

import (
	"fmt"
)

// API reports events of a component.
//
// Ids name the component and method that reported, as `<struct>.<method>`, all
// lowercase with dashes between words (`submit.client`, `resolver.non-numeric-cell`).
// Details go in params or in a wrapped error, never in the id.
type API interface {
	// ReportBroken reports a failure that aborts the work in progress.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something that was recovered from but may explain a
	// wrong answer later on.
	ReportWarning(id string, params ...any)
	// ReportDebug is dropped unless running verbose.
	ReportDebug(msg string, params ...any)
	// ReportCount reports a point in time value, counts are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, nesting scopes stacks the
// prefixes outermost first.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
