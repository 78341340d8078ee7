package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	Kind   string
	Id     string
	Params []any
}

// RecorderAPI is an API that keeps every report in memory so tests can assert on
// what a component reported.
type RecorderAPI struct {
	mu      sync.Mutex
	reports []Report
}

func (r *RecorderAPI) add(kind, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.add("count", id, []any{count})
}

func (r *RecorderAPI) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Has returns true if a report of the given kind has an id ending with `idSuffix`,
// scoped ids carry namespace prefixes so matching on the suffix is usually what you want.
func (r *RecorderAPI) Has(kind, idSuffix string) bool {
	for _, rep := range r.Reports() {
		if rep.Kind == kind && strings.HasSuffix(rep.Id, idSuffix) {
			return true
		}
	}
	return false
}
