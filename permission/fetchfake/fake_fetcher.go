// Package fetchfake provides an in-memory grant fetcher for tests.
package fetchfake

import (
	"context"
	"sync"

	"github.com/jking1031/ZZIOT2.0-sub002/permission"
)

type FakeFetcher struct {
	mu     sync.Mutex
	grants map[string][]permission.Grant
	errs   map[string]error
	calls  map[string]int
}

var _ permission.Fetcher = (*FakeFetcher)(nil)

func New() *FakeFetcher {
	return &FakeFetcher{
		grants: make(map[string][]permission.Grant),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetGrants installs the grant list returned for a department.
func (f *FakeFetcher) SetGrants(departmentID string, grants []permission.Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[departmentID] = grants
	delete(f.errs, departmentID)
}

// SetError makes fetches for a department fail.
func (f *FakeFetcher) SetError(departmentID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[departmentID] = err
}

func (f *FakeFetcher) FetchDepartmentGrants(_ context.Context, departmentID string) ([]permission.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[departmentID]++
	if err := f.errs[departmentID]; err != nil {
		return nil, err
	}
	return f.grants[departmentID], nil
}

// Calls reports how many fetches were made for a department.
func (f *FakeFetcher) Calls(departmentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[departmentID]
}

// TotalCalls reports fetches across all departments.
func (f *FakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
