// Package profilefake provides an in-memory profile source for tests.
package profilefake

import (
	"context"
	"sync"

	"github.com/jking1031/ZZIOT2.0-sub002/profile"
)

type FakeSource struct {
	mu         sync.Mutex
	Profile    *profile.UserProfile
	Err        error
	FetchCount int
}

var _ profile.Source = (*FakeSource)(nil)

func New(userProfile *profile.UserProfile) *FakeSource {
	return &FakeSource{Profile: userProfile}
}

func (f *FakeSource) Fetch(_ context.Context) (*profile.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCount++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Profile, nil
}

// Fetches reports how many times Fetch was called.
func (f *FakeSource) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FetchCount
}
