package actions

import (
	"context"
	"fmt"
	"sync"
)

// MockLookup is a mock implementation of the Lookup interface for testing.
// Calls to an operation without a handler fail with a TransportError.
type MockLookup struct {
	GetRefFunc    func(owner, repo, refPath string) (*RefObject, error)
	GetTagFunc    func(owner, repo, tagSHA string) (string, error)
	GetCommitFunc func(owner, repo, shaOrRef string) (string, error)

	mu    sync.Mutex
	calls []string
}

// Ensure MockLookup implements Lookup
var _ Lookup = (*MockLookup)(nil)

func (m *MockLookup) GetRef(_ context.Context, owner, repo, refPath string) (*RefObject, error) {
	m.called("ref " + refPath)
	if m.GetRefFunc != nil {
		return m.GetRefFunc(owner, repo, refPath)
	}
	return nil, unhandled("GetRef", refPath)
}

func (m *MockLookup) GetTag(_ context.Context, owner, repo, tagSHA string) (string, error) {
	m.called("tag " + tagSHA)
	if m.GetTagFunc != nil {
		return m.GetTagFunc(owner, repo, tagSHA)
	}
	return "", unhandled("GetTag", tagSHA)
}

func (m *MockLookup) GetCommit(_ context.Context, owner, repo, shaOrRef string) (string, error) {
	m.called("commit " + shaOrRef)
	if m.GetCommitFunc != nil {
		return m.GetCommitFunc(owner, repo, shaOrRef)
	}
	return "", unhandled("GetCommit", shaOrRef)
}

// Calls returns the operations issued so far, e.g. "ref tags/v1", "tag <sha>", "commit <sha>".
func (m *MockLookup) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockLookup) called(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func unhandled(op, target string) error {
	return &TransportError{Err: fmt.Errorf("mock: no handler for %s(%s)", op, target)}
}
