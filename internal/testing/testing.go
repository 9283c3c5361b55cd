// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/shibest/mycelius/internal/models"
)

// MemoryTokenStore is an in-memory token store for controller tests.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[models.Service]models.TokenRecord
	// SetErr, when non-nil, is returned by every Set call.
	SetErr error
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[models.Service]models.TokenRecord)}
}

func (m *MemoryTokenStore) Get(service models.Service) (*models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[service]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryTokenStore) Set(service models.Service, record *models.TokenRecord) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *record
	r.Service = service
	m.records[service] = r
	return nil
}

func (m *MemoryTokenStore) Clear(service models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, service)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryTokenStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// StubScorer returns a canned reply and records every prompt it receives.
type StubScorer struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Prompts []string
}

func (s *StubScorer) Score(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	return s.Reply, s.Err
}

// Calls returns how many prompts were scored.
func (s *StubScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// JSONHandler replies with status and a raw JSON body.
func JSONHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
