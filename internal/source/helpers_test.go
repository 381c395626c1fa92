package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-scraper/internal/fetcher"
)

// mockFetcher serves canned bodies by URL and 404s everything else.
type mockFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	calls []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{pages: make(map[string][]byte)}
}

func (m *mockFetcher) serve(url string, body []byte) *mockFetcher {
	m.pages[url] = body
	return m
}

func (m *mockFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	body, ok := m.pages[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: 404}
	}
	return body, nil
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
	}
}
