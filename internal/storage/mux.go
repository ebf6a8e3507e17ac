package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SchemeFetcher dispatches to a Fetcher registered for the URL's scheme
type SchemeFetcher struct {
	fetchers map[string]Fetcher
}

func NewSchemeFetcher() *SchemeFetcher {
	return &SchemeFetcher{fetchers: make(map[string]Fetcher)}
}

// Handle registers f for each scheme, replacing any previous registration
func (m *SchemeFetcher) Handle(f Fetcher, schemes ...string) *SchemeFetcher {
	for _, s := range schemes {
		m.fetchers[strings.ToLower(s)] = f
	}
	return m
}

func (m *SchemeFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	f, ok := m.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, u)
}
