// internal/types/interfaces.go
package types

import (
	"context"
)

// ActivityFetcher fetches one page of a session's activity log. A replayed
// token must return the same page. Errors carry no partial page.
type ActivityFetcher interface {
	FetchActivitiesPage(ctx context.Context, sessionID SessionID, pageToken string, pageSize int) (*ActivityPage, error)
}

// FetchFunc adapts a plain function to ActivityFetcher.
type FetchFunc func(ctx context.Context, sessionID SessionID, pageToken string, pageSize int) (*ActivityPage, error)

func (f FetchFunc) FetchActivitiesPage(ctx context.Context, sessionID SessionID, pageToken string, pageSize int) (*ActivityPage, error) {
	return f(ctx, sessionID, pageToken, pageSize)
}
