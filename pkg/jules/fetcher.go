package jules

import (
	"context"

	"github.com/user/gules/internal/types"
)

// PageFetcher adapts a Client to types.ActivityFetcher.
type PageFetcher struct {
	Client *Client
}

var _ types.ActivityFetcher = PageFetcher{}

func (f PageFetcher) FetchActivitiesPage(ctx context.Context, id types.SessionID, pageToken string, pageSize int) (*types.ActivityPage, error) {
	return f.Client.ListActivities(ctx, id, pageToken, pageSize)
}
