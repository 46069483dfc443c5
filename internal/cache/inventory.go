package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	CatalogKeyPrefix  = "catalog:%s"
	ProfileKeyPrefix  = "profile:%s"
	CommentsKeyPrefix = "comments:%s:%s"
)

const (
	// CatalogTTL bounds how stale view counts in listings may get.
	CatalogTTL  = 30 * time.Second
	ProfileTTL  = 5 * time.Minute
	CommentsTTL = 2 * time.Minute
)

// CatalogKey holds the listing snapshot of one collection ("game", "lab", "article").
func CatalogKey(collection string) string {
	return fmt.Sprintf(CatalogKeyPrefix, collection)
}

func ProfileKey(userID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func CommentsKey(parentType, parentID string) string {
	return fmt.Sprintf(CommentsKeyPrefix, parentType, parentID)
}

// InvalidateContent drops a collection snapshot and the comment thread of
// one of its entries.
func InvalidateContent(ctx context.Context, collection, id string) {
	Invalidate(ctx, CatalogKey(collection), CommentsKey(collection, id))
}

// InvalidateCatalogs drops every listing snapshot.
func InvalidateCatalogs(ctx context.Context) {
	Invalidate(ctx, CatalogKey("game"), CatalogKey("lab"), CatalogKey("article"))
}
