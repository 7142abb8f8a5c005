// Package notionsync mirrors a user's recurring bills onto a Notion
// database so they can be reviewed on a board.
package notionsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/logger"
)

// MerchantStore lists tagged merchants.
type MerchantStore interface {
	ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error)
}

// SyncResult counts page operations.
type SyncResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncBills makes the database hold exactly the user's active tagged
// merchants. Pages of this user whose bill is gone or inactive are
// archived; pages of other users are left alone. Per-page failures are
// logged and counted, not returned.
func SyncBills(ctx context.Context, store MerchantStore, notion NotionService, databaseID, userID string, dryRun bool) (*SyncResult, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Bool("dry_run", dryRun).Logger()
	res := &SyncResult{}

	merchants, err := store.ListTaggedMerchants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SyncBills: list merchants: %w", err)
	}
	active := make(map[string]domain.TaggedMerchant)
	for _, m := range merchants {
		if m.IsActive {
			active[BillID(m)] = m
		}
	}

	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return nil, fmt.Errorf("SyncBills: %w", err)
	}
	log.Info().Int("bills", len(active)).Int("notion_pages", len(pages)).Msg("Starting bills sync to Notion")

	prefix := userID + ":"
	existing := make(map[string]string)
	for _, page := range pages {
		id := extractBillID(page)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if _, ok := active[id]; ok {
			existing[id] = string(page.ID)
			continue
		}
		if dryRun {
			log.Info().Str("bill_id", id).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("bill_id", id).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, m := range merchants {
		if !m.IsActive {
			continue
		}
		id := BillID(m)
		pageID, found := existing[id]
		if dryRun {
			if found {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		props := BillToNotionProperties(m)
		if found {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("bill_id", id).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}
		if _, err := notion.CreatePage(ctx, databaseID, props); err != nil {
			log.Warn().Err(err).Str("bill_id", id).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Bills sync completed")
	return res, nil
}

func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return allPages, nil
}
