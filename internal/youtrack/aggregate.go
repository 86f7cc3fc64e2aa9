package youtrack

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// GetIssueFull fetches an issue and the requested sub-resources and merges
// them into one IssueFull. The base issue is fetched first; if that fails
// the whole call fails with the same fault. Requested sub-resources are
// then fetched concurrently and the first failure cancels the rest, so a
// partial aggregate is never returned. Serialized output keeps the fixed
// order issue, comments, attachments, work items regardless of fetch
// completion order.
func (c *Client) GetIssueFull(ctx context.Context, issueID string, include IncludeOptions) (*IssueFull, error) {
	issue, err := c.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	full := &IssueFull{Issue: *issue}

	// Each goroutine fills a distinct field of full.
	g, gctx := errgroup.WithContext(ctx)
	if include.Comments {
		g.Go(func() error {
			comments, err := c.ListComments(gctx, issueID)
			if err != nil {
				return err
			}
			full.Comments = comments
			return nil
		})
	}
	if include.Attachments {
		g.Go(func() error {
			attachments, err := c.ListAttachments(gctx, issueID)
			if err != nil {
				return err
			}
			full.Attachments = attachments
			return nil
		})
	}
	if include.WorkItems {
		g.Go(func() error {
			items, err := c.ListWorkItems(gctx, issueID)
			if err != nil {
				return err
			}
			full.WorkItems = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return full, nil
}
