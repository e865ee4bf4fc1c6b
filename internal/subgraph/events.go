package subgraph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/model"
)

const payEventFields = `
    id
    project { handle metadataUri }
    amount
    projectId
    beneficiary
    txHash
    pv
    timestamp`

const projectCreateEventFields = `
    id
    project { handle metadataUri }
    from
    projectId
    txHash
    pv
    timestamp`

// eventsQuery selects one page of entity rows strictly newer than since.
// Pages are keyed by id rather than skip, which the subgraph caps.
func eventsQuery(entity, fields string, since int64, first int, afterID string) string {
	return fmt.Sprintf(`{
  %s(first: %d, orderBy: id, orderDirection: asc, where: {timestamp_gt: %d, id_gt: %q}) {%s
  }
}`, entity, first, since, afterID, fields)
}

func fetchAll[T model.Event](ctx context.Context, c *Client, entity, fields string, since int64) ([]T, error) {
	var out []T
	afterID := ""
	for {
		raw, err := c.Query(ctx, eventsQuery(entity, fields, since, c.pageSize, afterID), entity)
		if err != nil {
			return nil, err
		}

		var page []T
		if err := jsoncodec.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, entity, err)
		}
		out = append(out, page...)

		if len(page) < c.pageSize {
			break
		}
		next := page[len(page)-1].Header().ID
		if next == "" || next == afterID {
			return nil, fmt.Errorf("%w: %s page without a usable id", ErrMalformedResponse, entity)
		}
		afterID = next
		c.logger.Debug("fetch next page", zap.String("entity", entity), zap.String("after_id", afterID), zap.Int("fetched", len(out)))
	}
	return out, nil
}

// PayEventsSince returns payments with timestamp > since.
func (c *Client) PayEventsSince(ctx context.Context, since int64) ([]model.PayEvent, error) {
	return fetchAll[model.PayEvent](ctx, c, model.StreamPayEvents, payEventFields, since)
}

// ProjectCreateEventsSince returns project creations with timestamp > since.
func (c *Client) ProjectCreateEventsSince(ctx context.Context, since int64) ([]model.ProjectCreateEvent, error) {
	return fetchAll[model.ProjectCreateEvent](ctx, c, model.StreamProjectCreateEvents, projectCreateEventFields, since)
}
