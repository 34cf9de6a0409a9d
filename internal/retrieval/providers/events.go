// internal/retrieval/providers/events.go
package providers

import (
	"context"
	"fmt"
	"time"

	"query-orchestrator/internal/common/database"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const EventsProviderID = "events"

const upcomingEventsQuery = `
	SELECT title, venue, city, starts_at
	FROM events
	WHERE ($1 = '' OR LOWER(city) = LOWER($1))
	  AND starts_at >= NOW()
	ORDER BY starts_at ASC
	LIMIT 5`

// EventsProvider reads the upcoming-events table in Postgres.
type EventsProvider struct {
	db      *database.PostgresClient
	timeout time.Duration
	logger  logger.Logger
}

func NewEvents(db *database.PostgresClient, timeoutMS int, log logger.Logger) *EventsProvider {
	return &EventsProvider{
		db:      db,
		timeout: time.Duration(timeoutMS) * time.Millisecond,
		logger: log.With(map[string]interface{}{
			"provider": EventsProviderID,
		}),
	}
}

func (p *EventsProvider) ID() string { return EventsProviderID }

func (p *EventsProvider) Timeout() time.Duration { return p.timeout }

func (p *EventsProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	start := time.Now()
	rows, err := p.db.Query(ctx, upcomingEventsQuery, entities["location"])
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrProviderTimeout
		}
		return nil, err
	}
	defer rows.Close()

	var results []models.ProviderResult
	for rows.Next() {
		var title, venue, city string
		var startsAt time.Time
		if err := rows.Scan(&title, &venue, &city, &startsAt); err != nil {
			return nil, err
		}

		results = append(results, models.ProviderResult{
			ProviderID: EventsProviderID,
			Payload: fmt.Sprintf("%s at %s, %s on %s",
				title, venue, city, startsAt.Format("Mon Jan 2 3:04 PM")),
			Provenance: "db:events",
			Confidence: 0.85,
			Latency:    time.Since(start),
			FetchedAt:  time.Now(),
			Success:    true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
