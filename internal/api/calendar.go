package api

import (
	"context"
	"fmt"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// CalendarService wraps the calendar query endpoints.
type CalendarService struct {
	s *session.Client
}

// Events returns dated trip events; month/year are optional (0 omits).
func (c *CalendarService) Events(ctx context.Context, month, year int) ([]domain.CalendarEvent, error) {
	var events []domain.CalendarEvent
	q := query(map[string]string{
		"month": itoa(month),
		"year":  itoa(year),
	})
	err := c.s.Get(ctx, "/api/calendar/events"+q, &events)
	return events, err
}

// TripsByMonth returns the day-level trip layout for one month.
func (c *CalendarService) TripsByMonth(ctx context.Context, month, year int) ([]domain.CalendarTrip, error) {
	var trips []domain.CalendarTrip
	path := fmt.Sprintf("/api/calendar/trips-by-month?month=%d&year=%d", month, year)
	err := c.s.Get(ctx, path, &trips)
	return trips, err
}
