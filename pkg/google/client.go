package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Scopes are the OAuth scopes calendar sync needs.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// NewClient resolves calendarName on the account behind httpClient and
// returns a client bound to that calendar.
func NewClient(ctx context.Context, httpClient *http.Client, calendarName string, opts Options) (*CalendarClient, error) {
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	calendarID, err := FindCalendarID(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, opts), nil
}

func FindCalendarID(ctx context.Context, srv *calendar.Service, calendarName string) (string, error) {
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", calendarName)
}
