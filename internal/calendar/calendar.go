package calendar

import (
	"context"
	"fmt"
	"time"

	"task-automator-api/internal/domain"
	"task-automator-api/internal/engine"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	defaultCalendarID = "primary"
	defaultDuration   = 30 * time.Minute
)

// EventCreator inserts Google Calendar events for the create_event action.
type EventCreator struct {
	srv    *calendar.Service
	now    func() time.Time
	logger *zap.Logger
}

// OAuthConfig builds the Google OAuth2 config for calendar access.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
}

// NewEventCreator authenticates with a long-lived refresh token. The token
// source refreshes access tokens as needed.
func NewEventCreator(ctx context.Context, cfg *oauth2.Config, refreshToken string, logger *zap.Logger, opts ...option.ClientOption) (*EventCreator, error) {
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create calendar service: %w", err)
	}
	return NewEventCreatorWithService(srv, logger), nil
}

// NewEventCreatorWithService wraps an existing calendar service.
func NewEventCreatorWithService(srv *calendar.Service, logger *zap.Logger) *EventCreator {
	return &EventCreator{
		srv:    srv,
		now:    time.Now,
		logger: logger.With(zap.String("component", "calendar")),
	}
}

// Handler returns the create_event action handler.
func (c *EventCreator) Handler() engine.Handler {
	return func(ctx context.Context, params domain.ActionParams, event map[string]any) error {
		p, ok := params.(domain.CreateEventParams)
		if !ok {
			return fmt.Errorf("%w: create_event received %T", engine.ErrParamsMismatch, params)
		}
		_, err := c.CreateEvent(ctx, p, event)
		return err
	}
}

// CreateEvent inserts an event starting StartOffsetMinutes from now and
// returns its Google id.
func (c *EventCreator) CreateEvent(ctx context.Context, p domain.CreateEventParams, event map[string]any) (string, error) {
	start := c.now().UTC().Add(time.Duration(p.StartOffsetMinutes) * time.Minute)
	duration := time.Duration(p.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = defaultDuration
	}
	calendarID := p.CalendarID
	if calendarID == "" {
		calendarID = defaultCalendarID
	}

	newEvent := &calendar.Event{
		Summary: engine.Interpolate(p.Title, event),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(duration).Format(time.RFC3339),
		},
	}
	if taskID, ok := event["taskId"].(string); ok && taskID != "" {
		newEvent.Description = "Created by automation for task " + taskID
	}

	created, err := c.srv.Events.Insert(calendarID, newEvent).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create_event: %w", err)
	}

	c.logger.Info("calendar event created",
		zap.String("calendar_id", calendarID),
		zap.String("event_id", created.Id),
	)
	return created.Id, nil
}
