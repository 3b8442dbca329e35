package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"mailrelay.app/engine/internal/provider"
)

const primaryCalendar = "primary"

// CalendarAdapter implements provider.CalendarProvider over Google Calendar.
type CalendarAdapter struct {
	timeout time.Duration
}

// NewCalendarAdapter returns a Google-Calendar-backed CalendarProvider.
// timeout bounds each Calendar API call; zero means no client-side bound.
func NewCalendarAdapter(timeout time.Duration) *CalendarAdapter {
	return &CalendarAdapter{timeout: timeout}
}

func (a *CalendarAdapter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *CalendarAdapter) service(ctx context.Context, accessToken string) (*calendarv3.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendarv3.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("calendar: build service: %w", err)
	}
	return svc, nil
}

func (a *CalendarAdapter) FreeBusy(ctx context.Context, accessToken string, from, to time.Time) ([]provider.BusyRange, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	req := &calendarv3.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendarv3.FreeBusyRequestItem{{Id: primaryCalendar}},
	}
	resp, err := svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy: %w", err)
	}

	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return nil, nil
	}

	ranges := make([]provider.BusyRange, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err1 := time.Parse(time.RFC3339, period.Start)
		end, err2 := time.Parse(time.RFC3339, period.End)
		if err1 != nil || err2 != nil {
			continue
		}
		ranges = append(ranges, provider.BusyRange{Start: start, End: end})
	}
	return ranges, nil
}

func (a *CalendarAdapter) Insert(ctx context.Context, accessToken string, event provider.NewEvent) (provider.EventRef, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return provider.EventRef{}, err
	}

	attendees := make([]*calendarv3.EventAttendee, 0, len(event.Attendees))
	for _, addr := range event.Attendees {
		attendees = append(attendees, &calendarv3.EventAttendee{Email: addr})
	}

	ev := &calendarv3.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &calendarv3.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendarv3.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}

	created, err := svc.Events.Insert(primaryCalendar, ev).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return provider.EventRef{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	return toEventRef(created), nil
}

func (a *CalendarAdapter) ListUpcoming(ctx context.Context, accessToken string, limit int) ([]provider.EventRef, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List(primaryCalendar).
		TimeMin(time.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	refs := make([]provider.EventRef, 0, len(resp.Items))
	for _, ev := range resp.Items {
		refs = append(refs, toEventRef(ev))
	}
	return refs, nil
}

func (a *CalendarAdapter) Update(ctx context.Context, accessToken, eventID string, start, end time.Time) (provider.EventRef, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return provider.EventRef{}, err
	}

	existing, err := svc.Events.Get(primaryCalendar, eventID).Context(ctx).Do()
	if err != nil {
		return provider.EventRef{}, fmt.Errorf("calendar: get event: %w", err)
	}
	existing.Start = &calendarv3.EventDateTime{DateTime: start.Format(time.RFC3339)}
	existing.End = &calendarv3.EventDateTime{DateTime: end.Format(time.RFC3339)}

	updated, err := svc.Events.Update(primaryCalendar, eventID, existing).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return provider.EventRef{}, fmt.Errorf("calendar: update event: %w", err)
	}
	return toEventRef(updated), nil
}

func (a *CalendarAdapter) Delete(ctx context.Context, accessToken, eventID string) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(primaryCalendar, eventID).SendUpdates("all").Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

func toEventRef(ev *calendarv3.Event) provider.EventRef {
	ref := provider.EventRef{ID: ev.Id, Summary: ev.Summary, Link: ev.HtmlLink}
	if ev.Start != nil {
		ref.Start, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
	}
	if ev.End != nil {
		ref.End, _ = time.Parse(time.RFC3339, ev.End.DateTime)
	}
	return ref
}
