package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/provider"
)

const (
	defaultWorkingHourStart = 9
	defaultWorkingHourEnd   = 18
	proposeSlotWindowDays   = 7
	maxProposedSlots        = 3
)

// CheckAvailabilityParams for the check_availability tool.
type CheckAvailabilityParams struct {
	Start string `json:"start" jsonschema:"required,description=Start of the window to check, RFC3339"`
	End   string `json:"end" jsonschema:"required,description=End of the window to check, RFC3339"`
}

// ProposeSlotsParams for the propose_slots tool.
type ProposeSlotsParams struct {
	DurationMinutes int `json:"duration_minutes,omitempty" jsonschema:"description=Meeting length in minutes, default 60"`
}

// ScheduleParams for the schedule tool.
type ScheduleParams struct {
	Summary     string   `json:"summary" jsonschema:"required,description=Event title"`
	Start       string   `json:"start" jsonschema:"required,description=Event start time, RFC3339"`
	End         string   `json:"end" jsonschema:"required,description=Event end time, RFC3339"`
	Attendees   []string `json:"attendees,omitempty" jsonschema:"description=Attendee email addresses"`
	Description string   `json:"description,omitempty" jsonschema:"description=Optional event description"`
}

// ListUpcomingParams for the list_upcoming tool.
type ListUpcomingParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Max number of events to return, default 5"`
}

// RescheduleParams for the reschedule tool.
type RescheduleParams struct {
	EventID string `json:"event_id" jsonschema:"required,description=ID of the event to move"`
	Start   string `json:"start" jsonschema:"required,description=New start time, RFC3339"`
	End     string `json:"end" jsonschema:"required,description=New end time, RFC3339"`
}

// CancelParams for the cancel tool.
type CancelParams struct {
	EventID string `json:"event_id" jsonschema:"required,description=ID of the event to cancel"`
}

// Tools exposes the six calendar tools the scheduler sub-agent drives.
// Every call operates against the user's own calendar; the sender's
// address is assumed available and never queried.
type Tools struct {
	calendar    provider.CalendarProvider
	accessToken string
	definitions []llm.Tool
	lastBusy    []provider.BusyRange // observed by the most recent check_availability call
}

// NewTools builds the calendar tool set for one scheduler run.
func NewTools(calendar provider.CalendarProvider, accessToken string) *Tools {
	t := &Tools{calendar: calendar, accessToken: accessToken}
	t.definitions = []llm.Tool{
		{
			Name:        "check_availability",
			Description: "Check free/busy for the user's own calendar over a time window. Returns a list of busy ranges.",
			Parameters:  llm.GenerateSchemaFrom(CheckAvailabilityParams{}),
		},
		{
			Name:        "propose_slots",
			Description: "Given the busy ranges already observed, find up to 3 one-hour free slots within the next 7 days, within working hours 09:00-18:00 local.",
			Parameters:  llm.GenerateSchemaFrom(ProposeSlotsParams{}),
		},
		{
			Name:        "schedule",
			Description: "Create a calendar event with a summary, start, end, and attendees.",
			Parameters:  llm.GenerateSchemaFrom(ScheduleParams{}),
		},
		{
			Name:        "list_upcoming",
			Description: "List the top-N upcoming events on the user's calendar.",
			Parameters:  llm.GenerateSchemaFrom(ListUpcomingParams{}),
		},
		{
			Name:        "reschedule",
			Description: "Move an existing event to a new start/end time.",
			Parameters:  llm.GenerateSchemaFrom(RescheduleParams{}),
		},
		{
			Name:        "cancel",
			Description: "Delete an existing event. Use this before scheduling a replacement when the user hint implies changing an existing meeting.",
			Parameters:  llm.GenerateSchemaFrom(CancelParams{}),
		},
	}
	return t
}

// Definitions returns the tool definitions for the LLM.
func (t *Tools) Definitions() []llm.Tool {
	return t.definitions
}

// Execute dispatches one named tool call and returns its result as a
// non-empty human-readable string. Empty results are normalized here,
// since the model provider rejects empty tool-result content.
func (t *Tools) Execute(ctx context.Context, name, arguments string) (string, error) {
	switch name {
	case "check_availability":
		return t.executeCheckAvailability(ctx, arguments)
	case "propose_slots":
		return t.executeProposeSlots(ctx, arguments)
	case "schedule":
		return t.executeSchedule(ctx, arguments)
	case "list_upcoming":
		return t.executeListUpcoming(ctx, arguments)
	case "reschedule":
		return t.executeReschedule(ctx, arguments)
	case "cancel":
		return t.executeCancel(ctx, arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (t *Tools) executeCheckAvailability(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[CheckAvailabilityParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse check_availability params: %w", err)
	}
	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return "", fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, params.End)
	if err != nil {
		return "", fmt.Errorf("parse end: %w", err)
	}

	busy, err := t.calendar.FreeBusy(ctx, t.accessToken, start, end)
	if err != nil {
		return "", fmt.Errorf("check availability: %w", err)
	}
	t.lastBusy = busy

	if len(busy) == 0 {
		return "no conflicts: the user is free for the entire window", nil
	}

	var b strings.Builder
	b.WriteString("busy ranges:\n")
	for _, r := range busy {
		fmt.Fprintf(&b, "- %s to %s\n", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return b.String(), nil
}

func (t *Tools) executeProposeSlots(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[ProposeSlotsParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse propose_slots params: %w", err)
	}
	duration := time.Duration(params.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = time.Hour
	}

	slots := proposeSlots(t.lastBusy, time.Now(), proposeSlotWindowDays, duration, maxProposedSlots)
	if len(slots) == 0 {
		return "no free slots found in the next 7 days within working hours", nil
	}

	var b strings.Builder
	b.WriteString("proposed slots:\n")
	for _, s := range slots {
		fmt.Fprintf(&b, "- %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return b.String(), nil
}

func (t *Tools) executeSchedule(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[ScheduleParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse schedule params: %w", err)
	}
	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return "", fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, params.End)
	if err != nil {
		return "", fmt.Errorf("parse end: %w", err)
	}

	ref, err := t.calendar.Insert(ctx, t.accessToken, provider.NewEvent{
		Summary:     params.Summary,
		Description: params.Description,
		Start:       start,
		End:         end,
		Attendees:   params.Attendees,
	})
	if err != nil {
		return "", fmt.Errorf("schedule event: %w", err)
	}
	return fmt.Sprintf("scheduled %q, link: %s", ref.Summary, ref.Link), nil
}

func (t *Tools) executeListUpcoming(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[ListUpcomingParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse list_upcoming params: %w", err)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}

	events, err := t.calendar.ListUpcoming(ctx, t.accessToken, limit)
	if err != nil {
		return "", fmt.Errorf("list upcoming: %w", err)
	}
	if len(events) == 0 {
		return "no upcoming events found", nil
	}

	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "- [%s] %s: %s to %s\n", e.ID, e.Summary, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	}
	return b.String(), nil
}

func (t *Tools) executeReschedule(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[RescheduleParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse reschedule params: %w", err)
	}
	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return "", fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, params.End)
	if err != nil {
		return "", fmt.Errorf("parse end: %w", err)
	}

	ref, err := t.calendar.Update(ctx, t.accessToken, params.EventID, start, end)
	if err != nil {
		return "", fmt.Errorf("reschedule event: %w", err)
	}
	return fmt.Sprintf("rescheduled %q, link: %s", ref.Summary, ref.Link), nil
}

func (t *Tools) executeCancel(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[CancelParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse cancel params: %w", err)
	}
	if err := t.calendar.Delete(ctx, t.accessToken, params.EventID); err != nil {
		return "", fmt.Errorf("cancel event: %w", err)
	}
	return fmt.Sprintf("event %s cancelled", params.EventID), nil
}

// proposeSlots finds up to maxSlots one-hour (or duration-length) free
// windows within working hours over the next windowDays days, avoiding
// the given busy ranges.
func proposeSlots(busy []provider.BusyRange, from time.Time, windowDays int, duration time.Duration, maxSlots int) []provider.BusyRange {
	var slots []provider.BusyRange
	until := from.AddDate(0, 0, windowDays)

	// Candidates earlier than `from` are filtered below, so the scan can
	// start on `from`'s own day and still offer the rest of today.
	day := time.Date(from.Year(), from.Month(), from.Day(), defaultWorkingHourStart, 0, 0, 0, from.Location())

	for day.Before(until) && len(slots) < maxSlots {
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), defaultWorkingHourEnd, 0, 0, 0, day.Location())

		cursor := day
		for cursor.Add(duration).Before(dayEnd) || cursor.Add(duration).Equal(dayEnd) {
			candidate := provider.BusyRange{Start: cursor, End: cursor.Add(duration)}
			if !overlapsAny(candidate, busy) && candidate.Start.After(from) {
				slots = append(slots, candidate)
				if len(slots) >= maxSlots {
					break
				}
			}
			cursor = cursor.Add(duration)
		}

		day = time.Date(day.Year(), day.Month(), day.Day()+1, defaultWorkingHourStart, 0, 0, 0, day.Location())
	}

	return slots
}

func overlapsAny(candidate provider.BusyRange, busy []provider.BusyRange) bool {
	for _, b := range busy {
		if candidate.Start.Before(b.End) && b.Start.Before(candidate.End) {
			return true
		}
	}
	return false
}
