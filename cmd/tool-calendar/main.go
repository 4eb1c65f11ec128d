// tool-calendar reads and creates Google Calendar events. OAuth
// client credentials and a cached token are read from
// JARVIS_GOOGLE_CREDENTIALS and JARVIS_GOOGLE_TOKEN, defaulting to
// files under ~/.jarvis/.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

func main() {
	toolproc.Main(map[string]toolproc.Handler{
		"list_events":  listEvents,
		"create_event": createEvent,
	})
}

func calendarService(ctx context.Context) (*calendar.Service, error) {
	credPath := os.Getenv("JARVIS_GOOGLE_CREDENTIALS")
	if credPath == "" {
		credPath = filepath.Join(os.Getenv("HOME"), ".jarvis", "google-credentials.json")
	}
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	tokenPath := os.Getenv("JARVIS_GOOGLE_TOKEN")
	if tokenPath == "" {
		tokenPath = filepath.Join(os.Getenv("HOME"), ".jarvis", "google-token.json")
	}
	token, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no auth token at %s, authenticate first", tokenPath)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

type eventSummary struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
	Link     string `json:"link,omitempty"`
}

type eventList struct {
	Calendar string         `json:"calendar"`
	Count    int            `json:"count"`
	Events   []eventSummary `json:"events"`
}

func listEvents(req toolproc.Request) (any, error) {
	ctx := context.Background()
	svc, err := calendarService(ctx)
	if err != nil {
		return nil, err
	}

	calendarID := req.String("calendar_id", "primary")
	maxResults := int64(req.Int("max_results", 10))
	if maxResults < 1 || maxResults > 50 {
		maxResults = 10
	}

	timeMin := req.String("time_min", "")
	if timeMin == "" {
		timeMin = time.Now().Format(time.RFC3339)
	}

	call := svc.Events.List(calendarID).
		TimeMin(timeMin).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime")
	if timeMax := req.String("time_max", ""); timeMax != "" {
		call = call.TimeMax(timeMax)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	result := eventList{Calendar: calendarID, Events: []eventSummary{}}
	for _, e := range events.Items {
		result.Events = append(result.Events, eventSummary{
			ID:       e.Id,
			Summary:  e.Summary,
			Start:    eventTime(e.Start),
			End:      eventTime(e.End),
			Location: e.Location,
			Link:     e.HtmlLink,
		})
	}
	result.Count = len(result.Events)
	return result, nil
}

func createEvent(req toolproc.Request) (any, error) {
	summary := req.String("summary", "")
	start := req.String("start", "")
	end := req.String("end", "")
	if summary == "" || start == "" || end == "" {
		return nil, fmt.Errorf("summary, start, and end parameters are required")
	}

	ctx := context.Background()
	svc, err := calendarService(ctx)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: req.String("description", ""),
		Location:    req.String("location", ""),
		Start:       &calendar.EventDateTime{DateTime: start},
		End:         &calendar.EventDateTime{DateTime: end},
	}

	created, err := svc.Events.Insert(req.String("calendar_id", "primary"), event).Do()
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	return eventSummary{
		ID:       created.Id,
		Summary:  created.Summary,
		Start:    eventTime(created.Start),
		End:      eventTime(created.End),
		Location: created.Location,
		Link:     created.HtmlLink,
	}, nil
}

func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
