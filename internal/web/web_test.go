package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ecocal/internal/calendar"
	"ecocal/internal/config"
	"ecocal/internal/model"
	"ecocal/internal/provider"
)

type fakeFetcher struct {
	raw []model.RawEvent
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ []string, _, _ time.Time) ([]model.RawEvent, error) {
	return f.raw, f.err
}

type captureSink struct {
	tasks []model.ReminderTask
}

func (c *captureSink) Schedule(tasks []model.ReminderTask) {
	c.tasks = append(c.tasks, tasks...)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Countries = []string{"India"}
	return cfg
}

func testServer(t *testing.T, fetcher Fetcher, sink Sink) *Server {
	t.Helper()
	target, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	if sink == nil {
		sink = &captureSink{}
	}
	return NewServer(testConfig(), fetcher, sink, target)
}

// futureRaw returns one well-formed provider row dated the given number of
// days ahead, so reminder scheduling always lands in the future.
func futureRaw(daysAhead int) []model.RawEvent {
	date := time.Now().AddDate(0, 0, daysAhead).Format(calendar.DateLayout)
	return []model.RawEvent{{
		ID:         "1",
		Date:       date,
		Time:       "14:30",
		Zone:       "India",
		Event:      "RBI Rate Decision",
		Importance: "high",
		Extra:      map[string]string{"currency": "INR"},
		ExtraOrder: []string{"currency"},
	}}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, &fakeFetcher{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDashboardRendersRowsAndLegend(t *testing.T) {
	srv := testServer(t, &fakeFetcher{raw: futureRaw(3)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		"RBI Rate Decision",
		`class="importance-high"`,
		"High importance",
		"Medium importance",
		"Low importance",
		"Currency", // pass-through column header, titled
		"Asia/Kolkata",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboardEmptySelectionSkipsFetch(t *testing.T) {
	srv := testServer(t, &fakeFetcher{err: &provider.FetchError{Cause: errors.New("unreachable")}}, nil)

	// submitted with no countries: the fetcher must never be consulted.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?submitted=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Select at least one country.") {
		t.Error("missing empty-selection notice")
	}
}

func TestDashboardFetchErrorShowsFlash(t *testing.T) {
	srv := testServer(t, &fakeFetcher{err: &provider.FetchError{
		Countries: []string{"India"},
		Cause:     errors.New("provider returned 502 Bad Gateway"),
	}}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	// Degrades to an inline message, never a 5xx page.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `class="flash"`) {
		t.Error("missing flash message")
	}
	if strings.Contains(body, "<table>") {
		t.Error("table should not render on fetch failure")
	}
}

func TestEventsAPI(t *testing.T) {
	srv := testServer(t, &fakeFetcher{raw: futureRaw(3)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?countries=India&days=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(resp.Events))
	}
	ev := resp.Events[0]
	if ev.Event != "RBI Rate Decision" || ev.Country != "India" {
		t.Errorf("event = %+v", ev)
	}
	if ev.LocalTime != "14:30" {
		t.Errorf("LocalTime = %q, want 14:30 (India row in Kolkata view)", ev.LocalTime)
	}
	if ev.Extra["currency"] != "INR" {
		t.Errorf("Extra = %v", ev.Extra)
	}
	if resp.DisplayTimeZone != "Asia/Kolkata" {
		t.Errorf("DisplayTimeZone = %q", resp.DisplayTimeZone)
	}
}

func TestEventsAPIRejectsUnsupportedCountry(t *testing.T) {
	srv := testServer(t, &fakeFetcher{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?countries=Atlantis", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestICSExport(t *testing.T) {
	srv := testServer(t, &fakeFetcher{raw: futureRaw(3)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") {
		t.Error("missing VCALENDAR envelope")
	}
	if !strings.Contains(body, "SUMMARY:RBI Rate Decision") {
		t.Error("missing event summary")
	}
}

func TestScheduleRemindersThroughSink(t *testing.T) {
	sink := &captureSink{}
	// 20 days out so the 14-day lead time lands in the future.
	srv := testServer(t, &fakeFetcher{raw: futureRaw(20)}, sink)

	form := url.Values{}
	form.Add("country", "India")
	form.Set("days", "30")
	form.Set("recipients", "ops@example.com")
	form.Set("submitted", "1")

	req := httptest.NewRequest(http.MethodPost, "/reminders", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	if got := loc.Query().Get("scheduled"); got != "1" {
		t.Errorf("scheduled param = %q, want 1", got)
	}

	if len(sink.tasks) != 1 {
		t.Fatalf("sink received %d tasks, want 1", len(sink.tasks))
	}
	task := sink.tasks[0]
	if task.Event.Name != "RBI Rate Decision" {
		t.Errorf("task event = %q", task.Event.Name)
	}
	if len(task.Recipients) != 1 || task.Recipients[0] != "ops@example.com" {
		t.Errorf("task recipients = %v", task.Recipients)
	}
	if !task.SendAt.After(time.Now()) {
		t.Errorf("SendAt %s is not in the future", task.SendAt)
	}
}

func TestScheduleRemindersRequiresRecipients(t *testing.T) {
	sink := &captureSink{}
	srv := testServer(t, &fakeFetcher{raw: futureRaw(20)}, sink)

	form := url.Values{}
	form.Add("country", "India")
	form.Set("submitted", "1")

	req := httptest.NewRequest(http.MethodPost, "/reminders", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	if loc.Query().Get("err") == "" {
		t.Error("expected err param on missing recipients")
	}
	if len(sink.tasks) != 0 {
		t.Errorf("sink received %d tasks, want 0", len(sink.tasks))
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "hunter2"}

	target, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	srv := NewServer(cfg, &fakeFetcher{raw: futureRaw(3)}, &captureSink{}, target)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without credentials: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("ops", "wrong")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("ops", "hunter2")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good credentials: status = %d, want 200", rec.Code)
	}

	// Health stays open for probes.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health behind auth: status = %d, want 200", rec.Code)
	}
}
