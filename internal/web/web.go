package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecocal/internal/calendar"
	"ecocal/internal/config"
	"ecocal/internal/log"
	"ecocal/internal/model"
	"ecocal/internal/notify"
	"ecocal/internal/reminder"
)

// Fetcher is the calendar-provider surface the server depends on.
type Fetcher interface {
	Fetch(ctx context.Context, countries []string, from, to time.Time) ([]model.RawEvent, error)
}

// Sink accepts reminder-task batches for background delivery.
type Sink interface {
	Schedule(tasks []model.ReminderTask)
}

// Server provides the dashboard UI and HTTP APIs.
type Server struct {
	cfg     *config.Config
	fetcher Fetcher
	sink    Sink
	target  *time.Location
	mux     *http.ServeMux

	// In-memory cache of the last normalized batch, keyed by the request
	// signature, to avoid refetching on every page load. The cron refresh
	// loop keeps the default signature warm.
	batchMu    sync.RWMutex
	batchCache *batchCache
}

type batchCache struct {
	key       string
	result    calendar.Result
	from, to  time.Time
	updatedAt time.Time
}

const batchCacheTTL = 30 * time.Second

var rangeDays = []int{7, 14, 30}

// NewServer constructs a new Server. target is the display timezone all
// event times are converted into.
func NewServer(cfg *config.Config, fetcher Fetcher, sink Sink, target *time.Location) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		target:  target,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="ecocal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleDashboard)
	s.mux.HandleFunc("/reminders", s.handleReminders)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/calendar.ics", s.handleICS)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// selection is the operator's current dashboard query.
type selection struct {
	countries  []string
	days       int
	recipients string
}

func (s *Server) selectionFromQuery(q url.Values) selection {
	sel := selection{
		days:       parseIntDefault(q.Get("days"), s.cfg.HorizonDays),
		recipients: q.Get("recipients"),
	}
	if sel.days <= 0 {
		sel.days = s.cfg.HorizonDays
	}
	if q.Has("country") {
		for _, c := range q["country"] {
			if calendar.Supported(c) {
				sel.countries = append(sel.countries, c)
			}
		}
	} else if !q.Has("submitted") {
		// First visit: fall back to the configured default selection.
		sel.countries = append(sel.countries, s.cfg.Countries...)
	}
	if sel.recipients == "" {
		sel.recipients = strings.Join(s.cfg.Reminder.Recipients, ", ")
	}
	return sel
}

// fetchNormalized returns the normalized batch for the selection, serving
// from the cache when it is fresh. The returned times bound the query window.
func (s *Server) fetchNormalized(ctx context.Context, countries []string, days int) (calendar.Result, time.Time, time.Time, error) {
	now := time.Now().In(s.target)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.target)
	to := from.AddDate(0, 0, days)

	key := strings.Join(countries, ",") + "|" + strconv.Itoa(days)

	s.batchMu.RLock()
	bc := s.batchCache
	s.batchMu.RUnlock()
	if bc != nil && bc.key == key && time.Since(bc.updatedAt) < batchCacheTTL {
		return bc.result, bc.from, bc.to, nil
	}

	raw, err := s.fetcher.Fetch(ctx, countries, from, to)
	if err != nil {
		return calendar.Result{}, from, to, err
	}

	res := calendar.Normalize(raw, s.target, now)

	s.batchMu.Lock()
	s.batchCache = &batchCache{
		key:       key,
		result:    res,
		from:      from,
		to:        to,
		updatedAt: time.Now(),
	}
	s.batchMu.Unlock()

	return res, from, to, nil
}

// Refresh primes the batch cache for the configured default selection. The
// cron loop in cmd/ecocal calls this so the dashboard stays warm.
func (s *Server) Refresh(ctx context.Context) {
	if len(s.cfg.Countries) == 0 {
		return
	}
	if _, _, _, err := s.fetchNormalized(ctx, s.cfg.Countries, s.cfg.HorizonDays); err != nil {
		log.Error("background refresh failed", err, "countries", strings.Join(s.cfg.Countries, ","))
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	sel := s.selectionFromQuery(q)

	data := s.newViewData(sel)
	data.Scheduled = parseIntDefault(q.Get("scheduled"), 0)
	data.Flash = q.Get("err")

	if len(sel.countries) == 0 {
		// Empty selection yields no fetch at all, not an error.
		data.Notice = "Select at least one country."
		s.render(w, data)
		return
	}

	res, _, _, err := s.fetchNormalized(r.Context(), sel.countries, sel.days)
	if err != nil {
		// Per-attempt failure: show the message inline and degrade to an
		// empty table.
		log.Error("dashboard fetch failed", err, "countries", strings.Join(sel.countries, ","))
		data.Flash = err.Error()
		s.render(w, data)
		return
	}

	data.fillBatch(res)
	s.render(w, data)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	sel := s.selectionFromQuery(r.PostForm)
	recipients := notify.SplitRecipients(sel.recipients)

	back := func(scheduled int, errMsg string) {
		v := url.Values{}
		for _, c := range sel.countries {
			v.Add("country", c)
		}
		v.Set("days", strconv.Itoa(sel.days))
		v.Set("recipients", sel.recipients)
		v.Set("submitted", "1")
		if scheduled > 0 {
			v.Set("scheduled", strconv.Itoa(scheduled))
		}
		if errMsg != "" {
			v.Set("err", errMsg)
		}
		http.Redirect(w, r, "/?"+v.Encode(), http.StatusSeeOther)
	}

	if len(sel.countries) == 0 {
		back(0, "select at least one country")
		return
	}
	if len(recipients) == 0 {
		back(0, "enter at least one recipient address")
		return
	}

	res, _, _, err := s.fetchNormalized(r.Context(), sel.countries, sel.days)
	if err != nil {
		back(0, err.Error())
		return
	}

	tasks := reminder.ScheduleAll(res.Events, recipients, time.Now().In(s.target),
		s.cfg.Reminder.LeadDays, s.cfg.Reminder.SendHour)
	s.sink.Schedule(tasks)

	log.Info("reminders scheduled",
		"events", len(res.Events),
		"tasks", len(tasks),
		"recipients", len(recipients),
	)
	back(len(tasks), "")
}

// eventDTO is the JSON view of a normalized event, columns ordered the same
// way the table renders them.
type eventDTO struct {
	LocalTime     string            `json:"local_time"`
	DayOfWeek     string            `json:"day_of_week"`
	Date          string            `json:"date"`
	Country       string            `json:"country"`
	Event         string            `json:"event"`
	Importance    model.Tier        `json:"importance"`
	Extra         map[string]string `json:"extra,omitempty"`
	DaysFromToday int               `json:"days_from_today"`
}

type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	Dropped         int        `json:"dropped"`
	FilteredUnknown int        `json:"filtered_unknown"`
	RangeStart      time.Time  `json:"range_start"`
	RangeEnd        time.Time  `json:"range_end"`
	DisplayTimeZone string     `json:"display_timezone"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	countries := splitParam(q.Get("countries"))
	if len(countries) == 0 {
		countries = s.cfg.Countries
	}
	for _, c := range countries {
		if !calendar.Supported(c) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported country %q", c))
			return
		}
	}
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	res, from, to, err := s.fetchNormalized(r.Context(), countries, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	dtos := make([]eventDTO, 0, len(res.Events))
	for _, ev := range res.Events {
		dtos = append(dtos, eventDTO{
			LocalTime:     ev.LocalTime,
			DayOfWeek:     ev.DayOfWeek,
			Date:          ev.Date,
			Country:       ev.Country,
			Event:         ev.Name,
			Importance:    ev.Importance,
			Extra:         ev.Extra,
			DaysFromToday: ev.DaysFromToday,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          dtos,
		Dropped:         res.Dropped,
		FilteredUnknown: res.FilteredUnknown,
		RangeStart:      from,
		RangeEnd:        to,
		DisplayTimeZone: s.target.String(),
	})
}

// handleICS exports the current batch as an iCalendar feed so operators can
// subscribe from a regular calendar client.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	countries := splitParam(q.Get("countries"))
	if len(countries) == 0 {
		countries = s.cfg.Countries
	}
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	res, _, _, err := s.fetchNormalized(r.Context(), countries, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//ecocal//economic calendar//EN")

	now := time.Now()
	for i, ev := range res.Events {
		uid := fmt.Sprintf("%s-%d@ecocal", ev.Day.Format("20060102"), i)
		ve := cal.AddEvent(uid)
		ve.SetCreatedTime(now)
		ve.SetDtStampTime(now)
		ve.SetSummary(ev.Name)
		ve.SetLocation(ev.Country)
		if !ev.Start.IsZero() {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.Start.Add(time.Hour))
		} else {
			// Time passthrough rows become all-day entries.
			ve.SetAllDayStartAt(ev.Day)
			ve.SetAllDayEndAt(ev.Day.AddDate(0, 0, 1))
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
