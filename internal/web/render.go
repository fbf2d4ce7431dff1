package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"ecocal/internal/calendar"
	"ecocal/internal/log"
	"ecocal/internal/model"
)

// viewData is everything the dashboard template needs for one render.
type viewData struct {
	Countries  []countryOption
	Days       int
	RangeDays  []int
	Recipients string

	Notice    string
	Flash     string
	Scheduled int

	HasBatch        bool
	ExtraColumns    []string
	Rows            []rowView
	Dropped         int
	FilteredUnknown int
	Timezone        string
}

type countryOption struct {
	Name     string
	Selected bool
}

// rowView holds one table row with computed columns first, pass-through
// columns in provider order, and days-from-today last.
type rowView struct {
	LocalTime     string
	DayOfWeek     string
	Date          string
	Country       string
	Name          string
	Extra         []string
	DaysFromToday int
	Tier          model.Tier
}

func (s *Server) newViewData(sel selection) viewData {
	selected := make(map[string]bool, len(sel.countries))
	for _, c := range sel.countries {
		selected[c] = true
	}
	opts := make([]countryOption, 0, 16)
	for _, name := range calendar.Countries() {
		opts = append(opts, countryOption{Name: name, Selected: selected[name]})
	}
	return viewData{
		Countries:  opts,
		Days:       sel.days,
		RangeDays:  rangeDays,
		Recipients: sel.recipients,
		Timezone:   s.target.String(),
	}
}

// fillBatch projects a normalized batch into table rows. The extra-column
// set is the union over the batch in first-seen provider order, so the
// pass-through columns stay where the provider put them.
func (d *viewData) fillBatch(res calendar.Result) {
	d.HasBatch = true
	d.Dropped = res.Dropped
	d.FilteredUnknown = res.FilteredUnknown

	seen := make(map[string]bool)
	for _, ev := range res.Events {
		for _, col := range ev.ExtraOrder {
			if !seen[col] {
				seen[col] = true
				d.ExtraColumns = append(d.ExtraColumns, col)
			}
		}
	}

	d.Rows = make([]rowView, 0, len(res.Events))
	for _, ev := range res.Events {
		row := rowView{
			LocalTime:     ev.LocalTime,
			DayOfWeek:     ev.DayOfWeek,
			Date:          ev.Date,
			Country:       ev.Country,
			Name:          ev.Name,
			DaysFromToday: ev.DaysFromToday,
			Tier:          ev.Importance,
		}
		for _, col := range d.ExtraColumns {
			row.Extra = append(row.Extra, ev.Extra[col])
		}
		d.Rows = append(d.Rows, row)
	}
}

func (s *Server) render(w http.ResponseWriter, data viewData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		log.Error("template render failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}).Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Economic Calendar</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { margin-bottom: 0.25rem; }
form { margin: 1rem 0; padding: 1rem; background: #f6f6f6; border-radius: 6px; }
fieldset { border: none; margin: 0 0 0.75rem 0; padding: 0; }
label.country { display: inline-block; margin-right: 0.75rem; white-space: nowrap; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #efefef; }
tr.importance-high td { background: #f8d7da; }
tr.importance-medium td { background: #cce5ff; }
tr.importance-low td { background: #d4edda; }
.legend { margin-top: 0.75rem; font-size: 0.9rem; }
.legend span { display: inline-block; padding: 2px 10px; margin-right: 0.5rem; border-radius: 3px; }
.legend .high { background: #f8d7da; }
.legend .medium { background: #cce5ff; }
.legend .low { background: #d4edda; }
.flash { color: #a33; margin: 0.5rem 0; }
.ok { color: #2a7; margin: 0.5rem 0; }
.notice { color: #555; margin: 0.5rem 0; }
.excluded { color: #777; font-size: 0.85rem; margin-top: 0.5rem; }
</style>
</head>
<body>
<h1>Economic Calendar</h1>
<p>All times shown in {{.Timezone}}.</p>

{{if .Flash}}<p class="flash">{{.Flash}}</p>{{end}}
{{if gt .Scheduled 0}}<p class="ok">Scheduled {{.Scheduled}} reminder(s).</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}

<form method="POST" action="/reminders">
  <fieldset>
    {{range .Countries}}
    <label class="country"><input type="checkbox" name="country" value="{{.Name}}"{{if .Selected}} checked{{end}}> {{.Name}}</label>
    {{end}}
  </fieldset>
  <fieldset>
    <label>Date range:
      <select name="days">
        {{$days := .Days}}
        {{range .RangeDays}}
        <option value="{{.}}"{{if eq . $days}} selected{{end}}>{{.}} days from today</option>
        {{end}}
      </select>
    </label>
  </fieldset>
  <fieldset>
    <label>Reminder recipients (comma separated):
      <input type="text" name="recipients" size="60" value="{{.Recipients}}">
    </label>
  </fieldset>
  <input type="hidden" name="submitted" value="1">
  <button type="submit" formaction="/" formmethod="GET">Show events</button>
  <button type="submit">Schedule email reminders</button>
  <a href="/calendar.ics">Export .ics</a>
</form>

<div class="legend">
  <span class="high">High importance</span>
  <span class="medium">Medium importance</span>
  <span class="low">Low importance</span>
</div>

{{if .HasBatch}}
  {{if .Rows}}
  <table>
    <tr>
      <th>Local Time</th>
      <th>Day</th>
      <th>Date</th>
      <th>Country</th>
      <th>Event</th>
      {{range .ExtraColumns}}<th>{{title .}}</th>{{end}}
      <th>Days From Today</th>
    </tr>
    {{range .Rows}}
    <tr class="importance-{{.Tier}}">
      <td>{{.LocalTime}}</td>
      <td>{{.DayOfWeek}}</td>
      <td>{{.Date}}</td>
      <td>{{.Country}}</td>
      <td>{{.Name}}</td>
      {{range .Extra}}<td>{{.}}</td>{{end}}
      <td>{{.DaysFromToday}}</td>
    </tr>
    {{end}}
  </table>
  {{else}}
  <p class="notice">No upcoming events found.</p>
  {{end}}
  {{if or (gt .Dropped 0) (gt .FilteredUnknown 0)}}
  <p class="excluded">{{.Dropped}} malformed row(s) excluded, {{.FilteredUnknown}} row(s) hidden (unknown importance).</p>
  {{end}}
{{end}}
</body>
</html>
`
