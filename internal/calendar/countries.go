package calendar

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// countryZones maps every country the provider supports onto the IANA zone
// its event times are quoted in. Countries spanning several zones use the
// zone of the financial center the provider publishes against.
var countryZones = map[string]string{
	"United States":  "America/New_York",
	"India":          "Asia/Kolkata",
	"Australia":      "Australia/Sydney",
	"Brazil":         "America/Sao_Paulo",
	"Canada":         "America/Toronto",
	"China":          "Asia/Shanghai",
	"France":         "Europe/Paris",
	"Germany":        "Europe/Berlin",
	"Italy":          "Europe/Rome",
	"Japan":          "Asia/Tokyo",
	"Mexico":         "America/Mexico_City",
	"Russia":         "Europe/Moscow",
	"South Korea":    "Asia/Seoul",
	"Spain":          "Europe/Madrid",
	"Switzerland":    "Europe/Zurich",
	"United Kingdom": "Europe/London",
}

// Supported reports whether the given country is on the provider allow-list.
func Supported(country string) bool {
	_, ok := countryZones[country]
	return ok
}

// Countries returns the allow-list in stable alphabetical order, for UI use.
func Countries() []string {
	out := make([]string, 0, len(countryZones))
	for name := range countryZones {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Zone resolves a country name to its source *time.Location.
func Zone(country string) (*time.Location, error) {
	name, ok := countryZones[country]
	if !ok {
		return nil, errors.Errorf("unsupported country %q", country)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading zone %q for country %q", name, country)
	}
	return loc, nil
}
