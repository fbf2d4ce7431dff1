package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"ecocal/internal/calendar"
	"ecocal/internal/config"
	"ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
)

// FetchError is an attempt-scoped provider failure: unreachable provider,
// non-2xx response, malformed payload, or bad query parameters. It is never
// fatal; callers degrade to an empty batch and surface the message inline.
type FetchError struct {
	Countries []string
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching calendar for [%s]: %v", strings.Join(e.Countries, ", "), e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Client queries the upstream economic-calendar provider.
type Client struct {
	http *resty.Client
}

// NewClient builds a provider client. Transient failures are retried once
// with backoff before the attempt is reported as failed.
func NewClient(cfg config.ProviderConfig) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: c}
}

// Fetch returns the raw events for the given countries within [from, to].
// An empty country set yields no call and no events. Every country must be
// on the provider allow-list and from must not be after to; violations are
// reported as *FetchError without touching the network.
func (c *Client) Fetch(ctx context.Context, countries []string, from, to time.Time) ([]model.RawEvent, error) {
	if len(countries) == 0 {
		return nil, nil
	}
	for _, country := range countries {
		if !calendar.Supported(country) {
			return nil, &FetchError{Countries: countries, Cause: errors.Errorf("unsupported country %q", country)}
		}
	}
	if from.After(to) {
		return nil, &FetchError{Countries: countries, Cause: errors.Errorf("from date %s after to date %s",
			from.Format(calendar.DateLayout), to.Format(calendar.DateLayout))}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("countries", strings.Join(countries, ",")).
		SetQueryParam("from", from.Format(calendar.DateLayout)).
		SetQueryParam("to", to.Format(calendar.DateLayout)).
		Get("/calendar")
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return nil, &FetchError{Countries: countries, Cause: err}
	}
	if resp.IsError() {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return nil, &FetchError{Countries: countries, Cause: errors.Errorf("provider returned %s", resp.Status())}
	}

	events, err := decodeEvents(bytes.NewReader(resp.Body()))
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return nil, &FetchError{Countries: countries, Cause: errors.Wrap(err, "malformed response")}
	}

	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	log.Info("calendar fetch succeeded",
		"countries", strings.Join(countries, ","),
		"from", from.Format(calendar.DateLayout),
		"to", to.Format(calendar.DateLayout),
		"event_count", len(events),
	)
	return events, nil
}
