package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ecocal/internal/calendar"
	"ecocal/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(config.ProviderConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

func window(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	from, err := time.Parse(calendar.DateLayout, "01/03/2025")
	if err != nil {
		t.Fatalf("parsing from date: %v", err)
	}
	return from, from.AddDate(0, 0, 14)
}

func TestFetchDecodesRowsAndPreservesColumnOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("countries"); got != "India,United States" {
			t.Errorf("countries param = %q", got)
		}
		if got := r.URL.Query().Get("from"); got != "01/03/2025" {
			t.Errorf("from param = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 17, "date": "15/03/2025", "time": "14:30", "zone": "India",
			 "event": "Trade Balance", "importance": "high",
			 "currency": "INR", "actual": null, "forecast": -21.2},
			{"id": 18, "date": "16/03/2025", "time": null, "zone": "United States",
			 "event": "Bank Holiday", "importance": "low", "currency": "USD"}
		]`))
	}))
	defer srv.Close()

	from, to := window(t)
	events, err := testClient(srv.URL).Fetch(context.Background(), []string{"India", "United States"}, from, to)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.ID != "17" || first.Date != "15/03/2025" || first.Zone != "India" {
		t.Errorf("known fields mismatch: %+v", first)
	}
	if first.Importance != "high" || first.Event != "Trade Balance" {
		t.Errorf("known fields mismatch: %+v", first)
	}
	// Pass-through columns keep provider column order and literal values.
	wantOrder := []string{"currency", "actual", "forecast"}
	if len(first.ExtraOrder) != len(wantOrder) {
		t.Fatalf("ExtraOrder = %v, want %v", first.ExtraOrder, wantOrder)
	}
	for i, k := range wantOrder {
		if first.ExtraOrder[i] != k {
			t.Errorf("ExtraOrder[%d] = %q, want %q", i, first.ExtraOrder[i], k)
		}
	}
	if first.Extra["forecast"] != "-21.2" {
		t.Errorf("forecast = %q, want literal -21.2", first.Extra["forecast"])
	}
	if first.Extra["actual"] != "" {
		t.Errorf("null actual = %q, want empty", first.Extra["actual"])
	}

	if events[1].Time != "" {
		t.Errorf("null time = %q, want empty", events[1].Time)
	}
}

func TestFetchEmptyCountriesMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	from, to := window(t)
	events, err := testClient(srv.URL).Fetch(context.Background(), nil, from, to)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if events != nil {
		t.Errorf("expected nil events, got %v", events)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("provider was called %d times for an empty country set", calls)
	}
}

func TestFetchRejectsUnsupportedCountry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	from, to := window(t)
	_, err := testClient(srv.URL).Fetch(context.Background(), []string{"Atlantis"}, from, to)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("provider was called for an unsupported country")
	}
}

func TestFetchRejectsInvertedWindow(t *testing.T) {
	from, to := window(t)
	_, err := testClient("http://127.0.0.1:0").Fetch(context.Background(), []string{"India"}, to, from)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
}

func TestFetchServerErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	from, to := window(t)
	_, err := testClient(srv.URL).Fetch(context.Background(), []string{"India"}, from, to)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if len(fe.Countries) != 1 || fe.Countries[0] != "India" {
		t.Errorf("FetchError.Countries = %v", fe.Countries)
	}
}

func TestFetchMalformedPayloadIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer srv.Close()

	from, to := window(t)
	_, err := testClient(srv.URL).Fetch(context.Background(), []string{"India"}, from, to)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
}
