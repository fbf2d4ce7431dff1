package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ecocal/internal/model"
)

// decodeEvents reads a JSON array of provider rows. The token-level walk
// (rather than unmarshalling into a map) preserves the provider's column
// order for the pass-through fields, which the display contract relies on.
func decodeEvents(r io.Reader) ([]model.RawEvent, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.New("expected a JSON array of events")
	}

	events := make([]model.RawEvent, 0)
	for dec.More() {
		ev, err := decodeEvent(dec)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	// Closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	return events, nil
}

func decodeEvent(dec *json.Decoder) (model.RawEvent, error) {
	var ev model.RawEvent

	tok, err := dec.Token()
	if err != nil {
		return ev, errors.Wrap(err, "reading event")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ev, errors.New("expected a JSON object per event")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return ev, errors.Wrap(err, "reading event key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return ev, errors.New("non-string event key")
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return ev, errors.Wrapf(err, "reading value for %q", key)
		}
		s := stringify(v)

		switch strings.ToLower(key) {
		case "id":
			ev.ID = s
		case "date":
			ev.Date = s
		case "time":
			ev.Time = s
		case "zone":
			ev.Zone = s
		case "event":
			ev.Event = s
		case "importance":
			ev.Importance = s
		default:
			if ev.Extra == nil {
				ev.Extra = make(map[string]string)
			}
			ev.Extra[key] = s
			ev.ExtraOrder = append(ev.ExtraOrder, key)
		}
	}

	// Closing '}'.
	if _, err := dec.Token(); err != nil {
		return ev, errors.Wrap(err, "reading event")
	}
	return ev, nil
}

// stringify renders a decoded JSON scalar as the string the provider wrote.
// Numbers keep their literal form via json.Number; null becomes empty.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
