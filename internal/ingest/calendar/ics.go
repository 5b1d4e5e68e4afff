package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Minimal iCalendar reader: enough of RFC 5545 to walk VEVENT components in
// the feeds we poll. Continuation lines are unfolded, property parameters
// are kept, text escapes are decoded.

var errNoCalendar = errors.New("no VCALENDAR in document")

type icsProp struct {
	params map[string]string
	value  string
}

type icsEvent struct {
	props map[string]icsProp
}

func (e icsEvent) get(name string) string {
	return e.props[name].value
}

// parseCalendar extracts VEVENT components from an iCalendar document.
// A document without a VCALENDAR envelope is a whole-source failure.
func parseCalendar(content string) ([]icsEvent, error) {
	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		return nil, errNoCalendar
	}

	var events []icsEvent
	var current *icsEvent

	for _, line := range unfoldLines(content) {
		switch {
		case line == "BEGIN:VEVENT":
			current = &icsEvent{props: map[string]icsProp{}}
		case line == "END:VEVENT" && current != nil:
			events = append(events, *current)
			current = nil
		case current != nil:
			if name, prop, ok := parseContentLine(line); ok {
				current.props[name] = prop
			}
		}
	}

	return events, nil
}

// unfoldLines joins folded lines (continuations start with space or tab).
func unfoldLines(content string) []string {
	raw := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var out []string
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseContentLine splits "NAME;PARAM=V:value" into its parts. The value
// separator is the first colon outside quoted parameter values, so
// ALTREP="cid:..." params stay in the head.
func parseContentLine(line string) (string, icsProp, bool) {
	colon := valueSeparator(line)
	if colon < 0 {
		return "", icsProp{}, false
	}

	head := line[:colon]
	value := unescapeText(line[colon+1:])

	parts := strings.Split(head, ";")
	name := strings.ToUpper(parts[0])
	params := map[string]string{}
	for _, p := range parts[1:] {
		if eq := strings.Index(p, "="); eq > 0 {
			params[strings.ToUpper(p[:eq])] = strings.Trim(p[eq+1:], `"`)
		}
	}

	return name, icsProp{params: params, value: value}, true
}

func valueSeparator(line string) int {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return i
			}
		}
	}
	return -1
}

func unescapeText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}

// parseICSTime decodes a DTSTART/DTEND property. DATE-valued properties mark
// all-day events; local times carrying a TZID param are resolved through the
// IANA zone and stored as UTC, floating times without one are treated as UTC.
func parseICSTime(p icsProp) (t time.Time, allDay bool, err error) {
	v := strings.TrimSpace(p.value)
	if v == "" {
		return time.Time{}, false, errors.New("empty date value")
	}

	if p.params["VALUE"] == "DATE" || len(v) == 8 {
		t, err = time.Parse("20060102", v)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("bad DATE value %q: %w", v, err)
		}
		return t.UTC(), true, nil
	}

	if tzid := p.params["TZID"]; tzid != "" && !strings.HasSuffix(v, "Z") {
		loc, lerr := time.LoadLocation(tzid)
		if lerr != nil {
			return time.Time{}, false, fmt.Errorf("unknown TZID %q: %w", tzid, lerr)
		}
		t, err = time.ParseInLocation("20060102T150405", v, loc)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("bad DATE-TIME value %q", v)
		}
		return t.UTC(), false, nil
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405"} {
		if t, err = time.Parse(layout, v); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("bad DATE-TIME value %q", v)
}
