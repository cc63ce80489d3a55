/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package project

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planning"
)

// icalLineLimit is the folding width from RFC 5545, in octets.
const icalLineLimit = 75

// WriteICal writes the timeline as a calendar with one VEVENT per segment
// and overlay. UIDs are derived from the segment so re-exports are stable.
func WriteICal(w io.Writer, projectName string, tl *planning.Timeline, now time.Time) error {
	var buf bytes.Buffer
	line := func(format string, args ...any) {
		writeFolded(&buf, fmt.Sprintf(format, args...))
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//Hydroplan//Survey Timeline//EN")
	line("X-WR-CALNAME:%s", escapeICalText(projectName))
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")

	for _, group := range [][]planning.Segment{tl.Segments, tl.Overlays} {
		for _, s := range group {
			line("BEGIN:VEVENT")
			line("UID:%s@hydroplan", segmentUID(s))
			line("DTSTAMP:%s", formatICalTime(now))
			line("DTSTART:%s", formatICalTime(s.Start))
			line("DTEND:%s", formatICalTime(s.Finish))
			line("SUMMARY:%s", escapeICalText(s.Label))
			line("CATEGORIES:%s", escapeICalText(s.Kind))
			line("LOCATION:%s", escapeICalText(s.Resource))
			line("END:VEVENT")
		}
	}
	line("END:VCALENDAR")

	_, err := w.Write(buf.Bytes())
	return err
}

func segmentUID(s planning.Segment) string {
	key := strings.Join([]string{s.Resource, s.Label, s.Kind, s.Start.UTC().Format(time.RFC3339Nano)}, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// ICalEvent is one parsed VEVENT.
type ICalEvent struct {
	UID         string
	Summary     string
	Description string
	Category    string
	Start       time.Time
	End         time.Time
}

// ICalImport is the result of reading a calendar into tasks.
type ICalImport struct {
	Tasks   []models.Task
	Skipped []string
}

// ReadICal turns VEVENTs into unassigned, non-pausing tasks. The first
// CATEGORIES value becomes the task category. Events without a summary or
// start are skipped; a missing end makes a zero-length task.
func ReadICal(r io.Reader) (*ICalImport, error) {
	events, err := parseICalEvents(r)
	if err != nil {
		return nil, err
	}

	out := &ICalImport{}
	for i, ev := range events {
		if ev.Summary == "" || ev.Start.IsZero() {
			out.Skipped = append(out.Skipped, fmt.Sprintf("event %d: missing SUMMARY or DTSTART", i+1))
			continue
		}
		end := ev.End
		if end.IsZero() {
			end = ev.Start
		}
		if end.Before(ev.Start) {
			out.Skipped = append(out.Skipped, fmt.Sprintf("event %d (%s): DTEND before DTSTART", i+1, ev.Summary))
			continue
		}
		t := models.Task{
			Name:      ev.Summary,
			Category:  models.TaskCategory(ev.Category),
			StartDate: ev.Start,
			EndDate:   end,
		}
		if ev.UID != "" {
			t.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(ev.UID)).String()
		}
		out.Tasks = append(out.Tasks, t)
	}
	return out, nil
}

func parseICalEvents(r io.Reader) ([]ICalEvent, error) {
	lines, err := unfoldICal(r)
	if err != nil {
		return nil, err
	}

	var events []ICalEvent
	var current *ICalEvent
	for _, line := range lines {
		name, params, value, ok := splitICalLine(line)
		if !ok {
			continue
		}
		switch {
		case name == "BEGIN" && strings.EqualFold(value, "VEVENT"):
			current = &ICalEvent{}
		case name == "END" && strings.EqualFold(value, "VEVENT"):
			if current != nil {
				events = append(events, *current)
				current = nil
			}
		case current == nil:
		case name == "UID":
			current.UID = value
		case name == "SUMMARY":
			current.Summary = unescapeICalText(value)
		case name == "DESCRIPTION":
			current.Description = unescapeICalText(value)
		case name == "CATEGORIES":
			if current.Category == "" {
				first, _, _ := strings.Cut(value, ",")
				current.Category = unescapeICalText(first)
			}
		case name == "DTSTART":
			current.Start = parseICalTime(value, params)
		case name == "DTEND":
			current.End = parseICalTime(value, params)
		}
	}
	return events, nil
}

// unfoldICal joins continuation lines, which start with a space or tab.
func unfoldICal(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := strings.TrimSuffix(sc.Text(), "\r")
		if (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, raw)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	return lines, nil
}

// splitICalLine splits "NAME;PARAM=X:value" into its parts.
func splitICalLine(line string) (name string, params map[string]string, value string, ok bool) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", nil, "", false
	}
	parts := strings.Split(head, ";")
	name = strings.ToUpper(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		params = make(map[string]string, len(parts)-1)
		for _, p := range parts[1:] {
			k, v, _ := strings.Cut(p, "=")
			params[strings.ToUpper(k)] = strings.Trim(v, `"`)
		}
	}
	return name, params, strings.TrimSpace(value), true
}

func parseICalTime(s string, params map[string]string) time.Time {
	loc := time.UTC
	if tzid := params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if t, err := time.Parse("20060102T150405Z", s); err == nil {
		return t
	}
	for _, layout := range []string{"20060102T150405", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func unescapeICalText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// writeFolded writes one content line, folding it at the octet limit
// without splitting a UTF-8 sequence.
func writeFolded(buf *bytes.Buffer, line string) {
	limit := icalLineLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n ")
		line = line[cut:]
		limit = icalLineLimit - 1
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
