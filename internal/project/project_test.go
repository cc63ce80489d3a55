/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package project

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSnapshot() store.Snapshot {
	vesselID := "v1"
	return store.Snapshot{
		Project: models.Project{Name: "North Sea 2025", UnsurveyedKM: 500},
		Vessels: []models.Vessel{{
			ID:          vesselID,
			Name:        "Alpha",
			DistanceKM:  120,
			SpeedKnots:  5,
			StartDate:   day(2025, 1, 1),
			Transit:     models.Days(1),
			Weather:     models.Days(2),
			Maintenance: models.Hours(0),
		}},
		Tasks: []models.Task{{
			ID:           "t1",
			Name:         "Engine service",
			Category:     models.CategoryMaintenance,
			StartDate:    day(2025, 1, 2),
			EndDate:      day(2025, 1, 3),
			VesselID:     &vesselID,
			PausesSurvey: true,
		}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json": FormatJSON, ".YAML": FormatYAML, "yml": FormatYAML,
		"csv": FormatCSV, "ical": FormatICal, ".ics": FormatICal,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Fatal("ParseFormat(xlsx) should fail")
	}
	if got := Filename("North Sea 2025!", FormatYAML); got != "north-sea-2025.yaml" {
		t.Fatalf("Filename = %q, want north-sea-2025.yaml", got)
	}
	if got := Filename("!!!", FormatJSON); got != "project.json" {
		t.Fatalf("Filename = %q, want project.json", got)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, f, sampleSnapshot()); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !strings.Contains(buf.String(), "2025-01-05") {
				t.Fatalf("encoded document lacks derived end date:\n%s", buf.String())
			}

			snap, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if snap.Project.Name != "North Sea 2025" || snap.Project.UnsurveyedKM != 500 {
				t.Fatalf("project = %+v", snap.Project)
			}
			if len(snap.Vessels) != 1 || len(snap.Tasks) != 1 {
				t.Fatalf("got %d vessels, %d tasks; want 1, 1", len(snap.Vessels), len(snap.Tasks))
			}
			v := snap.Vessels[0]
			if v.DistanceKM != 120 || v.SpeedKnots != 5 || !v.StartDate.Equal(day(2025, 1, 1)) {
				t.Fatalf("vessel = %+v", v)
			}
			if v.Weather != models.Days(2) || v.Maintenance != models.Hours(0) {
				t.Fatalf("allowances = %+v / %+v", v.Weather, v.Maintenance)
			}
			task := snap.Tasks[0]
			if task.VesselID == nil || *task.VesselID != "v1" || !task.PausesSurvey {
				t.Fatalf("task = %+v", task)
			}
		})
	}
}

func TestDecodeRejectsUnknownFieldsAndNewerVersions(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"format_version":1,"project":{"name":"x"},"bogus":1}`), FormatJSON); err == nil {
		t.Fatal("unknown field accepted")
	}
	if _, err := Decode(strings.NewReader(`{"format_version":99,"project":{"name":"x"}}`), FormatJSON); err == nil {
		t.Fatal("newer format version accepted")
	}
	if _, err := Decode(strings.NewReader("format_version: 1\nextra: true\n"), FormatYAML); err == nil {
		t.Fatal("unknown yaml field accepted")
	}
}

func TestDecodeAllowanceShorthand(t *testing.T) {
	doc := `
format_version: 1
project:
  name: Shorthand
  unsurveyed_km: 0
vessels:
  - id: v1
    name: Alpha
    distance_km: 240
    speed: 5
    start_date: 2025-03-01
    transit: 36h
    weather: 1.5
    maintenance: {value: 12, unit: hours}
tasks: []
`
	snap, err := Decode(strings.NewReader(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v := snap.Vessels[0]
	if v.Transit != models.Hours(36) || v.Weather != models.Days(1.5) || v.Maintenance != models.Hours(12) {
		t.Fatalf("allowances = %+v %+v %+v", v.Transit, v.Weather, v.Maintenance)
	}
}

func TestDecodeLegacyDocument(t *testing.T) {
	doc := `{
  "project_name": "Legacy",
  "unsurveyed_km": 80,
  "vessels": [{"name": "Alpha", "line_km": 120, "speed": 5, "start_date": "2025-01-01",
               "survey_days": 1.0, "transit_days": 1, "weather_days": 2, "maintenance_days": 0,
               "total_days": 4.0, "end_date": "2025-01-05"}],
  "tasks": [
    {"name": "Service", "type": "Maintenance", "start_date": "2025-01-02", "end_date": "2025-01-03", "vessel": "Alpha", "pause_survey": true},
    {"name": "Lost", "type": "Other", "start_date": "2025-01-02", "end_date": "2025-01-02", "vessel": "Ghost", "pause_survey": false},
    {"name": "Briefing", "type": "Other", "start_date": "2025-01-01", "end_date": "2025-01-01", "vessel": null, "pause_survey": false}
  ]
}`
	snap, err := Decode(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.Project.Name != "Legacy" || len(snap.Vessels) != 1 || len(snap.Tasks) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	v := snap.Vessels[0]
	if v.ID == "" || v.DistanceKM != 120 || v.Weather != models.Days(2) {
		t.Fatalf("vessel = %+v", v)
	}
	if got := snap.Tasks[0].VesselID; got == nil || *got != v.ID {
		t.Fatalf("task 0 vessel = %v, want %s", got, v.ID)
	}
	if got := snap.Tasks[1].VesselID; got == nil || *got != "Ghost" {
		t.Fatalf("task 1 vessel = %v, want Ghost", got)
	}
	if snap.Tasks[2].VesselID != nil {
		t.Fatalf("task 2 vessel = %v, want nil", *snap.Tasks[2].VesselID)
	}

	tl := planning.Assemble(snap.Vessels, snap.Tasks)
	if len(tl.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want one dangling reference", tl.Warnings)
	}
}

func TestWriteCSVSheets(t *testing.T) {
	snap := sampleSnapshot()
	tl := planning.Assemble(snap.Vessels, snap.Tasks)

	read := func(t *testing.T, sheet Sheet) [][]string {
		t.Helper()
		var buf bytes.Buffer
		if err := WriteCSV(&buf, sheet, snap, tl); err != nil {
			t.Fatalf("WriteCSV(%s): %v", sheet, err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("read csv: %v", err)
		}
		return rows
	}

	vessels := read(t, SheetVessels)
	if len(vessels) != 2 {
		t.Fatalf("vessel rows = %d, want 2", len(vessels))
	}
	row := vessels[1]
	if row[1] != "Alpha" || row[5] != "1d" || row[9] != "1" || row[12] != "4" || row[13] != "2025-01-05" {
		t.Fatalf("vessel row = %v", row)
	}

	tasks := read(t, SheetTasks)
	if got := tasks[1][5]; got != "Alpha" {
		t.Fatalf("task vessel column = %q, want Alpha", got)
	}

	segments := read(t, SheetSegments)
	if len(segments) != 1+len(tl.Segments) {
		t.Fatalf("segment rows = %d, want %d", len(segments), 1+len(tl.Segments))
	}
	if segments[2][1] != "Task: Engine service" || segments[2][5] != "1" {
		t.Fatalf("pause row = %v", segments[2])
	}

	if err := WriteCSV(&bytes.Buffer{}, SheetSegments, snap, nil); err == nil {
		t.Fatal("segments without a timeline should fail")
	}
	if _, err := ParseSheet("gantt"); err == nil {
		t.Fatal("ParseSheet(gantt) should fail")
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	snap.Vessels[0].Maintenance = models.Hours(10)

	var vessels, tasks bytes.Buffer
	if err := WriteCSV(&vessels, SheetVessels, snap, nil); err != nil {
		t.Fatalf("WriteCSV(vessels): %v", err)
	}
	if err := WriteCSV(&tasks, SheetTasks, snap, nil); err != nil {
		t.Fatalf("WriteCSV(tasks): %v", err)
	}

	imported, err := ReadCSV(&tasks, &vessels)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !imported.HasVessels || !imported.HasTasks {
		t.Fatalf("sheets seen = %v/%v, want both", imported.HasVessels, imported.HasTasks)
	}
	got := imported.Apply(store.Snapshot{Project: snap.Project})

	if got.Project.Name != "North Sea 2025" {
		t.Fatalf("project = %q, want current project kept", got.Project.Name)
	}
	v := got.Vessels[0]
	want := snap.Vessels[0]
	if v.ID != want.ID || v.Name != want.Name || v.DistanceKM != want.DistanceKM || v.SpeedKnots != want.SpeedKnots ||
		!v.StartDate.Equal(want.StartDate) || v.Transit != want.Transit || v.Weather != want.Weather || v.Maintenance != want.Maintenance {
		t.Fatalf("vessel = %+v, want %+v", v, want)
	}
	task := got.Tasks[0]
	if task.ID != "t1" || !task.PausesSurvey || task.Category != models.CategoryMaintenance ||
		!task.StartDate.Equal(day(2025, 1, 2)) || !task.EndDate.Equal(day(2025, 1, 3)) {
		t.Fatalf("task = %+v", task)
	}
	if task.VesselID == nil || *task.VesselID != "v1" {
		t.Fatalf("task vessel = %v, want name resolved to v1", task.VesselID)
	}

	before := planning.Assemble(snap.Vessels, snap.Tasks)
	after := planning.Assemble(got.Vessels, got.Tasks)
	if len(after.Segments) != len(before.Segments) || !after.Segments[2].Finish.Equal(before.Segments[2].Finish) {
		t.Fatalf("timeline changed across csv round trip:\n%+v\n%+v", before.Segments, after.Segments)
	}
}

func TestReadCSVSpreadsheetColumns(t *testing.T) {
	sheet := "Name,Start_Date,End_Date,Vessel,Pauses_Survey,Category\nDry dock,2025-03-01,2025-03-04,Ghost,Yes,Maintenance\nBriefing,2025-03-01,2025-03-01,,No,\n"
	imported, err := ReadCSV(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if imported.HasVessels || len(imported.Tasks) != 2 {
		t.Fatalf("import = %+v", imported)
	}
	current := sampleSnapshot()
	got := imported.Apply(current)
	if len(got.Vessels) != 1 || got.Vessels[0].ID != "v1" {
		t.Fatalf("vessels = %+v, want current vessels kept", got.Vessels)
	}
	if ref := got.Tasks[0].VesselID; ref == nil || *ref != "Ghost" || !got.Tasks[0].PausesSurvey {
		t.Fatalf("first task = %+v, want unresolved pausing reference", got.Tasks[0])
	}
	if got.Tasks[1].VesselID != nil || got.Tasks[1].ID == "" {
		t.Fatalf("second task = %+v, want unassigned with generated id", got.Tasks[1])
	}

	for name, bad := range map[string]string{
		"unknown header": "resource,label\nA,B\n",
		"bad speed":      "name,distance_km,speed,start_date\nA,10,fast,2025-01-01\n",
		"bad date":       "name,start_date,end_date,pauses_survey\nA,soon,2025-01-01,no\n",
		"empty":          "",
	} {
		if _, err := ReadCSV(strings.NewReader(bad)); err == nil {
			t.Fatalf("%s: ReadCSV succeeded, want error", name)
		}
	}
	if _, err := ReadCSV(strings.NewReader(sheet), strings.NewReader(sheet)); err == nil {
		t.Fatal("two tasks sheets should fail")
	}
}

func TestICalExportReadsBack(t *testing.T) {
	snap := sampleSnapshot()
	snap.Tasks[0].Name = strings.Repeat("Very long maintenance window name, with commas; ", 3) + "end"
	tl := planning.Assemble(snap.Vessels, snap.Tasks)

	var buf bytes.Buffer
	if err := WriteICal(&buf, snap.Project.Name, tl, day(2025, 1, 1)); err != nil {
		t.Fatalf("WriteICal: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\r\n") {
		if len(line) > icalLineLimit {
			t.Fatalf("line longer than %d octets: %q", icalLineLimit, line)
		}
	}

	events, err := parseICalEvents(&buf)
	if err != nil {
		t.Fatalf("parseICalEvents: %v", err)
	}
	if len(events) != len(tl.Segments) {
		t.Fatalf("events = %d, want %d", len(events), len(tl.Segments))
	}
	for i, ev := range events {
		s := tl.Segments[i]
		if ev.Summary != s.Label || ev.Category != s.Kind || !ev.Start.Equal(s.Start) || !ev.End.Equal(s.Finish) {
			t.Fatalf("event %d = %+v, want segment %+v", i, ev, s)
		}
	}
}

func TestReadICal(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cal := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:abc@example",
		"SUMMARY:Harbour call\\, Bergen",
		"CATEGORIES:Maintenance,Other",
		"DTSTART;TZID=Europe/Oslo:20250102T080000",
		"DTEND;TZID=Europe/Oslo:20250102T200000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"SUMMARY:Sampling",
		"  run",
		"DTSTART;VALUE=DATE:20250103",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:20250104T000000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	res, err := ReadICal(strings.NewReader(cal))
	if err != nil {
		t.Fatalf("ReadICal: %v", err)
	}
	if len(res.Tasks) != 2 || len(res.Skipped) != 1 {
		t.Fatalf("tasks = %d, skipped = %v", len(res.Tasks), res.Skipped)
	}

	first := res.Tasks[0]
	if first.Name != "Harbour call, Bergen" || first.Category != models.CategoryMaintenance {
		t.Fatalf("first task = %+v", first)
	}
	if want := time.Date(2025, 1, 2, 8, 0, 0, 0, oslo); !first.StartDate.Equal(want) {
		t.Fatalf("first start = %v, want %v", first.StartDate, want)
	}
	if first.ID == "" || first.VesselID != nil || first.PausesSurvey {
		t.Fatalf("first task should be an unassigned task with a derived id: %+v", first)
	}

	again, _ := ReadICal(strings.NewReader(cal))
	if again.Tasks[0].ID != first.ID {
		t.Fatalf("ids differ across imports: %s vs %s", again.Tasks[0].ID, first.ID)
	}

	second := res.Tasks[1]
	if second.Name != "Sampling run" || second.ID != "" {
		t.Fatalf("second task = %+v", second)
	}
	if !second.StartDate.Equal(day(2025, 1, 3)) || !second.EndDate.Equal(second.StartDate) {
		t.Fatalf("second span = %v..%v", second.StartDate, second.EndDate)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-02", day(2025, 1, 2)},
		{"2025-01-02 06:30", time.Date(2025, 1, 2, 6, 30, 0, 0, time.UTC)},
		{"2025-01-02T06:30:15", time.Date(2025, 1, 2, 6, 30, 15, 0, time.UTC)},
		{"2025-01-02T06:30:00+01:00", time.Date(2025, 1, 2, 5, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if err != nil || !got.Equal(tt.want) {
			t.Fatalf("ParseTime(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseTime("02/01/2025"); err == nil {
		t.Fatal("ParseTime accepted a slash date")
	}
	if got := (Timestamp{day(2025, 1, 2)}).String(); got != "2025-01-02" {
		t.Fatalf("Timestamp.String = %q", got)
	}
}
