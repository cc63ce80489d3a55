/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/logbuffer"
	"github.com/friendsincode/hydroplan/internal/planner"
	"github.com/friendsincode/hydroplan/internal/storage"
	"github.com/friendsincode/hydroplan/internal/store"
)

var fixedNow = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) (http.Handler, *API, *events.Bus) {
	t.Helper()
	st := store.NewMemory()
	bus := events.NewBus()
	logs := logbuffer.New(100)
	logger := zerolog.New(logbuffer.NewWriter(logs))
	pl := planner.NewService(st, nil, bus, logger)
	objects := storage.NewFSStore(t.TempDir(), zerolog.Nop())

	a := New(st, pl, objects, bus, logs, logger)
	a.now = func() time.Time { return fixedNow }

	r := chi.NewRouter()
	a.Routes(r)
	return r, a, bus
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

const alphaJSON = `{"name":"Alpha","distance_km":120,"speed":5,"start_date":"2025-01-01","transit":"1d","weather":2}`

type vesselResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Summary *struct {
		TotalDays float64 `json:"total_days"`
		EndDate   string  `json:"end_date"`
	} `json:"summary"`
}

func createAlpha(t *testing.T, h http.Handler) vesselResponse {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/v1/vessels", alphaJSON)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create vessel status = %d, body %s", rr.Code, rr.Body.String())
	}
	var v vesselResponse
	decode(t, rr, &v)
	return v
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestAPI(t)
	rr := do(t, h, http.MethodGet, "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	decode(t, rr, &body)
	if body["status"] != "ok" {
		t.Fatalf("health = %v", body)
	}
}

func TestVesselLifecycle(t *testing.T) {
	h, _, _ := newTestAPI(t)

	v := createAlpha(t, h)
	if v.ID == "" || v.Summary == nil || v.Summary.TotalDays != 4 || v.Summary.EndDate != "2025-01-05" {
		t.Fatalf("created vessel = %+v", v)
	}

	rr := do(t, h, http.MethodGet, "/api/v1/vessels", "")
	var list []vesselResponse
	decode(t, rr, &list)
	if len(list) != 1 || list[0].ID != v.ID {
		t.Fatalf("list = %+v", list)
	}

	rr = do(t, h, http.MethodPut, "/api/v1/vessels/"+v.ID,
		`{"name":"Alpha","distance_km":240,"speed":5,"start_date":"2025-01-01","transit":"1d","weather":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	var updated vesselResponse
	decode(t, rr, &updated)
	if updated.Summary.TotalDays != 5 {
		t.Fatalf("updated total_days = %v, want 5", updated.Summary.TotalDays)
	}

	if rr := do(t, h, http.MethodDelete, "/api/v1/vessels/"+v.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/v1/vessels/"+v.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/api/v1/vessels/missing", alphaJSON); rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status = %d, want 404", rr.Code)
	}
}

func TestVesselValidation(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/api/v1/vessels", `{"name":"Bad","distance_km":0,"speed":5,"start_date":"2025-01-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var body map[string]string
	decode(t, rr, &body)
	if body["error"] != "invalid_input" || body["field"] != "distance_km" {
		t.Fatalf("error body = %v", body)
	}

	rr = do(t, h, http.MethodPost, "/api/v1/vessels", `{"name":"Bad","colour":"red"}`)
	decode(t, rr, &body)
	if rr.Code != http.StatusBadRequest || body["error"] != "invalid_json" {
		t.Fatalf("unknown field: status = %d, body = %v", rr.Code, body)
	}

	rr = do(t, h, http.MethodPost, "/api/v1/tasks", `{"name":"Backwards","start_date":"2025-01-03","end_date":"2025-01-02"}`)
	decode(t, rr, &body)
	if rr.Code != http.StatusBadRequest || body["field"] != "end_date" {
		t.Fatalf("backwards task: status = %d, body = %v", rr.Code, body)
	}
}

func TestTimelineEndpoint(t *testing.T) {
	h, _, _ := newTestAPI(t)
	v := createAlpha(t, h)

	rr := do(t, h, http.MethodPost, "/api/v1/tasks",
		`{"name":"Engine service","category":"Maintenance","start_date":"2025-01-02","end_date":"2025-01-03","vessel_id":"`+v.ID+`","pauses_survey":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/api/v1/tasks",
		`{"name":"Crew change","start_date":"2025-01-04","end_date":"2025-01-04 12:00","vessel_id":"ghost"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create dangling task status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/api/v1/timeline", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", rr.Code)
	}
	var res struct {
		Source   string `json:"source"`
		Timeline struct {
			Segments []struct {
				Resource string `json:"resource"`
				Label    string `json:"label"`
				Kind     string `json:"kind"`
			} `json:"segments"`
			Warnings []struct {
				TaskID string `json:"task_id"`
			} `json:"warnings"`
		} `json:"timeline"`
	}
	decode(t, rr, &res)

	want := []string{"Survey (part): Alpha", "Task: Engine service", "Survey (resumed): Alpha", "Task: Crew change"}
	if len(res.Timeline.Segments) != len(want) {
		t.Fatalf("segments = %+v", res.Timeline.Segments)
	}
	for i, label := range want {
		if res.Timeline.Segments[i].Label != label {
			t.Fatalf("segment %d label = %q, want %q", i, res.Timeline.Segments[i].Label, label)
		}
	}
	if res.Timeline.Segments[3].Resource != "Unassigned" {
		t.Fatalf("dangling task resource = %q, want Unassigned", res.Timeline.Segments[3].Resource)
	}
	if len(res.Timeline.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want 1", res.Timeline.Warnings)
	}
	if res.Source != planner.SourceEngine {
		t.Fatalf("first build source = %q, want engine", res.Source)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/timeline", "")
	decode(t, rr, &res)
	if res.Source != planner.SourceMemo {
		t.Fatalf("unchanged rebuild source = %q, want memo", res.Source)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	h, _, bus := newTestAPI(t)
	sub := bus.Subscribe(events.EventVesselCreated)
	defer bus.Unsubscribe(events.EventVesselCreated, sub)

	v := createAlpha(t, h)
	select {
	case payload := <-sub:
		if payload["vessel_id"] != v.ID {
			t.Fatalf("payload = %v, want vessel_id %s", payload, v.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no vessel.created event")
	}
}

func TestEstimate(t *testing.T) {
	h, _, _ := newTestAPI(t)
	rr := do(t, h, http.MethodPost, "/api/v1/estimate", `{"distance_km":120,"speed":5,"start_date":"2025-01-01","transit":1,"weather":"48h"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Summary struct {
			SurveyDays float64 `json:"survey_days"`
			TotalDays  float64 `json:"total_days"`
			EndDate    string  `json:"end_date"`
		} `json:"summary"`
	}
	decode(t, rr, &body)
	if body.Summary.SurveyDays != 1 || body.Summary.TotalDays != 4 || body.Summary.EndDate != "2025-01-05" {
		t.Fatalf("summary = %+v", body.Summary)
	}

	if rr := do(t, h, http.MethodPost, "/api/v1/estimate", `{"distance_km":120,"speed":0,"start_date":"2025-01-01"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("zero speed status = %d, want 400", rr.Code)
	}
}

func TestExportImport(t *testing.T) {
	h, _, _ := newTestAPI(t)
	createAlpha(t, h)

	rr := do(t, h, http.MethodGet, "/api/v1/export/json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="untitled-survey.json"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	exported := rr.Body.String()

	for path, want := range map[string]string{
		"/api/v1/export/yaml":               "format_version: 1",
		"/api/v1/export/csv?sheet=segments": "resource,label,kind,start,finish,days",
		"/api/v1/export/csv?sheet=vessels":  "Alpha",
		"/api/v1/export/ics":                "BEGIN:VEVENT",
	} {
		rr := do(t, h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("GET %s: status %d, body lacks %q:\n%s", path, rr.Code, want, rr.Body.String())
		}
	}
	if rr := do(t, h, http.MethodGet, "/api/v1/export/xlsx", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("xlsx export status = %d, want 400", rr.Code)
	}

	other, _, _ := newTestAPI(t)
	rr = do(t, other, http.MethodPost, "/api/v1/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr = do(t, other, http.MethodGet, "/api/v1/vessels", "")
	var list []vesselResponse
	decode(t, rr, &list)
	if len(list) != 1 || list[0].Name != "Alpha" {
		t.Fatalf("vessels after import = %+v", list)
	}

	if rr := do(t, other, http.MethodPost, "/api/v1/import", `{"format_version":1,"bogus":true}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad import status = %d, want 400", rr.Code)
	}
}

func TestImportICalSkipsDuplicates(t *testing.T) {
	h, _, _ := newTestAPI(t)
	cal := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:svc-1\r\nSUMMARY:Dry dock\r\nCATEGORIES:Maintenance\r\nDTSTART:20250110T000000Z\r\nDTEND:20250112T000000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	var body struct {
		Imported int      `json:"imported"`
		Skipped  []string `json:"skipped"`
	}
	decode(t, do(t, h, http.MethodPost, "/api/v1/import/ical", cal), &body)
	if body.Imported != 1 || len(body.Skipped) != 0 {
		t.Fatalf("first import = %+v", body)
	}
	decode(t, do(t, h, http.MethodPost, "/api/v1/import/ical", cal), &body)
	if body.Imported != 0 || len(body.Skipped) != 1 {
		t.Fatalf("second import = %+v", body)
	}
}

func TestImportCSVSheets(t *testing.T) {
	h, _, _ := newTestAPI(t)
	v := createAlpha(t, h)
	rr := do(t, h, http.MethodPost, "/api/v1/tasks",
		`{"name":"Engine service","category":"Maintenance","start_date":"2025-01-02","end_date":"2025-01-03","vessel_id":"`+v.ID+`","pauses_survey":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task status = %d, body %s", rr.Code, rr.Body.String())
	}
	vesselsCSV := do(t, h, http.MethodGet, "/api/v1/export/csv?sheet=vessels", "").Body.String()
	tasksCSV := do(t, h, http.MethodGet, "/api/v1/export/csv?sheet=tasks", "").Body.String()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	for field, content := range map[string]string{"vessels": vesselsCSV, "tasks": tasksCSV} {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	other, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr = httptest.NewRecorder()
	other.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("csv import status = %d, body %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Timeline struct {
			Segments []struct {
				Resource string `json:"resource"`
				Label    string `json:"label"`
			} `json:"segments"`
			Warnings []json.RawMessage `json:"warnings"`
		} `json:"timeline"`
	}
	decode(t, do(t, other, http.MethodGet, "/api/v1/timeline", ""), &res)
	want := []string{"Survey (part): Alpha", "Task: Engine service", "Survey (resumed): Alpha"}
	if len(res.Timeline.Segments) != len(want) || len(res.Timeline.Warnings) != 0 {
		t.Fatalf("timeline after csv import = %+v", res.Timeline)
	}
	for i, label := range want {
		if res.Timeline.Segments[i].Label != label || res.Timeline.Segments[i].Resource != "Alpha" {
			t.Fatalf("segment %d = %+v, want %q on Alpha", i, res.Timeline.Segments[i], label)
		}
	}

	// A single tasks sheet keeps the imported vessels.
	rr = do(t, other, http.MethodPost, "/api/v1/import?format=csv", "name,start_date,end_date,vessel,pauses_survey\nSwell,2025-01-04,2025-01-04 12:00,Alpha,No\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("tasks sheet import status = %d, body %s", rr.Code, rr.Body.String())
	}
	var counts struct {
		Vessels int `json:"vessels"`
		Tasks   int `json:"tasks"`
	}
	decode(t, rr, &counts)
	if counts.Vessels != 1 || counts.Tasks != 1 {
		t.Fatalf("counts after tasks sheet = %+v, want 1 vessel and 1 task", counts)
	}

	if rr := do(t, other, http.MethodPost, "/api/v1/import?format=csv", "resource,label\nx,y\n"); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown sheet status = %d, want 400", rr.Code)
	}
}

func TestSnapshotCreate(t *testing.T) {
	h, a, _ := newTestAPI(t)
	createAlpha(t, h)

	rr := do(t, h, http.MethodPost, "/api/v1/snapshots?format=yaml", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Key string `json:"key"`
	}
	decode(t, rr, &body)
	if body.Key != "untitled-survey/20250201T120000Z.yaml" {
		t.Fatalf("key = %q", body.Key)
	}
	data, err := a.objects.Get(context.Background(), body.Key)
	if err != nil {
		t.Fatalf("Get snapshot: %v", err)
	}
	if !strings.Contains(string(data), "name: Alpha") {
		t.Fatalf("snapshot content:\n%s", data)
	}

	a.objects = nil
	if rr := do(t, h, http.MethodPost, "/api/v1/snapshots", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled snapshots status = %d, want 503", rr.Code)
	}
}

func TestEventStream(t *testing.T) {
	h, _, bus := newTestAPI(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/events?types=vessel.created", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	// The handler subscribes after the handshake, so keep publishing until
	// the first event arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bus.Publish(events.EventVesselCreated, events.Payload{"vessel_id": "v1"})
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if msg.Type != "vessel.created" || msg.Payload["vessel_id"] != "v1" {
		t.Fatalf("event = %+v", msg)
	}
}

func TestLogsEndpoint(t *testing.T) {
	h, a, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/api/v1/tasks",
		`{"name":"Crew change","start_date":"2025-01-04","end_date":"2025-01-05","vessel_id":"ghost"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task status = %d, body %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodGet, "/api/v1/timeline", ""); rr.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/logs?level=warn&component=planner", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logs status = %d, body %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Count   int               `json:"count"`
		Entries []logbuffer.Entry `json:"entries"`
	}
	decode(t, rr, &body)
	if body.Count != 1 || body.Entries[0].Fields["task_id"] == nil {
		t.Fatalf("logs = %+v", body)
	}

	if rr := do(t, h, http.MethodGet, "/api/v1/logs?limit=-1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rr.Code)
	}

	a.logs = nil
	if rr := do(t, h, http.MethodGet, "/api/v1/logs", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("logs without buffer = %d, want 503", rr.Code)
	}
}
