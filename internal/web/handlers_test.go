package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/griddle/griddle/internal/config"
	"github.com/griddle/griddle/internal/engine"
	"github.com/griddle/griddle/internal/snapshot"
)

func TestMain(m *testing.M) {
	// Handlers log through the default logger; keep test output quiet.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// ============================================================
// Test harness
// ============================================================

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 5 * time.Second,
		},
		Engine: config.EngineConfig{
			HistoryLimit: 50,
			QueueSize:    16,
		},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

// newTestServer wires a real engine and a temp snapshot store behind the
// router. Mutators adjust the config before wiring.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *snapshot.Store) {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(engine.Options{
		QueueSize:      cfg.Engine.QueueSize,
		HistoryLimit:   cfg.Engine.HistoryLimit,
		StrictCommands: cfg.Engine.StrictCommands,
		Logger:         quiet,
	})
	eng.Start()
	t.Cleanup(eng.Stop)

	store, err := snapshot.Open(filepath.Join(t.TempDir(), "test.db"), quiet)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewServer(eng, store, cfg), store
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, s, req)
}

func decodeAPI(t *testing.T, rr *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var out APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rr.Body.String())
	}
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error response: %v\nbody: %s", err, rr.Body.String())
	}
	return out
}

// loadCSV pushes a raw CSV body through /api/load and fails the test on
// anything but success.
func loadCSV(t *testing.T, s *Server, name, data string) APIResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/load?name="+name, strings.NewReader(data))
	req.Header.Set("Content-Type", "text/csv")
	rr := doRequest(t, s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("load %q: status = %d, body %s", name, rr.Code, rr.Body.String())
	}
	return decodeAPI(t, rr)
}

const salesCSV = "region,amount\nwest,100\neast,200\nwest,300\n"

// ============================================================
// Load
// ============================================================

func TestLoadMultipartCSV(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sales.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("region,amount\nwest,100\neast,NA\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/load", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := doRequest(t, s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.Type != engine.RespDataLoaded {
		t.Errorf("type = %q, want %q", out.Type, engine.RespDataLoaded)
	}
	if out.Name != "sales.csv" {
		t.Errorf("name = %q, want %q", out.Name, "sales.csv")
	}
	if out.View == nil || out.View.TotalRows != 2 {
		t.Fatalf("view = %+v, want 2 rows", out.View)
	}
	if len(out.View.Columns) != 2 || out.View.Columns[0] != "region" {
		t.Errorf("columns = %v, want [region amount]", out.View.Columns)
	}
	if !out.View.Rows[1].Get("amount").IsMissing() {
		t.Error("NA cell should arrive missing")
	}
}

func TestLoadRawJSONKeepsColumnOrder(t *testing.T) {
	s, _ := newTestServer(t)

	body := `[{"a": 1, "b": "x"}, {"c": true, "a": 2}]`
	req := httptest.NewRequest(http.MethodPost, "/api/load?name=data.json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := doRequest(t, s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	want := []string{"a", "b", "c"}
	if len(out.View.Columns) != len(want) {
		t.Fatalf("columns = %v, want %v", out.View.Columns, want)
	}
	for i := range want {
		if out.View.Columns[i] != want[i] {
			t.Errorf("columns[%d] = %q, want %q", i, out.View.Columns[i], want[i])
		}
	}
}

func TestLoadNameDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/load", strings.NewReader("a\n1\n"))
	req.Header.Set("Content-Type", "text/csv")
	rr := doRequest(t, s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if out := decodeAPI(t, rr); out.Name != "dataset" {
		t.Errorf("name = %q, want %q", out.Name, "dataset")
	}
}

func TestLoadBadPayload(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"blank lines only", "\n  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/load", strings.NewReader(tt.body))
			rr := doRequest(t, s, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if e := decodeError(t, rr); e.Code != "BAD_UPLOAD" {
				t.Errorf("code = %q, want %q", e.Code, "BAD_UPLOAD")
			}
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Upload.MaxBytes = 16
	})

	body := strings.Repeat("x", 100)
	req := httptest.NewRequest(http.MethodPost, "/api/load", strings.NewReader(body))
	rr := doRequest(t, s, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
	if e := decodeError(t, rr); e.Code != "TOO_LARGE" {
		t.Errorf("code = %q, want %q", e.Code, "TOO_LARGE")
	}
}

// ============================================================
// View and pagination
// ============================================================

func TestViewBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if e := decodeError(t, rr); e.Code != engine.CodeNoDataset {
		t.Errorf("code = %q, want %q", e.Code, engine.CodeNoDataset)
	}
}

func TestViewPagination(t *testing.T) {
	s, _ := newTestServer(t)

	var b strings.Builder
	b.WriteString("n\n")
	for i := 1; i <= 120; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	loadCSV(t, s, "numbers.csv", b.String())

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/view?page=2&pageSize=50", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	v := out.View
	if v.Page != 2 || v.PageSize != 50 || v.TotalRows != 120 || v.TotalPages != 3 {
		t.Fatalf("page meta = %+v, want page 2 of 3, 120 rows", v)
	}
	if len(v.Rows) != 50 {
		t.Fatalf("rows on page = %d, want 50", len(v.Rows))
	}
	if n, _ := v.Rows[0].Get("n").Numeric(); n != 51 {
		t.Errorf("first row of page 2 = %v, want 51", n)
	}

	// Past-the-end requests clamp to the last page
	rr = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/view?page=99&pageSize=50", nil))
	out = decodeAPI(t, rr)
	if out.View.Page != 3 || len(out.View.Rows) != 20 {
		t.Errorf("clamped page = %d with %d rows, want page 3 with 20", out.View.Page, len(out.View.Rows))
	}

	// Oversized page sizes cap out
	rr = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/view?pageSize=9999", nil))
	out = decodeAPI(t, rr)
	if out.View.PageSize != MaxPageSize {
		t.Errorf("pageSize = %d, want capped to %d", out.View.PageSize, MaxPageSize)
	}
}

// ============================================================
// Commands
// ============================================================

func TestCommandFilterSortReset(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "FILTER region == west"})
	if rr.Code != http.StatusOK {
		t.Fatalf("filter: status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.Type != engine.RespDataUpdated {
		t.Errorf("type = %q, want %q", out.Type, engine.RespDataUpdated)
	}
	if out.View.TotalRows != 2 {
		t.Fatalf("filtered rows = %d, want 2", out.View.TotalRows)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "SORT amount DESC"})
	out = decodeAPI(t, rr)
	if n, _ := out.View.Rows[0].Get("amount").Numeric(); n != 300 {
		t.Errorf("first row after sort = %v, want 300", n)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", rr.Code)
	}
	if out = decodeAPI(t, rr); out.View.TotalRows != 3 {
		t.Errorf("rows after reset = %d, want 3", out.View.TotalRows)
	}
}

func TestCommandStats(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "STATS amount"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.Type != engine.RespCommandResult {
		t.Errorf("type = %q, want %q", out.Type, engine.RespCommandResult)
	}
	st := out.Stats
	if st == nil {
		t.Fatal("stats missing from response")
	}
	if st.Count != 3 || st.Sum != 600 || st.Avg != 200 {
		t.Errorf("stats = %+v, want count 3 sum 600 avg 200", st)
	}
	if st.Min == nil || *st.Min != 100 || st.Max == nil || *st.Max != 300 {
		t.Errorf("min/max = %v/%v, want 100/300", st.Min, st.Max)
	}
	if out.View != nil {
		t.Error("stats response should not carry a view")
	}
}

func TestCommandValidation(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	tests := []struct {
		name     string
		command  string
		wantCode string
	}{
		{"empty command", "   ", engine.CodeBadRequest},
		{"filter missing args", "FILTER region", engine.CodeBadCommand},
		{"bad operator", "FILTER region ~ west", engine.CodeBadCommand},
		{"bad sort direction", "SORT amount SIDEWAYS", engine.CodeBadCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": tt.command})
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if e := decodeError(t, rr); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestCommandUnknownVerbLenient(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "EXPLODE everything"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through, body %s", rr.Code, rr.Body.String())
	}
	if out := decodeAPI(t, rr); out.View.TotalRows != 3 {
		t.Errorf("rows = %d, want unchanged 3", out.View.TotalRows)
	}
}

func TestCommandUnknownVerbStrict(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Engine.StrictCommands = true
	})
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "EXPLODE everything"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); e.Code != engine.CodeUnknownCommand {
		t.Errorf("code = %q, want %q", e.Code, engine.CodeUnknownCommand)
	}
}

func TestCommandBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "SORT amount"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if e := decodeError(t, rr); e.Code != engine.CodeNoDataset {
		t.Errorf("code = %q, want %q", e.Code, engine.CodeNoDataset)
	}
}

// ============================================================
// Mutations and history
// ============================================================

func TestEditUndoRedoFlow(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/edit", map[string]interface{}{
		"row": 0, "column": "amount", "value": 999,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if n, _ := out.View.Rows[0].Get("amount").Numeric(); n != 999 {
		t.Fatalf("edited cell = %v, want 999", n)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	out = decodeAPI(t, rr)
	if out.History == nil || !out.History.CanUndo || out.History.CanRedo {
		t.Fatalf("history = %+v, want undo only", out.History)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/undo", nil)
	out = decodeAPI(t, rr)
	if n, _ := out.View.Rows[0].Get("amount").Numeric(); n != 100 {
		t.Errorf("cell after undo = %v, want 100", n)
	}
	if out.History == nil || !out.History.CanRedo {
		t.Errorf("history after undo = %+v, want redo available", out.History)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/redo", nil)
	out = decodeAPI(t, rr)
	if n, _ := out.View.Rows[0].Get("amount").Numeric(); n != 999 {
		t.Errorf("cell after redo = %v, want 999", n)
	}
	if out.History == nil || !out.History.CanUndo {
		t.Errorf("history after redo = %+v, want undo available", out.History)
	}
}

func TestEditNullClearsCell(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/edit", map[string]interface{}{
		"row": 1, "column": "amount", "value": nil,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if !out.View.Rows[1].Get("amount").IsMissing() {
		t.Error("null edit should clear the cell to missing")
	}
}

func TestEditValidation(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing row", map[string]interface{}{"column": "amount", "value": 1}},
		{"missing column", map[string]interface{}{"row": 0, "value": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, s, http.MethodPost, "/api/edit", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if e := decodeError(t, rr); e.Code != engine.CodeBadRequest {
				t.Errorf("code = %q, want %q", e.Code, engine.CodeBadRequest)
			}
		})
	}
}

func TestDeleteRows(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doJSON(t, s, http.MethodPost, "/api/delete", map[string]interface{}{"rows": []int{0, 2}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.View.TotalRows != 1 {
		t.Fatalf("rows after delete = %d, want 1", out.View.TotalRows)
	}
	if n, _ := out.View.Rows[0].Get("amount").Numeric(); n != 200 {
		t.Errorf("survivor = %v, want the middle row (200)", n)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/delete", map[string]interface{}{"rows": []int{}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty delete: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHistoryBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.History == nil || out.History.CanUndo || out.History.CanRedo {
		t.Errorf("history = %+v, want empty", out.History)
	}
}

// ============================================================
// Export
// ============================================================

func TestExportDownload(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/export/csv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/csv")
	}
	// The download is named after the loaded dataset, not a generic stem.
	cd := rr.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="sales_`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "region,amount\n") {
		t.Errorf("body should start with the header row, got %q", body)
	}
	if !strings.Contains(body, "west,100") {
		t.Errorf("body missing data rows: %q", body)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/export/json", nil))
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("json export Content-Type = %q", ct)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/export/xml", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); e.Code != engine.CodeUnknownFormat {
		t.Errorf("code = %q, want %q", e.Code, engine.CodeUnknownFormat)
	}
}

func TestExportBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/export/csv", nil))
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

// ============================================================
// Snapshots
// ============================================================

func TestSnapshotListEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("empty list = %s, want []", got)
	}
}

func TestSnapshotListAndRestore(t *testing.T) {
	s, store := newTestServer(t)

	snap := &engine.Snapshot{
		Name:    "q1.csv",
		Columns: []string{"region", "amount"},
		Rows: []*engine.Row{
			{ID: "r1", Cells: map[string]engine.Value{"region": engine.Text("west"), "amount": engine.Number(100)}},
			{ID: "r2", Cells: map[string]engine.Value{"region": engine.Text("east"), "amount": engine.Number(200)}},
		},
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	var infos []snapshot.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "q1.csv" || infos[0].Rows != 2 {
		t.Fatalf("list = %+v, want one entry for q1.csv", infos)
	}

	rr = doJSON(t, s, http.MethodPost, "/api/snapshots/q1.csv/restore", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: status = %d, body %s", rr.Code, rr.Body.String())
	}
	out := decodeAPI(t, rr)
	if out.Name != "q1.csv" {
		t.Errorf("restored name = %q, want %q", out.Name, "q1.csv")
	}
	if out.View.TotalRows != 2 {
		t.Errorf("restored rows = %d, want 2", out.View.TotalRows)
	}

	// The restored dataset is live
	rr = doJSON(t, s, http.MethodPost, "/api/command", map[string]string{"command": "STATS amount"})
	if out = decodeAPI(t, rr); out.Stats == nil || out.Stats.Sum != 300 {
		t.Errorf("stats on restored data = %+v, want sum 300", out.Stats)
	}
}

func TestSnapshotRestoreNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doJSON(t, s, http.MethodPost, "/api/snapshots/nope/restore", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if e := decodeError(t, rr); e.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want %q", e.Code, "NOT_FOUND")
	}
}

// ============================================================
// Health, headers, rate limiting
// ============================================================

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for k, want := range headers {
		if got := rr.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	})

	for i := 0; i < 2; i++ {
		rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want %q", rr.Header().Get("Retry-After"), "60")
	}
	if e := decodeError(t, rr); e.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want %q", e.Code, "RATE_LIMITED")
	}
}

// ============================================================
// Concurrent traffic
// ============================================================

// TestConcurrentViewAndEditTraffic overlaps readers encoding views and
// exports with writers editing cells. Run with -race; every handler
// serializes through the engine and encodes a detached payload, so no
// request may observe another one's rows mid-write.
func TestConcurrentViewAndEditTraffic(t *testing.T) {
	s, _ := newTestServer(t)
	loadCSV(t, s, "sales.csv", salesCSV)

	var wg sync.WaitGroup
	hit := func(label string, build func(i int) *http.Request) {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			rr := doRequest(t, s, build(i))
			if rr.Code != http.StatusOK {
				t.Errorf("%s %d: status = %d, body %s", label, i, rr.Code, rr.Body.String())
				return
			}
		}
	}

	wg.Add(4)
	go hit("view", func(int) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/api/view", nil)
	})
	go hit("export", func(int) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/api/export/json", nil)
	})
	for w := 0; w < 2; w++ {
		seed := w * 1000
		go hit("edit", func(i int) *http.Request {
			body := fmt.Sprintf(`{"row":0,"column":"amount","value":%d}`, seed+i)
			req := httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			return req
		})
	}
	wg.Wait()
}
