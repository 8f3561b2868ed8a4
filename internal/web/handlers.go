package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/griddle/griddle/internal/engine"
	"github.com/griddle/griddle/internal/logging"
	"github.com/griddle/griddle/internal/snapshot"
)

// Pagination bounds for view responses.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ViewPage is one page of the current view.
type ViewPage struct {
	Columns    []string      `json:"columns"`
	Rows       []*engine.Row `json:"rows"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalRows  int           `json:"totalRows"`
	TotalPages int           `json:"totalPages"`
	Projected  bool          `json:"projected,omitempty"`
}

// APIResponse mirrors an engine reply with the view paginated for display.
type APIResponse struct {
	Type    engine.ResponseType  `json:"type"`
	Name    string               `json:"name,omitempty"`
	View    *ViewPage            `json:"view,omitempty"`
	Stats   *engine.Stats        `json:"stats,omitempty"`
	Export  *engine.Export       `json:"export,omitempty"`
	History *engine.HistoryState `json:"history,omitempty"`
}

// engineDo submits a request and unwraps engine-level failures. Returns
// false when an error response has already been written.
func (s *Server) engineDo(w http.ResponseWriter, r *http.Request, req engine.Request) ([]engine.Response, bool) {
	rs, err := s.eng.Do(r.Context(), req)
	if err != nil {
		writeSubmitError(w, r, err)
		return nil, false
	}
	if len(rs) > 0 && rs[0].Type == engine.RespError {
		writeEngineError(w, r, rs[0])
		return nil, false
	}
	return rs, true
}

// mergeResponses folds an engine reply sequence into one API envelope. Undo
// and redo return a view followed by a history state; both land in the same
// envelope.
func mergeResponses(r *http.Request, rs []engine.Response) APIResponse {
	var out APIResponse
	if len(rs) > 0 {
		out.Type = rs[0].Type
	}
	page, size := pageParams(r)
	for _, resp := range rs {
		if resp.View != nil {
			out.View = paginate(resp.View, page, size)
		}
		if resp.Stats != nil {
			out.Stats = resp.Stats
		}
		if resp.Export != nil {
			out.Export = resp.Export
		}
		if resp.History != nil {
			out.History = resp.History
		}
	}
	return out
}

func (s *Server) respondEngine(w http.ResponseWriter, r *http.Request, rs []engine.Response) {
	writeJSON(w, r, mergeResponses(r, rs))
}

// handleLoad ingests an uploaded dataset and replaces the engine's state.
// It accepts a multipart form with a "file" part, or a raw CSV or JSON
// array body.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	name, data, err := readUpload(r, s.cfg.Upload.MaxBytes)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "TOO_LARGE", "upload exceeds size limit")
			return
		}
		writeError(w, r, http.StatusBadRequest, "BAD_UPLOAD", err.Error())
		return
	}

	columns, rows, err := decodeRows(name, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_UPLOAD", err.Error())
		return
	}

	loadID := uuid.New().String()
	logging.FromContext(r.Context()).Info("dataset load",
		"load_id", loadID,
		"name", name,
		"rows", len(rows),
		"columns", len(columns),
	)

	rs, ok := s.engineDo(w, r, engine.Request{
		Type:    engine.ReqLoadFile,
		Name:    name,
		Columns: columns,
		Rows:    rows,
	})
	if !ok {
		return
	}

	out := mergeResponses(r, rs)
	out.Name = name
	writeJSON(w, r, out)
}

// readUpload extracts the dataset name and raw bytes from the request.
func readUpload(r *http.Request, maxBytes int64) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return "", nil, fmt.Errorf("file too large or invalid form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("no file provided")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		name := header.Filename
		if n := r.FormValue("name"); n != "" {
			name = n
		}
		if name == "" {
			name = "dataset"
		}
		return name, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "dataset"
	}
	return name, data, nil
}

// handleView returns the current view, paginated.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqView})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

// handleCommand runs one command line against the current view.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "command is required")
		return
	}

	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqRunCommand, Command: req.Command})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

// handleEdit updates a single cell addressed by view position.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row    *int        `json:"row"`
		Column string      `json:"column"`
		Value  interface{} `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "invalid request body")
		return
	}
	if req.Row == nil {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "row is required")
		return
	}
	if req.Column == "" {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "column is required")
		return
	}

	val := engine.FromAny(req.Value)
	rs, ok := s.engineDo(w, r, engine.Request{
		Type:   engine.ReqCellEdit,
		Index:  *req.Row,
		Column: req.Column,
		Value:  &val,
	})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

// handleDelete removes the view rows at the given positions.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []int `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, r, http.StatusBadRequest, engine.CodeBadRequest, "no rows specified")
		return
	}

	var ereq engine.Request
	if len(req.Rows) == 1 {
		ereq = engine.Request{Type: engine.ReqDeleteRow, Index: req.Rows[0]}
	} else {
		ereq = engine.Request{Type: engine.ReqDeleteRows, Indexes: req.Rows}
	}
	rs, ok := s.engineDo(w, r, ereq)
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqUndo})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqRedo})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqReset})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqHistory})
	if !ok {
		return
	}
	s.respondEngine(w, r, rs)
}

// handleExport renders the current view in the requested format and serves
// it as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	rs, ok := s.engineDo(w, r, engine.Request{Type: engine.ReqRunCommand, Command: "EXPORT " + format})
	if !ok {
		return
	}

	var exp *engine.Export
	for _, resp := range rs {
		if resp.Export != nil {
			exp = resp.Export
		}
	}
	if exp == nil {
		writeError(w, r, http.StatusInternalServerError, engine.CodeInternal, "export produced no content")
		return
	}

	w.Header().Set("Content-Type", exp.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exp.Filename))
	w.Write([]byte(exp.Content))
}

// handleListSnapshots lists saved snapshots, newest first.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List()
	if err != nil {
		logging.FromContext(r.Context()).Error("snapshot list failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "SNAPSHOT_STORE", "failed to list snapshots")
		return
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	writeJSON(w, r, infos)
}

// handleRestoreSnapshot loads a stored snapshot back into the engine.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "snapshot not found")
			return
		}
		logging.FromContext(r.Context()).Error("snapshot load failed", "name", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "SNAPSHOT_STORE", "failed to load snapshot")
		return
	}

	rs, ok := s.engineDo(w, r, engine.Request{
		Type:    engine.ReqLoadExisting,
		Name:    snap.Name,
		Columns: snap.Columns,
		Rows:    snap.Rows,
	})
	if !ok {
		return
	}

	out := mergeResponses(r, rs)
	out.Name = snap.Name
	writeJSON(w, r, out)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func pageParams(r *http.Request) (page, size int) {
	page = parseIntParam(r, "page", 1)
	size = parseIntParam(r, "pageSize", DefaultPageSize)
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// paginate slices a view into one page. The page is clamped into range, so
// asking past the end returns the last page rather than an empty one.
func paginate(v *engine.View, page, size int) *ViewPage {
	total := len(v.Rows)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	rows := v.Rows[start:end]
	if rows == nil {
		rows = []*engine.Row{}
	}
	return &ViewPage{
		Columns:    v.Columns,
		Rows:       rows,
		Page:       page,
		PageSize:   size,
		TotalRows:  total,
		TotalPages: totalPages,
		Projected:  v.Projected,
	}
}
