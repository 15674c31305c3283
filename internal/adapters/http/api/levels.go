package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/demonlist/internal/app"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
)

const (
	videoURLPrefix     = "https://www.youtube.com/watch?v="
	thumbnailURLFormat = "https://img.youtube.com/vi/%s/hqdefault.jpg"
)

// levelView is the read shape of a level: the stored fields plus display links
// and the points the level is worth.
type levelView struct {
	model.Level
	Points       float64 `json:"points"`
	VideoURL     string  `json:"videoUrl,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
}

func newLevelView(l model.Level, points float64) levelView {
	v := levelView{Level: l, Points: points}
	if l.RecordHolders == nil {
		v.RecordHolders = []model.RecordHolder{}
	}
	if ref := strings.TrimSpace(l.VideoRef); ref != "" {
		v.VideoURL = videoURLPrefix + ref
		v.ThumbnailURL = fmt.Sprintf(thumbnailURLFormat, ref)
	}
	return v
}

// LevelsHandler serves the level list and its admin edits.
type LevelsHandler struct {
	deps LevelService
	log  logger.Logger
}

// NewLevelsHandler creates a new levels handler.
func NewLevelsHandler(deps LevelService, log logger.Logger) *LevelsHandler {
	return &LevelsHandler{deps: deps, log: log}
}

// HandleList handles GET /api/levels?q=.
func (h *LevelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	levels := h.deps.FilteredList(r.Context(), r.URL.Query().Get("q"))
	out := make([]levelView, len(levels))
	for i, l := range levels {
		out[i] = newLevelView(l, h.deps.PointsForRank(l.Rank))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/levels/{rank}.
func (h *LevelsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_level"
	rank, err := service.ParseRank(chi.URLParam(r, "rank"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	lvl, err := h.deps.Get(r.Context(), rank)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newLevelView(lvl, h.deps.PointsForRank(lvl.Rank)))
}

// HandleCreate handles POST /api/levels. A repeated Idempotency-Key is
// answered with {"status":"duplicate"} and creates nothing.
func (h *LevelsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_level"
	if !h.authorize(w, r, op, "create") {
		return
	}
	var req model.Level
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	lvl, err := h.deps.CreateOnce(r.Context(), credential(r), r.Header.Get("Idempotency-Key"), req)
	if errors.Is(err, service.ErrDuplicate) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "duplicate"})
		return
	}
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, lvl)
}

// updateRequest carries the optional new rank; the remaining fields are
// decoded as a level so legacy keys are understood.
type updateRequest struct {
	Rank *int `json:"rank"`
}

// HandleUpdate handles PUT /api/levels/{rank}.
func (h *LevelsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_level"
	if !h.authorize(w, r, op, "update") {
		return
	}
	rank, err := service.ParseRank(chi.URLParam(r, "rank"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var (
		req    updateRequest
		fields model.Level
	)
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	lvl, err := h.deps.Update(r.Context(), credential(r), rank, model.LevelChanges{
		Rank:          req.Rank,
		Title:         fields.Title,
		Creator:       fields.Creator,
		VideoRef:      fields.VideoRef,
		RecordHolders: fields.RecordHolders,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

// HandleDelete handles DELETE /api/levels/{rank}.
func (h *LevelsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_level"
	if !h.authorize(w, r, op, "delete") {
		return
	}
	rank, err := service.ParseRank(chi.URLParam(r, "rank"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	lvl, err := h.deps.Delete(r.Context(), credential(r), rank)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

// HandleReplace handles PUT /api/levels: the body replaces the whole list.
func (h *LevelsHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	const op = "api.replace_levels"
	if !h.authorize(w, r, op, "replace") {
		return
	}
	var req []model.Level
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	levels, err := h.deps.Replace(r.Context(), credential(r), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	h.log.Info(r.Context(), "level list replaced", logger.Int("levels", len(levels)), logger.String("requestId", RequestIDFrom(r.Context())))
	writeJSON(w, http.StatusOK, levels)
}

// authorize rejects the request with 403 before its body is read.
func (h *LevelsHandler) authorize(w http.ResponseWriter, r *http.Request, op, write string) bool {
	if err := h.deps.Authorize(r.Context(), credential(r), write); err != nil {
		writeServiceError(w, op, err)
		return false
	}
	return true
}

// credential returns the Authorization header value.
func credential(r *http.Request) string {
	return r.Header.Get("Authorization")
}
