package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avelinsk/livevote-backend/internal/config"
	"github.com/avelinsk/livevote-backend/internal/engine"
	"github.com/avelinsk/livevote-backend/internal/session"
	"github.com/avelinsk/livevote-backend/internal/store"
	"github.com/avelinsk/livevote-backend/internal/tally"
)

const sessionHeader = "X-Session-ID"

type Handlers struct {
	sess *session.Session
	cfg  config.Config
	log  *zap.Logger
}

func NewHandlers(sess *session.Session, cfg config.Config, log *zap.Logger) *Handlers {
	return &Handlers{sess: sess, cfg: cfg, log: log}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the core's error taxonomy onto HTTP statuses: illegal
// lifecycle moves conflict, malformed answers are bad requests, missing
// records are not found.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrNoPollRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, tally.ErrInvalidAnswer),
		errors.Is(err, session.ErrInvalidPollType):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrNoActivity),
		errors.Is(err, tally.ErrUnknownPoll),
		errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// requireHost gates the operator endpoints on a session token belonging
// to the host.
func (h *Handlers) requireHost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(sessionHeader)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
			return
		}
		p, err := h.sess.Participant(token)
		if err != nil || p.Role != "host" {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "host only"})
			return
		}
		next(w, r)
	}
}

type signInRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Role       string `json:"role"`
	Password   string `json:"password"`
}

type signInResponse struct {
	SessionID string `json:"session_id"`
	Redirect  string `json:"redirect"`
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	if req.Role == "" {
		req.Role = "participant"
	}
	if req.Role != "participant" && req.Role != "host" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role"})
		return
	}
	if req.Role == "host" && !h.cfg.CheckHostPassword(req.Password) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "wrong host password"})
		return
	}

	participant, err := h.sess.SignIn(req.Name, req.Department, req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	redirect := "/participant"
	if participant.Role == "host" {
		redirect = "/host"
	}
	writeJSON(w, http.StatusOK, signInResponse{SessionID: participant.SessionID, Redirect: redirect})
}

type createActivityRequest struct {
	Name  string `json:"name"`
	Theme string `json:"theme"`
}

func (h *Handlers) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	activity, err := h.sess.CreateActivity(req.Name, req.Theme)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

type createPollRequest struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Options    []string `json:"options"`
	OrderIndex int      `json:"order_index"`
}

func (h *Handlers) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required"})
		return
	}
	poll, err := h.sess.CreatePoll(req.Title, req.Type, req.Options, req.OrderIndex)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

func (h *Handlers) StartActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.StartActivity(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "activity started"})
}

func (h *Handlers) EndActivity(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sess.EndActivity()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) CloseActivity(w http.ResponseWriter, r *http.Request) {
	files, err := h.sess.CloseActivity()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "activity closed",
		"files":   map[string]string{"records": files.Records, "statistics": files.Statistics},
	})
}

func (h *Handlers) StartPoll(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid poll id"})
		return
	}
	if err := h.sess.StartPoll(uint(id)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "vote started"})
}

func (h *Handlers) EndPoll(w http.ResponseWriter, r *http.Request) {
	result, err := h.sess.EndPoll()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ExitPoll(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.ExitPoll(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "vote exited"})
}

type submitRequest struct {
	VoteID uint            `json:"vote_id"`
	Answer json.RawMessage `json:"answer"`
}

func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(sessionHeader)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}
	participant, err := h.sess.Participant(token)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown participant"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VoteID == 0 || req.Answer == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "vote_id and answer are required"})
		return
	}
	if err := h.sess.SubmitAnswer(req.VoteID, participant.ID, req.Answer); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "vote submitted"})
}

func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid poll id"})
		return
	}
	result, err := h.sess.Tally(uint(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Snapshot())
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
