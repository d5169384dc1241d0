package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/recap/internal/history"
	"github.com/matheus3301/recap/internal/status"
	"github.com/matheus3301/recap/internal/summarize"
	"github.com/matheus3301/recap/internal/wa"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Engine is the slice of the WhatsApp adapter the API needs.
type Engine interface {
	IsLoggedIn() bool
	PhoneNumber() string
	StartQRAuth(ctx context.Context) (<-chan wa.AuthEvent, error)
}

// Handler serves the daemon's control API.
type Handler struct {
	coordinator *summarize.Coordinator
	hist        *history.Manager
	machine     *status.Machine
	engine      Engine
	logger      *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	coordinator *summarize.Coordinator,
	hist *history.Manager,
	machine *status.Machine,
	engine Engine,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coordinator: coordinator,
		hist:        hist,
		machine:     machine,
		engine:      engine,
		logger:      logger,
	}
}

// Router builds the chi router for the control API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Post("/auth", h.startAuth)

		r.Route("/summaries", func(r chi.Router) {
			r.Post("/run", h.runSummarization)
			r.Get("/", h.listSummaries)
			r.Get("/count", h.countSummaries)
			r.Delete("/", h.clearSummaries)
			r.Delete("/{id}", h.deleteSummary)
		})
	})

	return r
}

type statusResponse struct {
	State    string `json:"state"`
	LoggedIn bool   `json:"logged_in"`
	Phone    string `json:"phone,omitempty"`
	Running  bool   `json:"running"`
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:    string(h.machine.Current()),
		LoggedIn: h.engine.IsLoggedIn(),
		Phone:    h.engine.PhoneNumber(),
		Running:  h.coordinator.Running(),
	})
}

type authResponse struct {
	Status string `json:"status"`
	QRCode string `json:"qr_code,omitempty"`
}

// startAuth begins the QR pairing flow and responds with the first QR
// code. The client polls /v1/status to observe completion.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	if h.engine.IsLoggedIn() {
		writeJSON(w, http.StatusOK, authResponse{Status: "already_authenticated"})
		return
	}

	events, err := h.engine.StartQRAuth(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	select {
	case evt, ok := <-events:
		if !ok {
			writeError(w, http.StatusInternalServerError, "auth flow ended without a QR code")
			return
		}
		switch evt.Type {
		case wa.AuthEventQRCode:
			writeJSON(w, http.StatusOK, authResponse{Status: "qr_code", QRCode: evt.QRCode})
		case wa.AuthEventAuthenticated:
			writeJSON(w, http.StatusOK, authResponse{Status: "authenticated"})
		default:
			writeError(w, http.StatusInternalServerError, evt.Message)
		}
	case <-r.Context().Done():
	case <-time.After(30 * time.Second):
		writeError(w, http.StatusGatewayTimeout, "timed out waiting for a QR code")
	}
}

type runResponse struct {
	Response string `json:"response"`
}

func (h *Handler) runSummarization(w http.ResponseWriter, r *http.Request) {
	response, err := h.coordinator.Run(r.Context())
	if err != nil {
		code, msg := categorize(err)
		h.logger.Warn("summarization run failed", zap.Error(err))
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Response: response})
}

type summaryItem struct {
	ID           string    `json:"id"`
	UserMessage  string    `json:"user_message,omitempty"`
	AIResponse   string    `json:"ai_response"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
}

type listResponse struct {
	Summaries []summaryItem `json:"summaries"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
}

func (h *Handler) listSummaries(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	summaries, err := h.hist.ListPaginated(page, pageSize)
	if err != nil {
		h.logger.Error("failed to list summaries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read summary history")
		return
	}

	items := make([]summaryItem, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, summaryItem{
			ID:           s.ID,
			UserMessage:  s.UserMessage,
			AIResponse:   s.AIResponse,
			Timestamp:    s.Timestamp,
			MessageCount: s.MessageCount,
		})
	}
	writeJSON(w, http.StatusOK, listResponse{Summaries: items, Page: page, PageSize: pageSize})
}

func (h *Handler) countSummaries(w http.ResponseWriter, r *http.Request) {
	n, err := h.hist.Count()
	if err != nil {
		h.logger.Error("failed to count summaries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read summary history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) deleteSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.hist.DeleteByID(id); err != nil {
		code, msg := categorize(err)
		writeError(w, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearSummaries(w http.ResponseWriter, r *http.Request) {
	if err := h.hist.ClearAll(); err != nil {
		h.logger.Error("failed to clear summaries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear summary history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
