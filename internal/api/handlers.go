package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/maltedev/retailsearch/internal/models"
	"github.com/maltedev/retailsearch/internal/search"
)

type Handlers struct {
	search *search.Service
	logger *slog.Logger
}

func NewHandlers(search *search.Service, logger *slog.Logger) *Handlers {
	return &Handlers{
		search: search,
		logger: logger,
	}
}

// searchPayload is the inbound request body shared by all three flows.
type searchPayload struct {
	Query     string   `json:"query"`
	Exclude   string   `json:"exclude"`
	SortBy    string   `json:"sort_by"`
	MinRating float64  `json:"min_rating"`
	Country   string   `json:"country"`
	Platforms []string `json:"platforms"`
	Page      int      `json:"page"`
	Identity  string   `json:"identity"`
}

// searchEnvelope wraps the core response and echoes the identity so a
// caller without one can persist the token we minted.
type searchEnvelope struct {
	*models.SearchResponse
	Identity string `json:"identity"`
}

func (h *Handlers) decodeRequest(w http.ResponseWriter, r *http.Request) (models.SearchRequest, string, bool) {
	var payload searchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return models.SearchRequest{}, "", false
	}

	identity := payload.Identity
	if identity == "" {
		identity = uuid.New().String()
	}

	req := models.SearchRequest{
		Query:        payload.Query,
		ExcludeTerms: payload.Exclude,
		SortBy:       models.SortOrder(payload.SortBy),
		Country:      models.ParseCountry(payload.Country),
		MinRating:    payload.MinRating,
		Page:         payload.Page,
		Identity:     identity,
	}
	for _, name := range payload.Platforms {
		if platform, ok := models.ParsePlatform(name); ok {
			req.Platforms = append(req.Platforms, platform)
		}
	}
	return req, identity, true
}

// Search handles fresh scrape requests.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	resp := h.search.Search(r.Context(), req)
	h.respondJSON(w, http.StatusOK, searchEnvelope{SearchResponse: resp, Identity: identity})
}

// Filter handles filter/sort-only changes served from cache.
func (h *Handlers) Filter(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	resp := h.search.Filter(r.Context(), req)
	h.respondJSON(w, http.StatusOK, searchEnvelope{SearchResponse: resp, Identity: identity})
}

// LoadMore handles page 2-3 requests merged into the cached base set.
func (h *Handlers) LoadMore(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Page == 0 {
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			req.Page = page
		}
	}

	resp := h.search.LoadMore(r.Context(), req)
	h.respondJSON(w, http.StatusOK, searchEnvelope{SearchResponse: resp, Identity: identity})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
