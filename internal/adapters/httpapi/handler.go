package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	apiActorCtxKey  ctxKey = "api_actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	collections *usecase.CollectionService
	validator   *usecase.DefinitionValidator
	authService *usecase.AuthService
	logger      *slog.Logger
}

func NewHandler(collections *usecase.CollectionService, validator *usecase.DefinitionValidator, authService *usecase.AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{collections: collections, validator: validator, authService: authService, logger: logger}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)

		pr.Get("/v1/collections", h.listCollections)
		pr.Post("/v1/collections", h.createCollection)
		pr.Get("/v1/collections/{id}", h.getCollection)
		pr.Put("/v1/collections/{id}", h.updateCollection)
		pr.Delete("/v1/collections/{id}", h.deleteCollection)
		pr.Post("/v1/collections/{id}/fields/{slug}/rename", h.renameField)
		pr.Delete("/v1/collections/{id}/fields/{slug}", h.deleteField)
	})

	return r
}

type collectionResponse struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type fieldResponse struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Position  int    `json:"position"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type collectionDetailResponse struct {
	collectionResponse
	Fields []fieldResponse `json:"fields"`
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.ListCollections(r.Context())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	out := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, toCollectionResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	def, err := h.validator.DecodeCreate(raw)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	created, err := h.collections.CreateCollection(r.Context(), def.Properties, def.Fields, mutationMetadata(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/collections/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, toCollectionResponse(created))
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	detail, err := h.collections.GetCollection(r.Context(), id)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) updateCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	def, err := h.validator.DecodeUpdate(raw)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	updated, err := h.collections.UpdateCollection(r.Context(), id, def.Properties, def.Fields, mutationMetadata(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(updated))
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	if err := h.collections.DeleteCollection(r.Context(), id, mutationMetadata(r)); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renameField(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := h.validator.DecodeRename(raw)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	field, err := h.collections.RenameField(r.Context(), id, chi.URLParam(r, "slug"), req.Slug, mutationMetadata(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFieldResponse(field))
}

func (h *Handler) deleteField(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	if err := h.collections.DeleteField(r.Context(), id, chi.URLParam(r, "slug"), mutationMetadata(r)); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			h.logger.Error("authenticate api key", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toCollectionResponse(c domain.Collection) collectionResponse {
	return collectionResponse{
		ID:        c.ID,
		Slug:      c.Slug,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: c.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toFieldResponse(f domain.Field) fieldResponse {
	return fieldResponse{
		Slug:      f.Slug,
		Name:      f.Name,
		Type:      f.Type.String(),
		Position:  f.Position,
		CreatedAt: f.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: f.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toDetailResponse(d domain.CollectionDetail) collectionDetailResponse {
	fields := make([]fieldResponse, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, toFieldResponse(f))
	}
	return collectionDetailResponse{collectionResponse: toCollectionResponse(d.Collection), Fields: fields}
}

func collectionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "collection id must be a positive integer")
		return 0, false
	}
	return id, true
}

// readBody returns the raw request document. Syntax and shape are checked by the definition
// validator, only size and trailing tokens are enforced here.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var raw json.RawMessage
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return raw, true
}

func mutationMetadata(r *http.Request) domain.MutationMetadata {
	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}
	correlationID := strings.TrimSpace(r.Header.Get("X-Correlation-ID"))
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return domain.MutationMetadata{
		Actor:         actorFromContext(r.Context()),
		Source:        "http",
		RequestID:     requestID,
		CorrelationID: correlationID,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("encode json response", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Error("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var violation *domain.DefinitionViolationError
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid collection definition", "details": violation.Errors})
	case errors.Is(err, domain.ErrIdentifierCollision), errors.Is(err, domain.ErrInvalidFieldType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownCollection), errors.Is(err, domain.ErrUnknownField):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateSlug):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTypeCast):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(apiActorCtxKey).(string)
	if actor == "" {
		return "api"
	}
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "pcm",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/collections": map[string]any{
				"get":  map[string]any{"summary": "List collections"},
				"post": map[string]any{"summary": "Create collection with fields"},
			},
			"/v1/collections/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get collection with fields"},
				"put":    map[string]any{"summary": "Update collection properties and upsert fields"},
				"delete": map[string]any{"summary": "Delete collection and its table"},
			},
			"/v1/collections/{id}/fields/{slug}/rename": map[string]any{
				"post": map[string]any{"summary": "Rename field"},
			},
			"/v1/collections/{id}/fields/{slug}": map[string]any{
				"delete": map[string]any{"summary": "Delete field and its column"},
			},
		},
	}
}
