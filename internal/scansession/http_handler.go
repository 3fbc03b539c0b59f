package scansession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bookscan/internal/barcode"
	"bookscan/internal/collection"
	"bookscan/internal/entity"
	"bookscan/internal/httpx"
	"bookscan/internal/lookup"
	"bookscan/internal/scanner"
)

// Catalog is the shared lookup used by the catalog endpoints.
type Catalog interface {
	Resolve(ctx context.Context, identifier string) (entity.CatalogItem, error)
	Search(ctx context.Context, query string, limit, page int) ([]entity.CatalogItem, error)
}

const (
	maxSearchLimit = 100
	keepAliveEvery = 25 * time.Second
)

type HTTPHandler struct {
	sessions *Manager
	store    collection.Store
	catalog  Catalog
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHTTPHandler(sessions *Manager, store collection.Store, catalog Catalog, validate *validator.Validate, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		sessions: sessions,
		store:    store,
		catalog:  catalog,
		validate: validate,
		logger:   logger,
	}
}

// Register mounts the handler's routes on mux behind auth.
func (h *HTTPHandler) Register(mux *http.ServeMux, auth httpx.Middleware) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}
	handle("POST /scan-sessions", h.Create)
	handle("GET /scan-sessions/{id}", h.Get)
	handle("DELETE /scan-sessions/{id}", h.Delete)
	handle("GET /scan-sessions/{id}/events", h.Events)
	handle("POST /scan-sessions/{id}/{action}", h.Action)
	handle("GET /catalog/search", h.Search)
	handle("GET /catalog/items/{code}", h.LookupItem)
	handle("GET /collection", h.ListCollection)
	handle("GET /collection/events", h.CollectionEvents)
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(httpx.UserIDFrom(r))
	if errors.Is(err, ErrTooManySessions) {
		httpx.JSONError(w, r, http.StatusTooManyRequests, "TOO_MANY_SESSIONS", "Close an open scan session first", nil)
		return
	}
	if err != nil {
		h.internalError(w, r, "create session", err)
		return
	}
	httpx.JSONCreated(w, r, sessionView(s))
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSONSuccess(w, r, sessionView(s), nil)
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(httpx.UserIDFrom(r), r.PathValue("id")); err != nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Scan session not found", nil)
		return
	}
	httpx.JSONNoContent(w)
}

type scanReq struct {
	Code string `json:"code" validate:"required,max=64"`
}

var actions = map[string]func(*scanner.Coordinator){
	"start":        (*scanner.Coordinator).Start,
	"stop":         (*scanner.Coordinator).Stop,
	"confirm":      (*scanner.Coordinator).ConfirmContinue,
	"confirm-stop": (*scanner.Coordinator).ConfirmAndStop,
	"skip":         (*scanner.Coordinator).Skip,
	"dismiss":      (*scanner.Coordinator).DismissError,
}

// Action applies one coordinator action and returns the resulting state.
// Actions outside their accepting state leave it unchanged.
func (h *HTTPHandler) Action(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	fn, known := actions[action]
	if !known && action != "scan" {
		httpx.JSONError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", fmt.Sprintf("Unknown action %q", action), nil)
		return
	}

	var req scanReq
	if action == "scan" {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
			return
		}
		if details := h.validationDetails(req); details != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", details)
			return
		}
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if action == "scan" {
		s.Coordinator.HandleScan(req.Code)
	} else {
		fn(s.Coordinator)
	}
	httpx.JSONSuccess(w, r, sessionView(s), nil)
}

// Events streams state updates for one session as server-sent events.
func (h *HTTPHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		httpx.JSONError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported", nil)
		return
	}

	updates, cancel := s.Coordinator.Subscribe()
	defer cancel()

	if err := stream.send("state", viewOf(s.Coordinator.Snapshot())); err != nil {
		return
	}
	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := stream.ping(); err != nil {
				return
			}
		case u, open := <-updates:
			if !open {
				_ = stream.send("closed", nil)
				return
			}
			if err := stream.send("state", viewOf(u)); err != nil {
				return
			}
		}
	}
}

func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Query parameter q is required", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxSearchLimit {
		limit = 20
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	items, err := h.catalog.Search(r.Context(), q, limit, page)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	if items == nil {
		items = []entity.CatalogItem{}
	}
	httpx.JSONSuccess(w, r, items, map[string]any{"limit": limit, "page": page})
}

type lookupReq struct {
	Code string `validate:"required,barcode"`
}

func (h *HTTPHandler) LookupItem(w http.ResponseWriter, r *http.Request) {
	req := lookupReq{Code: r.PathValue("code")}
	if details := h.validationDetails(req); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("%s is not a valid book barcode", req.Code), details)
		return
	}
	item, err := h.catalog.Resolve(r.Context(), barcode.LookupIdentifier(barcode.Parse(req.Code)))
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, item, nil)
}

func (h *HTTPHandler) ListCollection(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		h.internalError(w, r, "list collection", err)
		return
	}
	httpx.JSONSuccess(w, r, items, map[string]any{"total": len(items)})
}

// CollectionEvents streams collection snapshots as server-sent events.
func (h *HTTPHandler) CollectionEvents(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.store.Subscribe(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		h.internalError(w, r, "subscribe collection", err)
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		httpx.JSONError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported", nil)
		return
	}

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := stream.ping(); err != nil {
				return
			}
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if err := stream.send("collection", snap); err != nil {
				return
			}
		}
	}
}

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.sessions.Get(httpx.UserIDFrom(r), r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Scan session not found", nil)
		return nil, false
	}
	return s, true
}

func (h *HTTPHandler) validationDetails(v any) []httpx.ErrorDetail {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []httpx.ErrorDetail{{Message: err.Error()}}
	}
	details := make([]httpx.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, httpx.ErrorDetail{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
		})
	}
	return details
}

func (h *HTTPHandler) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rl *lookup.RateLimitedError
		me *lookup.MalformedError
	)
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No match found", nil)
	case errors.As(err, &rl):
		secs := rl.WaitSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		httpx.JSONError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", fmt.Sprintf("Too many lookups, try again in %ds", secs), nil)
	case errors.As(err, &me):
		h.logger.Warn("catalog returned malformed response", slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_MALFORMED", "Lookup service returned an unexpected response", nil)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.Warn("catalog lookup failed", slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Lookup failed", nil)
	}
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, collection.ErrUnauthenticated) {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to use your collection", nil)
		return
	}
	h.logger.Error(op, slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}
