package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventreg/internal/pricing"
	ratelimitmodels "eventreg/internal/ratelimit/models"
	"eventreg/internal/registration"
	"eventreg/pkg/domain"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/httputil"
	"eventreg/pkg/requestcontext"
)

// Service is the form controller as seen by the HTTP layer.
type Service interface {
	Open(ctx context.Context) (registration.View, error)
	Get(ctx context.Context, id string) (registration.View, error)
	Close(ctx context.Context, id string) error
	Search(ctx context.Context, id, text string) (registration.View, error)
	SetGradeFilter(ctx context.Context, id, grade string) (registration.View, error)
	ClearFilters(ctx context.Context, id string) (registration.View, error)
	Select(ctx context.Context, id, studentID string) (registration.View, error)
	ClearSelection(ctx context.Context, id string) (registration.View, error)
	UpdateContact(ctx context.Context, id string, update registration.ContactUpdate) (registration.View, error)
	SetPayment(ctx context.Context, id, method string, installments int) (registration.View, error)
	StepTickets(ctx context.Context, id string, delta int) (registration.View, error)
	Submit(ctx context.Context, id string) (registration.View, error)
}

// RateLimiter wraps routes with a per-class request budget.
type RateLimiter interface {
	RateLimit(class ratelimitmodels.EndpointClass) func(http.Handler) http.Handler
}

// Handler wires the registration form endpoints to the controller.
type Handler struct {
	service Service
	logger  *slog.Logger
	limiter RateLimiter
}

type Option func(*Handler)

// WithRateLimiter limits opening, editing and submitting forms per client.
func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New constructs a registration handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the form, quote and identifier endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.limit(ratelimitmodels.ClassOpen)).Post("/forms", h.HandleOpen)
	r.Route("/forms/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Delete("/", h.HandleClose)
		r.With(h.limit(ratelimitmodels.ClassSubmit)).Post("/submit", h.HandleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(h.limit(ratelimitmodels.ClassEdit))
			r.Put("/search", h.HandleSearch)
			r.Put("/filters", h.HandleSetFilter)
			r.Delete("/filters", h.HandleClearFilters)
			r.Put("/selection", h.HandleSelect)
			r.Delete("/selection", h.HandleClearSelection)
			r.Patch("/contact", h.HandleContact)
			r.Put("/payment", h.HandlePayment)
			r.Post("/tickets/increment", h.handleStep(1))
			r.Post("/tickets/decrement", h.handleStep(-1))
		})
	})
	r.Get("/quote", h.HandleQuote)
	r.Post("/identifier/check", h.HandleIdentifierCheck)
}

func (h *Handler) limit(class ratelimitmodels.EndpointClass) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.RateLimit(class)
}

// HandleOpen handles POST /forms.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Open(r.Context())
	h.respond(w, r, "open form", http.StatusCreated, view, err)
}

// HandleGet handles GET /forms/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), formID(r))
	h.respond(w, r, "get form", http.StatusOK, view, err)
}

// HandleClose handles DELETE /forms/{id}.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(r.Context(), formID(r)); err != nil {
		h.fail(w, r, "close form", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch handles PUT /forms/{id}/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SearchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Search(ctx, formID(r), req.Text)
	h.respond(w, r, "search students", http.StatusOK, view, err)
}

// HandleSetFilter handles PUT /forms/{id}/filters.
func (h *Handler) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FilterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SetGradeFilter(ctx, formID(r), req.Grade)
	h.respond(w, r, "set grade filter", http.StatusOK, view, err)
}

// HandleClearFilters handles DELETE /forms/{id}/filters.
func (h *Handler) HandleClearFilters(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearFilters(r.Context(), formID(r))
	h.respond(w, r, "clear filters", http.StatusOK, view, err)
}

// HandleSelect handles PUT /forms/{id}/selection.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SelectionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Select(ctx, formID(r), req.StudentID)
	h.respond(w, r, "select student", http.StatusOK, view, err)
}

// HandleClearSelection handles DELETE /forms/{id}/selection.
func (h *Handler) HandleClearSelection(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearSelection(r.Context(), formID(r))
	h.respond(w, r, "clear selection", http.StatusOK, view, err)
}

// HandleContact handles PATCH /forms/{id}/contact.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ContactRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.UpdateContact(ctx, formID(r), req.Update())
	h.respond(w, r, "update contact", http.StatusOK, view, err)
}

// HandlePayment handles PUT /forms/{id}/payment.
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SetPayment(ctx, formID(r), req.Method, req.Installments)
	h.respond(w, r, "set payment", http.StatusOK, view, err)
}

func (h *Handler) handleStep(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.service.StepTickets(r.Context(), formID(r), delta)
		h.respond(w, r, "step tickets", http.StatusOK, view, err)
	}
}

// HandleSubmit handles POST /forms/{id}/submit. A rejected submission is
// still a 200: the view carries the notice.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Submit(r.Context(), formID(r))
	h.respond(w, r, "submit registration", http.StatusOK, view, err)
}

// HandleQuote handles GET /quote.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	params, err := ParseQuoteParams(r.URL.Query().Get)
	if err != nil {
		h.fail(w, r, "quote", err)
		return
	}
	quote, err := pricing.Calculate(params.Tickets, params.Method, params.Installments)
	if err != nil {
		h.fail(w, r, "quote", err)
		return
	}
	options, err := pricing.CreditOptions(params.Tickets)
	if err != nil {
		h.fail(w, r, "quote", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, QuoteResponse{
		Quote:              registration.NewQuoteView(quote),
		InstallmentOptions: options,
	})
}

// HandleIdentifierCheck handles POST /identifier/check.
func (h *Handler) HandleIdentifierCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IdentifierCheckRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	masked := domain.MaskNationalID(req.Identifier)
	httputil.WriteJSON(w, http.StatusOK, IdentifierCheckResponse{
		Identifier:      masked,
		NationalIDCheck: domain.CheckNationalID(masked),
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string, status int, view registration.View, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	httputil.WriteJSON(w, status, view)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	if id := chi.URLParam(r, "id"); id != "" {
		attrs = append(attrs, "session_id", id)
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func formID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
