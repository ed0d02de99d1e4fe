// Package registration runs the event registration form: one session per page
// visit, driven through Reduce, persisted in a SessionStore between requests.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventreg/internal/payment"
	"eventreg/internal/platform/config"
	"eventreg/internal/pricing"
	"eventreg/internal/registration/metrics"
	"eventreg/internal/students/models"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/audit"
	"eventreg/pkg/platform/sentinel"
	"eventreg/pkg/requestcontext"
)

// DefaultSessionTTL bounds how long an untouched session is kept.
const DefaultSessionTTL = 2 * time.Hour

// maxSaveAttempts bounds reload-and-retry when another instance saved the
// same session first.
const maxSaveAttempts = 3

// Service serializes events per session and performs the two remote calls of
// the flow (lookup and submission) outside the session lock.
type Service struct {
	store     SessionStore
	lookup    StudentLookup
	submitter Submitter
	auditor   AuditPublisher
	event     config.Event
	ttl       time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	newID     func() string
	locks     *sessionLocks
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithSessionTTL overrides DefaultSessionTTL. Non-positive values are ignored.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIDGenerator replaces the session ID source. Tests only.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// New creates the form controller.
func New(store SessionStore, lookup StudentLookup, submitter Submitter, event config.Event, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("student lookup is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if event.Tag == "" || event.Shift == "" {
		return nil, fmt.Errorf("event tag and shift are required")
	}
	s := &Service{
		store:     store,
		lookup:    lookup,
		submitter: submitter,
		event:     event,
		ttl:       DefaultSessionTTL,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		locks:     newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ContactUpdate carries the contact fields a client edited. Nil fields are
// left untouched.
type ContactUpdate struct {
	ParentName *string
	Email      *string
	Phone      *string
	Identifier *string
}

// Open starts a new session in the editing phase.
func (s *Service) Open(ctx context.Context) (View, error) {
	now := requestcontext.Now(ctx)
	state := Reduce(NewState(s.newID()), Opened{
		EventTag: s.event.Tag,
		Shift:    s.event.Shift,
		At:       now,
	})
	state.Version = 1
	if err := s.store.Save(ctx, state, s.ttl); err != nil {
		return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open form")
	}
	s.metrics.IncrementSessionsOpened()
	s.emit(ctx, state, audit.ActionFormOpened, "")
	s.logger.InfoContext(ctx, "form session opened",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", state.SessionID,
		"event_tag", state.EventTag,
	)
	return s.view(state), nil
}

// Get returns the current view of a session.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// Close ends a session. An in-flight lookup or submission finishing later is
// discarded.
func (s *Service) Close(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	state, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	state = Reduce(state, Closed{})
	if err := s.store.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close form")
	}
	s.metrics.IncrementSessionsClosed()
	s.logger.InfoContext(ctx, "form session closed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", id,
		"phase", string(state.Phase),
	)
	return nil
}

// Search updates the search text and, when it is long enough and no student
// is selected, looks up matching students.
func (s *Service) Search(ctx context.Context, id, text string) (View, error) {
	if _, err := s.apply(ctx, id, SearchTextChanged{Text: SanitizeText(text)}); err != nil {
		return View{}, err
	}
	return s.refreshCandidates(ctx, id)
}

// SetGradeFilter narrows lookups to one grade; "" clears it.
func (s *Service) SetGradeFilter(ctx context.Context, id, grade string) (View, error) {
	grade = strings.TrimSpace(grade)
	if grade != "" && !s.event.HasGrade(grade) {
		return View{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown grade %q", grade))
	}
	if _, err := s.apply(ctx, id, GradeFilterChanged{Grade: grade}); err != nil {
		return View{}, err
	}
	return s.refreshCandidates(ctx, id)
}

// ClearFilters resets the grade filter and re-runs the lookup.
func (s *Service) ClearFilters(ctx context.Context, id string) (View, error) {
	if _, err := s.apply(ctx, id, FiltersCleared{}); err != nil {
		return View{}, err
	}
	return s.refreshCandidates(ctx, id)
}

// Select picks one of the current candidates.
func (s *Service) Select(ctx context.Context, id, studentID string) (View, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	_, state, err := s.updateLocked(ctx, id, func(current State) ([]Event, error) {
		if editable(current) {
			if _, ok := findCandidate(current.Candidates, studentID); !ok {
				return nil, dErrors.New(dErrors.CodeNotFound, "student is not among the current candidates")
			}
		}
		return []Event{StudentSelected{StudentID: studentID}}, nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// ClearSelection drops the selected student and the search text.
func (s *Service) ClearSelection(ctx context.Context, id string) (View, error) {
	state, err := s.apply(ctx, id, SelectionCleared{})
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// UpdateContact edits the parent's contact fields and identifier.
func (s *Service) UpdateContact(ctx context.Context, id string, update ContactUpdate) (View, error) {
	contact := ContactChanged{
		ParentName: sanitized(update.ParentName),
		Email:      sanitized(update.Email),
		Phone:      sanitized(update.Phone),
	}
	events := []Event{contact}
	if update.Identifier != nil {
		events = append(events, IdentifierChanged{Input: *update.Identifier})
	}
	state, err := s.apply(ctx, id, events...)
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// SetPayment changes the payment method and, when installments > 0, the
// installment count.
func (s *Service) SetPayment(ctx context.Context, id, method string, installments int) (View, error) {
	m, err := pricing.ParseMethod(method)
	if err != nil {
		return View{}, err
	}
	events := []Event{PaymentMethodChanged{Method: m}}
	if installments > 0 {
		events = append(events, InstallmentsChanged{Installments: installments})
	}
	state, err := s.apply(ctx, id, events...)
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// StepTickets moves the ticket stepper by +1 or -1.
func (s *Service) StepTickets(ctx context.Context, id string, delta int) (View, error) {
	var ev Event
	switch delta {
	case 1:
		ev = TicketsIncremented{}
	case -1:
		ev = TicketsDecremented{}
	default:
		return View{}, dErrors.New(dErrors.CodeValidation, "ticket step must be +1 or -1")
	}
	state, err := s.apply(ctx, id, ev)
	if err != nil {
		return View{}, err
	}
	return s.view(state), nil
}

// Submit runs the submission gate and, when it passes, posts the registration
// to the workflow. The returned view carries either a redirect or a notice.
func (s *Service) Submit(ctx context.Context, id string) (View, error) {
	unlock := s.locks.lock(id)
	// SubmitRequested is saved with a compare-and-set, so across instances only
	// one request moves the session into submitting.
	state, next, err := s.updateLocked(ctx, id, always(SubmitRequested{}))
	if err != nil {
		unlock()
		return View{}, err
	}
	if next.Phase != PhaseSubmitting || state.Phase == PhaseSubmitting {
		unlock()
		if next.Notice != nil && next.Notice.Kind == NoticeValidation {
			s.metrics.IncrementGateRejection(gateReason(next.Notice.Message))
			s.logger.InfoContext(ctx, "submission blocked",
				"request_id", requestcontext.RequestID(ctx),
				"session_id", id,
				"reason", gateReason(next.Notice.Message),
			)
		}
		return s.view(next), nil
	}
	quote, err := next.Quote()
	if err != nil {
		unlock()
		return View{}, s.abortSubmission(ctx, id, err)
	}
	payload := buildPayload(ctx, next, quote)
	unlock()

	start := time.Now()
	result, submitErr := s.submitter.Submit(ctx, payload)
	outcome := payment.Outcome(submitErr)
	s.metrics.ObserveSubmission(outcome, time.Since(start))

	var ev Event
	switch {
	case submitErr == nil:
		ev = SubmissionSucceeded{PaymentURL: result.PaymentURL}
	case errors.Is(submitErr, payment.ErrPaymentLinkMissing):
		ev = SubmissionSucceeded{}
	default:
		ev = SubmissionFailed{Message: payment.UserMessage(submitErr)}
	}

	// The workflow call has already happened; record its result even if the
	// client went away.
	final, err := s.apply(context.WithoutCancel(ctx), id, ev)
	if err != nil {
		s.recordSubmission(ctx, next, quote, outcome, submitErr)
		return View{}, err
	}
	s.recordSubmission(ctx, final, quote, outcome, submitErr)
	return s.view(final), nil
}

// refreshCandidates issues a lookup when the session wants one and applies
// its result unless a newer lookup or a selection superseded it.
func (s *Service) refreshCandidates(ctx context.Context, id string) (View, error) {
	var seq uint64
	unlock := s.locks.lock(id)
	prev, state, err := s.updateLocked(ctx, id, func(current State) ([]Event, error) {
		if !LookupWanted(current) {
			return nil, nil
		}
		seq = current.LookupSeq + 1
		return []Event{LookupStarted{Seq: seq}}, nil
	})
	unlock()
	if err != nil {
		return View{}, err
	}
	if state.Version == prev.Version {
		return s.view(state), nil
	}
	query := models.NewQuery(state.SearchText, state.Shift, state.GradeFilter)

	candidates := s.lookup.Search(ctx, query)

	unlock = s.locks.lock(id)
	defer unlock()
	_, current, err := s.updateLocked(ctx, id, func(current State) ([]Event, error) {
		if !current.Searching || current.LookupSeq != seq || current.Phase.Terminal() {
			s.metrics.IncrementStaleLookups()
			s.logger.DebugContext(ctx, "discarding stale lookup",
				"session_id", id,
				"seq", seq,
				"latest_seq", current.LookupSeq,
			)
			return nil, nil
		}
		return []Event{LookupCompleted{Seq: seq, Candidates: candidates}}, nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(current), nil
}

// apply loads the session, reduces events in order and saves the result,
// all under the session lock.
func (s *Service) apply(ctx context.Context, id string, evs ...Event) (State, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	_, next, err := s.updateLocked(ctx, id, always(evs...))
	return next, err
}

// plan decides the events to apply to the freshly loaded state. No events
// means nothing is saved.
type plan func(current State) ([]Event, error)

func always(evs ...Event) plan {
	return func(State) ([]Event, error) { return evs, nil }
}

// updateLocked loads the session, plans and saves. When another instance
// saved first the whole cycle is retried on the reloaded state. Callers hold
// the session lock.
func (s *Service) updateLocked(ctx context.Context, id string, p plan) (prev, next State, err error) {
	for attempt := 1; ; attempt++ {
		prev, err = s.load(ctx, id)
		if err != nil {
			return State{}, State{}, err
		}
		evs, err := p(prev)
		if err != nil {
			return State{}, State{}, err
		}
		if len(evs) == 0 {
			return prev, prev, nil
		}
		next, err = s.reduceAndSave(ctx, prev, evs...)
		if err == nil {
			return prev, next, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) || attempt == maxSaveAttempts {
			return State{}, State{}, err
		}
		s.metrics.IncrementSaveConflicts()
		s.logger.InfoContext(ctx, "form saved concurrently, retrying",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", id,
			"attempt", attempt,
		)
	}
}

func (s *Service) reduceAndSave(ctx context.Context, state State, events ...Event) (State, error) {
	for _, ev := range events {
		state = Reduce(state, ev)
	}
	state.Version++
	state.UpdatedAt = requestcontext.Now(ctx)
	err := s.store.Save(ctx, state, s.ttl)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, sentinel.ErrConflict):
		return State{}, dErrors.Wrap(err, dErrors.CodeConflict, "form was changed by another request")
	case errors.Is(err, sentinel.ErrNotFound):
		return State{}, dErrors.Wrap(err, dErrors.CodeNotFound, "form session not found")
	default:
		return State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save form")
	}
}

func (s *Service) load(ctx context.Context, id string) (State, error) {
	if strings.TrimSpace(id) == "" {
		return State{}, dErrors.New(dErrors.CodeBadRequest, "form id is required")
	}
	state, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return State{}, dErrors.New(dErrors.CodeNotFound, "form session not found")
	}
	if err != nil {
		return State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	}
	if state.Phase == PhaseClosed {
		return State{}, dErrors.New(dErrors.CodeNotFound, "form session not found")
	}
	return state, nil
}

// abortSubmission returns a session stuck before the network call to the
// selected phase.
func (s *Service) abortSubmission(ctx context.Context, id string, cause error) error {
	if _, err := s.apply(ctx, id, SubmissionFailed{}); err != nil {
		s.logger.ErrorContext(ctx, "failed to reset submission", "session_id", id, "error", err)
	}
	return dErrors.Wrap(cause, dErrors.CodeInternal, "failed to price registration")
}

func (s *Service) recordSubmission(ctx context.Context, state State, quote pricing.Quote, outcome string, submitErr error) {
	requestID := requestcontext.RequestID(ctx)
	switch {
	case submitErr == nil:
		s.metrics.AddSubmittedAmount(quote.Rounded().Total.InexactFloat64())
		s.emit(ctx, state, audit.ActionRegistrationSubmitted, "")
		s.logger.InfoContext(ctx, "registration submitted",
			"request_id", requestID,
			"session_id", state.SessionID,
			"tickets", state.Form.TicketQuantity,
			"payment_method", string(state.Form.PaymentMethod),
		)
	case errors.Is(submitErr, payment.ErrPaymentLinkMissing):
		s.metrics.AddSubmittedAmount(quote.Rounded().Total.InexactFloat64())
		s.emit(ctx, state, audit.ActionPaymentLinkMissing, outcome)
		s.logger.ErrorContext(ctx, "registration accepted without payment link",
			"request_id", requestID,
			"session_id", state.SessionID,
		)
	default:
		s.emit(ctx, state, audit.ActionRegistrationFailed, outcome)
		s.logger.WarnContext(ctx, "registration submission failed",
			"request_id", requestID,
			"session_id", state.SessionID,
			"outcome", outcome,
			"error", submitErr,
		)
	}
}

func (s *Service) emit(ctx context.Context, state State, action audit.Action, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Action:        action,
		SessionID:     state.SessionID,
		EventTag:      state.EventTag,
		PaymentMethod: string(state.Form.PaymentMethod),
		Installments:  state.Form.Installments,
		Tickets:       state.Form.TicketQuantity,
		Reason:        reason,
		RequestID:     requestcontext.RequestID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		Device:        requestcontext.Device(ctx),
	}
	if action != audit.ActionFormOpened {
		event.SubjectIDHash = audit.HashSubjectID(state.Form.Identifier)
		if state.Selected != nil {
			event.StudentID = state.Selected.ID
		}
		if q, err := state.Quote(); err == nil {
			event.Amount = q.Rounded().Total.StringFixed(2)
		}
	}
	if err := s.auditor.Emit(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"session_id", state.SessionID,
			"action", string(action),
			"error", err,
		)
	}
}

func (s *Service) view(state State) View {
	return BuildView(state, s.event.Grades, s.event.RedirectDelay)
}

func buildPayload(ctx context.Context, state State, quote pricing.Quote) payment.Payload {
	return payment.Payload{
		StudentName:    state.Form.StudentName,
		StudentGrade:   state.Form.StudentGrade,
		StudentClass:   state.Form.StudentClass,
		ParentName:     state.Form.ParentName,
		CPF:            state.Form.Identifier,
		Email:          state.Form.Email,
		Phone:          state.Form.Phone,
		PaymentMethod:  string(state.Form.PaymentMethod),
		Installments:   state.Form.Installments,
		TicketQuantity: state.Form.TicketQuantity,
		Amount:         quote.Rounded().Total.InexactFloat64(),
		Timestamp:      requestcontext.Now(ctx).UTC().Truncate(time.Millisecond),
		Event:          state.EventTag,
	}
}

func editable(s State) bool {
	return s.Phase != PhaseIdle && !s.Phase.Terminal() && !s.Processing
}

func sanitized(v *string) *string {
	if v == nil {
		return nil
	}
	clean := SanitizeText(*v)
	return &clean
}

// gateReason turns a gate message into a low-cardinality metric label.
func gateReason(msg string) string {
	switch msg {
	case MsgSelectStudent:
		return "no_student"
	case MsgFillValidID:
		return "identifier_incomplete"
	case MsgFillParentName:
		return "parent_name"
	case MsgFillEmail:
		return "email"
	case MsgFillPhone:
		return "phone"
	default:
		return "identifier_invalid"
	}
}

// sessionLocks hands out one mutex per session ID and forgets it once no
// caller holds or waits on it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
