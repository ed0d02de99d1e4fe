package registration_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"eventreg/internal/payment"
	"eventreg/internal/platform/config"
	"eventreg/internal/platform/provider"
	"eventreg/internal/pricing"
	"eventreg/internal/registration"
	"eventreg/internal/registration/mocks"
	"eventreg/internal/registration/store"
	"eventreg/internal/students/models"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/audit"
	"eventreg/pkg/requestcontext"
)

// =============================================================================
// Form Controller Service Test Suite
// =============================================================================
// The service sequences reducer events around the two remote calls. Tests use
// the in-memory session store and mock the lookup, the workflow and audit so
// every remote interaction is explicit.

var (
	ana  = models.Student{ID: "1", FullName: "Ana Beatriz Souza", Grade: "3º Ano", Section: "A", Shift: "Manhã"}
	davi = models.Student{ID: "2", FullName: "Davi Oliveira Santos", Grade: "5º Ano", Section: "B", Shift: "Manhã"}
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	lookup    *mocks.MockStudentLookup
	submitter *mocks.MockSubmitter
	auditor   *mocks.MockAuditPublisher
	sessions  *store.InMemory
	service   *registration.Service
	ctx       context.Context
	now       time.Time
	opened    int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.lookup = mocks.NewMockStudentLookup(s.ctrl)
	s.submitter = mocks.NewMockSubmitter(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.sessions = store.NewInMemory()
	s.opened = 0
	s.now = time.Date(2025, 11, 20, 13, 45, 10, 123456789, time.FixedZone("BRT", -3*60*60))
	s.ctx = requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), s.now), "req-1")

	svc, err := registration.New(s.sessions, s.lookup, s.submitter, config.DefaultEvent(),
		registration.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		registration.WithAuditPublisher(s.auditor),
		registration.WithIDGenerator(func() string {
			s.opened++
			return fmt.Sprintf("form-%d", s.opened)
		}),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectAudit(action audit.Action) *audit.Event {
	captured := &audit.Event{}
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.Equal(action, e.Action)
			*captured = e
			return nil
		})
	return captured
}

func (s *ServiceSuite) open() string {
	s.expectAudit(audit.ActionFormOpened)
	view, err := s.service.Open(s.ctx)
	s.Require().NoError(err)
	return view.SessionID
}

// selectAna opens a form, finds and selects Ana, and fills every contact
// field.
func (s *ServiceSuite) selectAna() string {
	id := s.open()
	s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("an", "Manhã", "")).
		Return([]models.Student{ana, davi})
	_, err := s.service.Search(s.ctx, id, "an")
	s.Require().NoError(err)
	_, err = s.service.Select(s.ctx, id, ana.ID)
	s.Require().NoError(err)

	name, email, phone, cpf := "Maria Souza", "maria@example.com", "(71) 99999-0000", "52998224725"
	_, err = s.service.UpdateContact(s.ctx, id, registration.ContactUpdate{
		ParentName: &name, Email: &email, Phone: &phone, Identifier: &cpf,
	})
	s.Require().NoError(err)
	return id
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ServiceSuite) TestNew() {
	event := config.DefaultEvent()

	s.Run("nil store returns error", func() {
		_, err := registration.New(nil, s.lookup, s.submitter, event)
		s.ErrorContains(err, "session store is required")
	})

	s.Run("nil lookup returns error", func() {
		_, err := registration.New(s.sessions, nil, s.submitter, event)
		s.ErrorContains(err, "student lookup is required")
	})

	s.Run("nil submitter returns error", func() {
		_, err := registration.New(s.sessions, s.lookup, nil, event)
		s.ErrorContains(err, "submitter is required")
	})

	s.Run("event without shift returns error", func() {
		_, err := registration.New(s.sessions, s.lookup, s.submitter, config.Event{Tag: "x"})
		s.Error(err)
	})
}

// =============================================================================
// Session lifecycle
// =============================================================================

func (s *ServiceSuite) TestOpenGetClose() {
	id := s.open()
	s.Equal("form-1", id)

	view, err := s.service.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.PhaseEditing, view.Phase)
	s.Equal("Manhã", view.Shift)
	s.Equal(config.DefaultEvent().Grades, view.Grades)

	s.Require().NoError(s.service.Close(s.ctx, id))

	_, err = s.service.Get(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.Close(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUnknownSession() {
	_, err := s.service.Search(s.ctx, "missing", "ana")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Submit(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Search and filters
// =============================================================================

func (s *ServiceSuite) TestSearch() {
	s.Run("long enough text looks up the fixed shift", func() {
		id := s.open()
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("ana", "Manhã", "")).
			Return([]models.Student{ana})

		view, err := s.service.Search(s.ctx, id, " ana ")
		s.Require().NoError(err)
		s.Equal([]models.Student{ana}, view.Candidates)
		s.True(view.DropdownVisible)
		s.False(view.Searching)
	})

	s.Run("short text never reaches the lookup", func() {
		id := s.open()
		view, err := s.service.Search(s.ctx, id, "a")
		s.Require().NoError(err)
		s.Empty(view.Candidates)
		s.False(view.DropdownVisible)
	})

	s.Run("search text is sanitized", func() {
		id := s.open()
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("ana", "Manhã", "")).
			Return(nil)

		view, err := s.service.Search(s.ctx, id, "<b>ana</b>")
		s.Require().NoError(err)
		s.Equal("ana", view.SearchText)
		s.False(view.DropdownVisible)
	})
}

func (s *ServiceSuite) TestGradeFilter() {
	s.Run("filter change re-issues the lookup", func() {
		id := s.open()
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("an", "Manhã", "")).
			Return([]models.Student{ana, davi})
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("an", "Manhã", "5º Ano")).
			Return([]models.Student{davi})
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("an", "Manhã", "")).
			Return([]models.Student{ana, davi})

		_, err := s.service.Search(s.ctx, id, "an")
		s.Require().NoError(err)

		view, err := s.service.SetGradeFilter(s.ctx, id, "5º Ano")
		s.Require().NoError(err)
		s.Equal("5º Ano", view.GradeFilter)
		s.Equal([]models.Student{davi}, view.Candidates)

		view, err = s.service.ClearFilters(s.ctx, id)
		s.Require().NoError(err)
		s.Empty(view.GradeFilter)
		s.Len(view.Candidates, 2)
	})

	s.Run("unknown grade is rejected", func() {
		id := s.open()
		_, err := s.service.SetGradeFilter(s.ctx, id, "12º Ano")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("filter change without search text does not look up", func() {
		id := s.open()
		view, err := s.service.SetGradeFilter(s.ctx, id, "5º Ano")
		s.Require().NoError(err)
		s.Equal("5º Ano", view.GradeFilter)
	})
}

func (s *ServiceSuite) TestStaleLookupIsDiscarded() {
	id := s.open()

	s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("an", "Manhã", "")).
		DoAndReturn(func(ctx context.Context, _ models.Query) []models.Student {
			// A newer keystroke lands while this lookup is still in flight.
			_, err := s.service.Search(ctx, id, "ana")
			s.Require().NoError(err)
			return []models.Student{ana, davi}
		})
	s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("ana", "Manhã", "")).
		Return([]models.Student{ana})

	view, err := s.service.Search(s.ctx, id, "an")
	s.Require().NoError(err)
	s.Equal("ana", view.SearchText)
	s.Equal([]models.Student{ana}, view.Candidates)
}

// =============================================================================
// Selection and form edits
// =============================================================================

func (s *ServiceSuite) TestSelect() {
	s.Run("candidate is selected and locked", func() {
		id := s.selectAna()
		view, err := s.service.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(registration.PhaseStudentSelected, view.Phase)
		s.Equal(ana.FullName, view.Form.StudentName)
		s.Equal("529.982.247-25", view.Form.Identifier)
		s.True(view.CanSubmit)
	})

	s.Run("student outside the candidate list is not found", func() {
		id := s.open()
		_, err := s.service.Select(s.ctx, id, "42")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("editing the search text drops the selection without a lookup", func() {
		id := s.selectAna()
		s.lookup.EXPECT().Search(gomock.Any(), models.NewQuery("Ana", "Manhã", "")).
			Return([]models.Student{ana})

		view, err := s.service.Search(s.ctx, id, "Ana")
		s.Require().NoError(err)
		s.Nil(view.SelectedStudent)
		s.Empty(view.Form.StudentName)
		s.Equal([]models.Student{ana}, view.Candidates)
	})

	s.Run("clearing selection empties search", func() {
		id := s.selectAna()
		view, err := s.service.ClearSelection(s.ctx, id)
		s.Require().NoError(err)
		s.Nil(view.SelectedStudent)
		s.Empty(view.SearchText)
		s.Equal(registration.PhaseEditing, view.Phase)
	})
}

func (s *ServiceSuite) TestContactFieldsAreSanitized() {
	id := s.open()
	name := "<script>x</script>Maria   Souza"
	view, err := s.service.UpdateContact(s.ctx, id, registration.ContactUpdate{ParentName: &name})
	s.Require().NoError(err)
	s.Equal("Maria Souza", view.Form.ParentName)
}

func (s *ServiceSuite) TestPaymentAndTickets() {
	id := s.open()
	for range 5 {
		_, err := s.service.StepTickets(s.ctx, id, 1)
		s.Require().NoError(err)
	}

	view, err := s.service.SetPayment(s.ctx, id, "credit", 3)
	s.Require().NoError(err)
	s.Equal(6, view.Form.TicketQuantity)
	s.Equal(3, view.Form.Installments)
	s.Len(view.InstallmentOptions, 3)

	view, err = s.service.StepTickets(s.ctx, id, -1)
	s.Require().NoError(err)
	s.Equal(2, view.Form.Installments)

	_, err = s.service.SetPayment(s.ctx, id, "boleto", 1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.StepTickets(s.ctx, id, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// =============================================================================
// Submission
// =============================================================================

func (s *ServiceSuite) TestSubmitGateMakesNoNetworkCall() {
	id := s.open()
	view, err := s.service.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.PhaseEditing, view.Phase)
	s.Require().NotNil(view.Notice)
	s.Equal(registration.MsgSelectStudent, view.Notice.Message)
	s.False(view.Processing)
}

func (s *ServiceSuite) TestSubmitSuccess() {
	id := s.selectAna()
	_, err := s.service.StepTickets(s.ctx, id, 1)
	s.Require().NoError(err)
	_, err = s.service.SetPayment(s.ctx, id, "credit", 1)
	s.Require().NoError(err)

	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, p payment.Payload) (payment.Result, error) {
			s.Equal(ana.FullName, p.StudentName)
			s.Equal(ana.Grade, p.StudentGrade)
			s.Equal(ana.Section, p.StudentClass)
			s.Equal("529.982.247-25", p.CPF)
			s.Equal("credit", p.PaymentMethod)
			s.Equal(1, p.Installments)
			s.Equal(2, p.TicketQuantity)
			s.InDelta(62.28, p.Amount, 0.0001)
			s.Equal("Amadeus-autonatalmatutino", p.Event)
			s.Equal(time.UTC, p.Timestamp.Location())
			s.True(s.now.Truncate(time.Millisecond).Equal(p.Timestamp))

			// Edits are refused while the workflow call is in flight.
			busy, err := s.service.StepTickets(ctx, id, 1)
			s.Require().NoError(err)
			s.Equal(registration.NoticeBusy, busy.Notice.Kind)
			s.Equal(2, busy.Form.TicketQuantity)
			return payment.Result{PaymentURL: "https://pay.example/abc"}, nil
		})
	event := s.expectAudit(audit.ActionRegistrationSubmitted)

	view, err := s.service.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.PhaseRedirectPending, view.Phase)
	s.Require().NotNil(view.Redirect)
	s.Equal("https://pay.example/abc", view.Redirect.URL)
	s.Equal(int64(1000), view.Redirect.DelayMS)
	s.False(view.CanSubmit)

	s.Equal(audit.HashSubjectID("52998224725"), event.SubjectIDHash)
	s.Equal(ana.ID, event.StudentID)
	s.Equal("62.28", event.Amount)
	s.Equal("req-1", event.RequestID)
}

func (s *ServiceSuite) TestSubmitPaymentLinkMissing() {
	id := s.selectAna()
	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(payment.Result{}, payment.ErrPaymentLinkMissing)
	s.expectAudit(audit.ActionPaymentLinkMissing)

	view, err := s.service.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.PhaseLinkMissing, view.Phase)
	s.Nil(view.Redirect)
	s.False(view.CanSubmit)
	s.Require().NotNil(view.Notice)
	s.Equal(registration.NoticePaymentLinkMissing, view.Notice.Kind)

	// A second submit never reaches the workflow.
	view, err = s.service.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.NoticeLocked, view.Notice.Kind)
}

func (s *ServiceSuite) TestSubmitFailures() {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"server message is shown", &payment.RejectedError{StatusCode: 200, Message: "Turma lotada"}, "Turma lotada"},
		{"non-2xx without message", &payment.RejectedError{StatusCode: 502}, payment.MsgServerFailure},
		{"success false without message", &payment.RejectedError{}, payment.MsgRejectedFallback},
		{"transport failure", provider.NewError(provider.ErrorTimeout, "workflow", "deadline exceeded", errors.New("timeout")), payment.MsgGenericFailure},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			id := s.selectAna()
			s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(payment.Result{}, tt.err)
			s.expectAudit(audit.ActionRegistrationFailed)

			view, err := s.service.Submit(s.ctx, id)
			s.Require().NoError(err)
			s.Equal(registration.PhaseStudentSelected, view.Phase)
			s.False(view.Processing)
			s.True(view.CanSubmit)
			s.Require().NotNil(view.Notice)
			s.Equal(tt.message, view.Notice.Message)
		})
	}
}

// staleReadStore serves one outdated snapshot, the read an instance makes
// just before another instance saves.
type staleReadStore struct {
	registration.SessionStore
	stale *registration.State
}

func (st *staleReadStore) Get(ctx context.Context, id string) (registration.State, error) {
	if st.stale != nil {
		snapshot := *st.stale
		st.stale = nil
		return snapshot, nil
	}
	return st.SessionStore.Get(ctx, id)
}

func (s *ServiceSuite) TestSubmitOnceAcrossInstances() {
	id := s.selectAna()
	beforeSubmit, err := s.sessions.Get(s.ctx, id)
	s.Require().NoError(err)

	// A second instance shares the session store but not the session locks.
	other, err := registration.New(&staleReadStore{SessionStore: s.sessions, stale: &beforeSubmit},
		s.lookup, s.submitter, config.DefaultEvent(),
		registration.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, _ payment.Payload) (payment.Result, error) {
			view, err := other.Submit(ctx, id)
			s.Require().NoError(err)
			s.True(view.Processing)
			s.Require().NotNil(view.Notice)
			s.Equal(registration.NoticeBusy, view.Notice.Kind)
			return payment.Result{PaymentURL: "https://pay.example/abc"}, nil
		})
	s.expectAudit(audit.ActionRegistrationSubmitted)

	view, err := s.service.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(registration.PhaseRedirectPending, view.Phase)
}

func (s *ServiceSuite) TestSaveConflictRetriesOnFreshState() {
	id := s.open()
	beforeEdit, err := s.sessions.Get(s.ctx, id)
	s.Require().NoError(err)
	_, err = s.service.StepTickets(s.ctx, id, 1)
	s.Require().NoError(err)

	other, err := registration.New(&staleReadStore{SessionStore: s.sessions, stale: &beforeEdit},
		s.lookup, s.submitter, config.DefaultEvent(),
		registration.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	view, err := other.StepTickets(s.ctx, id, 1)
	s.Require().NoError(err)
	s.Equal(3, view.Form.TicketQuantity, "neither increment is lost")
}

func (s *ServiceSuite) TestSubmitAfterCloseIsNotFound() {
	id := s.selectAna()
	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ payment.Payload) (payment.Result, error) {
			s.Require().NoError(s.service.Close(ctx, id))
			return payment.Result{PaymentURL: "https://pay.example/abc"}, nil
		})
	s.expectAudit(audit.ActionRegistrationSubmitted)

	_, err := s.service.Submit(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAuditFailureDoesNotFailTheRequest() {
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit buffer full"))
	view, err := s.service.Open(s.ctx)
	s.Require().NoError(err)
	s.Equal(registration.PhaseEditing, view.Phase)
	s.Equal(pricing.MethodPix, view.Form.PaymentMethod)
}
