//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"eventreg/internal/pricing"
	"eventreg/internal/registration"
	"eventreg/internal/registration/store"
	"eventreg/internal/students/models"
	"eventreg/pkg/platform/sentinel"
	"eventreg/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTripPreservesState() {
	ctx := context.Background()
	opened := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	student := models.Student{ID: "7", FullName: "Ana Souza", Grade: "1º Ano", Section: "A", Shift: "Manhã"}

	state := registration.Reduce(registration.NewState("s-1"), registration.Opened{
		EventTag: "Amadeus-autonatalmatutino", Shift: "Manhã", At: opened,
	})
	state.Candidates = []models.Student{student}
	state = registration.Reduce(state, registration.StudentSelected{StudentID: "7"})
	state = registration.Reduce(state, registration.PaymentMethodChanged{Method: pricing.MethodCredit})
	state.Notice = &registration.Notice{Kind: registration.NoticeValidation, Message: "x"}

	s.Require().NoError(s.store.Save(ctx, state, time.Minute))

	got, err := s.store.Get(ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(registration.PhaseStudentSelected, got.Phase)
	s.Require().NotNil(got.Selected)
	s.Equal(student, *got.Selected)
	s.Equal(pricing.MethodCredit, got.Form.PaymentMethod)
	s.True(opened.Equal(got.CreatedAt))
	s.Equal(state.LookupSeq, got.LookupSeq)
	s.Require().NotNil(got.Notice)
	s.Equal("x", got.Notice.Message)
}

func (s *RedisStoreSuite) TestTTLAndDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, registration.NewState("s-2"), time.Minute))

	ttl, err := s.redis.Client.TTL(ctx, "eventreg:session:s-2").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.store.Delete(ctx, "s-2"))
	_, err = s.store.Get(ctx, "s-2")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSaveIsCompareAndSet() {
	ctx := context.Background()
	first := registration.NewState("s-3")
	first.Version = 1
	s.Require().NoError(s.store.Save(ctx, first, time.Minute))
	s.ErrorIs(s.store.Save(ctx, first, time.Minute), sentinel.ErrConflict)

	second := first
	second.Version = 2
	s.Require().NoError(s.store.Save(ctx, second, time.Minute))

	lost := first
	lost.Version = 2
	s.ErrorIs(s.store.Save(ctx, lost, time.Minute), sentinel.ErrConflict)

	got, err := s.store.Get(ctx, "s-3")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)

	missing := registration.NewState("s-4")
	missing.Version = 5
	s.ErrorIs(s.store.Save(ctx, missing, time.Minute), sentinel.ErrNotFound)
}
