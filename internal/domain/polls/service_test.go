package polls

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/plans"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSubscriptions map[string]*billing.Subscription

func (f fakeSubscriptions) GetSubscriptionByCompany(_ context.Context, companyID string) (*billing.Subscription, error) {
	return f[companyID], nil
}

func subscription(status billing.SubscriptionStatus, limits plans.Limits) *billing.Subscription {
	return &billing.Subscription{
		Status:       status,
		PlanSnapshot: datatypes.NewJSONType(billing.PlanSnapshot{Slug: "pro", Limits: limits}),
	}
}

type fixture struct {
	svc  *Service
	subs fakeSubscriptions
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(Models()...))

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{subs: fakeSubscriptions{}, now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(db, f.subs, log)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) poll(t *testing.T, author, company string) *Poll {
	t.Helper()
	p, err := f.svc.CreatePoll(context.Background(), CreatePollInput{
		AuthorID:  author,
		CompanyID: company,
		Title:     "Best lunch?",
		Options:   []string{"Pizza", "Sushi", "Salad"},
	})
	require.NoError(t, err)
	return p
}

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t)
	past := f.now.Add(-time.Hour)
	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = fmt.Sprintf("option %d", i)
	}

	cases := map[string]CreatePollInput{
		"no title":       {AuthorID: "u1", Options: []string{"a", "b"}},
		"no author":      {Title: "t", Options: []string{"a", "b"}},
		"one option":     {AuthorID: "u1", Title: "t", Options: []string{"a"}},
		"blank options":  {AuthorID: "u1", Title: "t", Options: []string{"a", "  "}},
		"too many":       {AuthorID: "u1", Title: "t", Options: eleven},
		"closes in past": {AuthorID: "u1", Title: "t", Options: []string{"a", "b"}, ClosesAt: &past},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreatePoll(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateAndGetPoll(t *testing.T) {
	f := newFixture(t)
	created := f.poll(t, "u1", "")
	assert.Nil(t, created.CompanyID)

	got, err := f.svc.GetPoll(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, got.Options, 3)
	for i, o := range got.Options {
		assert.Equal(t, i, o.Position)
	}
	assert.Equal(t, "Sushi", got.Options[1].Text)
	assert.Equal(t, StatusOpen, got.Status)

	_, err = f.svc.GetPoll(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPollNotFound)
}

func TestCompanyPollRequiresEntitledSubscription(t *testing.T) {
	f := newFixture(t)
	in := CreatePollInput{AuthorID: "u1", CompanyID: "C1", Title: "t", Options: []string{"a", "b"}}

	_, err := f.svc.CreatePoll(context.Background(), in)
	assert.ErrorIs(t, err, ErrSubscriptionRequired)

	f.subs["C1"] = subscription(billing.StatusPastDue, plans.Limits{})
	_, err = f.svc.CreatePoll(context.Background(), in)
	assert.ErrorIs(t, err, ErrSubscriptionRequired)

	f.subs["C1"] = subscription(billing.StatusTrialing, plans.Limits{})
	p, err := f.svc.CreatePoll(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "C1", *p.CompanyID)
}

func TestCompanyPollLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subs["C1"] = subscription(billing.StatusActive, plans.Limits{ActivePolls: 2, PollsPerMonth: 3})
	in := CreatePollInput{AuthorID: "u1", CompanyID: "C1", Title: "t", Options: []string{"a", "b"}}

	first := f.poll(t, "u1", "C1")
	f.poll(t, "u1", "C1")

	_, err := f.svc.CreatePoll(ctx, in)
	assert.ErrorIs(t, err, ErrPlanLimitReached)

	_, err = f.svc.ClosePoll(ctx, first.ID, "u1")
	require.NoError(t, err)
	third, err := f.svc.CreatePoll(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.ClosePoll(ctx, third.ID, "u1")
	require.NoError(t, err)
	_, err = f.svc.CreatePoll(ctx, in)
	assert.ErrorIs(t, err, ErrPlanLimitReached, "monthly quota")

	f.now = time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)
	_, err = f.svc.CreatePoll(ctx, in)
	assert.NoError(t, err)

	// other companies are unaffected
	f.subs["C2"] = subscription(billing.StatusActive, plans.Limits{ActivePolls: 1})
	f.poll(t, "u2", "C2")
}

func TestVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.poll(t, "author", "")
	other := f.poll(t, "author", "")

	got, err := f.svc.Vote(ctx, p.ID, p.Options[1].ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalVotes)
	assert.Equal(t, int64(1), got.Options[1].Votes)
	assert.Equal(t, int64(0), got.Options[0].Votes)

	_, err = f.svc.Vote(ctx, p.ID, p.Options[0].ID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	_, err = f.svc.Vote(ctx, p.ID, other.Options[0].ID, "u2")
	assert.ErrorIs(t, err, ErrOptionNotFound)

	_, err = f.svc.Vote(ctx, "missing", p.Options[0].ID, "u2")
	assert.ErrorIs(t, err, ErrPollNotFound)

	_, err = f.svc.ClosePoll(ctx, p.ID, "author")
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, p.ID, p.Options[0].ID, "u2")
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestVoteAfterDeadline(t *testing.T) {
	f := newFixture(t)
	closes := f.now.Add(time.Hour)
	p, err := f.svc.CreatePoll(context.Background(), CreatePollInput{
		AuthorID: "author", Title: "t", Options: []string{"a", "b"}, ClosesAt: &closes,
	})
	require.NoError(t, err)

	f.now = closes.Add(time.Second)
	_, err = f.svc.Vote(context.Background(), p.ID, p.Options[0].ID, "u1")
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestConcurrentVotesAreAllCounted(t *testing.T) {
	f := newFixture(t)
	p := f.poll(t, "author", "")

	const voters = 12
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Vote(context.Background(), p.ID, p.Options[i%3].ID, fmt.Sprintf("user-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetPoll(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(voters), got.TotalVotes)
	var sum int64
	for _, o := range got.Options {
		assert.Equal(t, int64(voters/3), o.Votes)
		sum += o.Votes
	}
	assert.Equal(t, got.TotalVotes, sum)
}

func TestClosePollAuthorOnly(t *testing.T) {
	f := newFixture(t)
	p := f.poll(t, "author", "")

	_, err := f.svc.ClosePoll(context.Background(), p.ID, "someone")
	assert.ErrorIs(t, err, ErrNotAuthor)

	closed, err := f.svc.ClosePoll(context.Background(), p.ID, "author")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)

	again, err := f.svc.ClosePoll(context.Background(), p.ID, "author")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, again.Status)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.poll(t, "author", "")

	_, err := f.svc.AddComment(ctx, p.ID, "u1", "Ana", "first")
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.AddComment(ctx, p.ID, "u2", "Bruno", "  second  ")
	require.NoError(t, err)

	list, err := f.svc.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Body)
	assert.Equal(t, "first", list[1].Body)

	_, err = f.svc.AddComment(ctx, p.ID, "u1", "Ana", strings.Repeat("é", MaxCommentLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.AddComment(ctx, p.ID, "u1", "Ana", strings.Repeat("é", MaxCommentLen))
	assert.NoError(t, err)
	_, err = f.svc.AddComment(ctx, p.ID, "u1", "Ana", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.AddComment(ctx, "missing", "u1", "Ana", "hi")
	assert.ErrorIs(t, err, ErrPollNotFound)
}

func TestReactionsToggleAndSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.poll(t, "author", "")

	st, err := f.svc.React(ctx, p.ID, "u1", Like)
	require.NoError(t, err)
	assert.Equal(t, ReactionState{Likes: 1, Dislikes: 0, Mine: Like}, *st)

	st, err = f.svc.React(ctx, p.ID, "u2", Like)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Likes)

	st, err = f.svc.React(ctx, p.ID, "u1", Dislike)
	require.NoError(t, err)
	assert.Equal(t, ReactionState{Likes: 1, Dislikes: 1, Mine: Dislike}, *st)

	st, err = f.svc.React(ctx, p.ID, "u1", Dislike)
	require.NoError(t, err)
	assert.Equal(t, ReactionState{Likes: 1, Dislikes: 0}, *st)

	_, err = f.svc.React(ctx, p.ID, "u1", ReactionKind("love"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.React(ctx, "missing", "u1", Like)
	assert.ErrorIs(t, err, ErrPollNotFound)
}

func TestListPollsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subs["C1"] = subscription(billing.StatusActive, plans.Limits{})

	a := f.poll(t, "u1", "")
	f.now = f.now.Add(time.Minute)
	b := f.poll(t, "u2", "C1")
	f.now = f.now.Add(time.Minute)
	c := f.poll(t, "u1", "C1")
	_, err := f.svc.ClosePoll(ctx, c.ID, "u1")
	require.NoError(t, err)

	all, err := f.svc.ListPolls(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Len(t, all[0].Options, 3)

	company, err := f.svc.ListPolls(ctx, ListFilter{CompanyID: "C1", Status: StatusOpen})
	require.NoError(t, err)
	require.Len(t, company, 1)
	assert.Equal(t, b.ID, company[0].ID)

	mine, err := f.svc.ListPolls(ctx, ListFilter{AuthorID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)
}
