package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"poll-app/internal/domain/billing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MinOptions     = 2
	MaxOptions     = 10
	MaxCommentLen  = 1000
	defaultPageLen = 20
	maxPageLen     = 100
)

type SubscriptionLookup interface {
	GetSubscriptionByCompany(ctx context.Context, companyID string) (*billing.Subscription, error)
}

type Service struct {
	db   *gorm.DB
	subs SubscriptionLookup
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewService(db *gorm.DB, subs SubscriptionLookup, log logrus.FieldLogger) *Service {
	return &Service{
		db:   db,
		subs: subs,
		log:  log.WithField("component", "polls"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type CreatePollInput struct {
	AuthorID    string
	CompanyID   string
	Title       string
	Description string
	Options     []string
	ClosesAt    *time.Time
}

// CreatePoll stores a poll with its options. Company polls require an
// entitled subscription and respect the plan snapshot's limits.
func (s *Service) CreatePoll(ctx context.Context, in CreatePollInput) (*Poll, error) {
	title := strings.TrimSpace(in.Title)
	if in.AuthorID == "" || title == "" {
		return nil, fmt.Errorf("%w: author and title are required", ErrInvalidInput)
	}
	options := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	if len(options) < MinOptions || len(options) > MaxOptions {
		return nil, fmt.Errorf("%w: a poll needs between %d and %d options", ErrInvalidInput, MinOptions, MaxOptions)
	}
	if in.ClosesAt != nil && !in.ClosesAt.After(s.now()) {
		return nil, fmt.Errorf("%w: closesAt must be in the future", ErrInvalidInput)
	}

	poll := &Poll{
		AuthorID:    in.AuthorID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      StatusOpen,
		ClosesAt:    in.ClosesAt,
		CreatedAt:   s.now(),
	}
	for i, text := range options {
		poll.Options = append(poll.Options, PollOption{Text: text, Position: i})
	}

	if in.CompanyID != "" {
		if err := s.checkCompanyQuota(ctx, in.CompanyID); err != nil {
			return nil, err
		}
		companyID := in.CompanyID
		poll.CompanyID = &companyID
	}

	if err := s.db.WithContext(ctx).Create(poll).Error; err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}

	s.log.WithFields(logrus.Fields{"poll_id": poll.ID, "company_id": in.CompanyID}).Info("poll created")
	return poll, nil
}

func (s *Service) checkCompanyQuota(ctx context.Context, companyID string) error {
	sub, err := s.subs.GetSubscriptionByCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if sub == nil || !sub.Status.Entitled() {
		return ErrSubscriptionRequired
	}
	limits := sub.Snapshot().Limits
	now := s.now()

	if limits.ActivePolls > 0 {
		var active int64
		if err := s.db.WithContext(ctx).Model(&Poll{}).
			Where("company_id = ? AND status = ?", companyID, StatusOpen).
			Where("closes_at IS NULL OR closes_at > ?", now).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(limits.ActivePolls) {
			return fmt.Errorf("%w: %d active polls", ErrPlanLimitReached, limits.ActivePolls)
		}
	}

	if limits.PollsPerMonth > 0 {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		var created int64
		if err := s.db.WithContext(ctx).Model(&Poll{}).
			Where("company_id = ? AND created_at >= ?", companyID, monthStart).
			Count(&created).Error; err != nil {
			return err
		}
		if created >= int64(limits.PollsPerMonth) {
			return fmt.Errorf("%w: %d polls per month", ErrPlanLimitReached, limits.PollsPerMonth)
		}
	}
	return nil
}

func (s *Service) GetPoll(ctx context.Context, id string) (*Poll, error) {
	var p Poll
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPollNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

type ListFilter struct {
	CompanyID string
	AuthorID  string
	Status    PollStatus
	Limit     int
	Offset    int
}

// ListPolls returns polls newest first, with options.
func (s *Service) ListPolls(ctx context.Context, f ListFilter) ([]Poll, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageLen
	}
	if limit > maxPageLen {
		limit = maxPageLen
	}

	q := s.db.WithContext(ctx).Model(&Poll{})
	if f.CompanyID != "" {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var out []Poll
	err := q.
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(f.Offset).
		Find(&out).Error
	return out, err
}

// ClosePoll stops voting. Closing a closed poll is a no-op.
func (s *Service) ClosePoll(ctx context.Context, id, callerID string) (*Poll, error) {
	p, err := s.GetPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != callerID {
		return nil, ErrNotAuthor
	}
	if p.Status == StatusClosed {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(&Poll{}).Where("id = ?", id).Update("status", StatusClosed).Error; err != nil {
		return nil, err
	}
	p.Status = StatusClosed
	return p, nil
}

// Vote records the user's choice and bumps the option and poll counters in
// the same transaction.
func (s *Service) Vote(ctx context.Context, pollID, optionID, userID string) (*Poll, error) {
	if userID == "" || optionID == "" {
		return nil, fmt.Errorf("%w: user and option are required", ErrInvalidInput)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Poll
		if err := tx.Where("id = ?", pollID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
			}
			return err
		}
		if !p.Open(s.now()) {
			return ErrPollClosed
		}

		var opt PollOption
		if err := tx.Where("id = ? AND poll_id = ?", optionID, pollID).First(&opt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOptionNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&Vote{}).Where("poll_id = ? AND user_id = ?", pollID, userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}
		if err := tx.Create(&Vote{PollID: pollID, UserID: userID, OptionID: optionID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return err
		}

		if err := tx.Model(&PollOption{}).Where("id = ?", optionID).
			Update("votes", gorm.Expr("votes + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Model(&Poll{}).Where("id = ?", pollID).
			Update("total_votes", gorm.Expr("total_votes + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID)
}

func (s *Service) AddComment(ctx context.Context, pollID, authorID, authorName, body string) (*Comment, error) {
	body = strings.TrimSpace(body)
	if authorID == "" || body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > MaxCommentLen {
		return nil, fmt.Errorf("%w: comment longer than %d characters", ErrInvalidInput, MaxCommentLen)
	}
	if err := s.exists(ctx, pollID); err != nil {
		return nil, err
	}

	c := &Comment{PollID: pollID, AuthorID: authorID, AuthorName: authorName, Body: body, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// ListComments returns the poll's comments newest first.
func (s *Service) ListComments(ctx context.Context, pollID string) ([]Comment, error) {
	if err := s.exists(ctx, pollID); err != nil {
		return nil, err
	}
	var out []Comment
	err := s.db.WithContext(ctx).Where("poll_id = ?", pollID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}

type ReactionState struct {
	Likes    int64        `json:"likes"`
	Dislikes int64        `json:"dislikes"`
	Mine     ReactionKind `json:"mine,omitempty"`
}

// React sets the user's reaction. Repeating the current kind removes it;
// the other kind replaces it and moves the counter.
func (s *Service) React(ctx context.Context, pollID, userID string, kind ReactionKind) (*ReactionState, error) {
	if userID == "" || !kind.Valid() {
		return nil, fmt.Errorf("%w: kind must be like or dislike", ErrInvalidInput)
	}

	state := &ReactionState{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Poll
		if err := tx.Where("id = ?", pollID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
			}
			return err
		}

		var r Reaction
		err := tx.Where("poll_id = ? AND user_id = ?", pollID, userID).First(&r).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&Reaction{PollID: pollID, UserID: userID, Kind: kind}).Error; err != nil {
				return err
			}
			if err := bump(tx, pollID, kind, 1); err != nil {
				return err
			}
			state.Mine = kind
		case err != nil:
			return err
		case r.Kind == kind:
			if err := tx.Delete(&Reaction{}, "id = ?", r.ID).Error; err != nil {
				return err
			}
			if err := bump(tx, pollID, kind, -1); err != nil {
				return err
			}
		default:
			if err := tx.Model(&Reaction{}).Where("id = ?", r.ID).Update("kind", kind).Error; err != nil {
				return err
			}
			if err := bump(tx, pollID, r.Kind, -1); err != nil {
				return err
			}
			if err := bump(tx, pollID, kind, 1); err != nil {
				return err
			}
			state.Mine = kind
		}

		if err := tx.Select("likes", "dislikes").Where("id = ?", pollID).First(&p).Error; err != nil {
			return err
		}
		state.Likes, state.Dislikes = p.Likes, p.Dislikes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func bump(tx *gorm.DB, pollID string, kind ReactionKind, delta int) error {
	column := "likes"
	if kind == Dislike {
		column = "dislikes"
	}
	return tx.Model(&Poll{}).Where("id = ?", pollID).
		Update(column, gorm.Expr(column+" + ?", delta)).Error
}

func (s *Service) exists(ctx context.Context, pollID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Poll{}).Where("id = ?", pollID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
	}
	return nil
}
