package polls

import "errors"

var (
	ErrPollNotFound         = errors.New("poll not found")
	ErrOptionNotFound       = errors.New("option does not belong to poll")
	ErrInvalidInput         = errors.New("invalid poll input")
	ErrSubscriptionRequired = errors.New("company has no active subscription")
	ErrPlanLimitReached     = errors.New("plan limit reached")
	ErrAlreadyVoted         = errors.New("user already voted on this poll")
	ErrPollClosed           = errors.New("poll is closed")
	ErrNotAuthor            = errors.New("only the author can do this")
)
