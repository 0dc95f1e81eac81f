package polls

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PollStatus string

const (
	StatusOpen   PollStatus = "open"
	StatusClosed PollStatus = "closed"
)

type ReactionKind string

const (
	Like    ReactionKind = "like"
	Dislike ReactionKind = "dislike"
)

func (k ReactionKind) Valid() bool {
	return k == Like || k == Dislike
}

type Poll struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	AuthorID    string     `gorm:"size:128;not null;index" json:"authorId"`
	CompanyID   *string    `gorm:"size:36;index:idx_polls_company_created,priority:1" json:"companyId,omitempty"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      PollStatus `gorm:"size:16;not null;default:'open';index" json:"status"`
	ClosesAt    *time.Time `json:"closesAt,omitempty"`
	TotalVotes  int64      `gorm:"not null;default:0" json:"totalVotes"`
	Likes       int64      `gorm:"not null;default:0" json:"likes"`
	Dislikes    int64      `gorm:"not null;default:0" json:"dislikes"`

	Options []PollOption `gorm:"constraint:OnDelete:CASCADE;" json:"options,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_polls_company_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open reports whether the poll still accepts votes at now.
func (p *Poll) Open(now time.Time) bool {
	if p.Status != StatusOpen {
		return false
	}
	return p.ClosesAt == nil || now.Before(*p.ClosesAt)
}

type PollOption struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	PollID   string `gorm:"size:36;not null;index" json:"pollId"`
	Text     string `gorm:"size:200;not null" json:"text"`
	Position int    `gorm:"not null;default:0" json:"position"`
	Votes    int64  `gorm:"not null;default:0" json:"votes"`
}

type Vote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PollID    string    `gorm:"size:36;not null;uniqueIndex:idx_votes_poll_user,priority:1" json:"pollId"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_votes_poll_user,priority:2" json:"userId"`
	OptionID  string    `gorm:"size:36;not null" json:"optionId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PollID     string    `gorm:"size:36;not null;index:idx_comments_poll_created,priority:1" json:"pollId"`
	AuthorID   string    `gorm:"size:128;not null" json:"authorId"`
	AuthorName string    `gorm:"size:160" json:"authorName"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"index:idx_comments_poll_created,priority:2" json:"createdAt"`
}

type Reaction struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	PollID    string       `gorm:"size:36;not null;uniqueIndex:idx_reactions_poll_user,priority:1" json:"pollId"`
	UserID    string       `gorm:"size:128;not null;uniqueIndex:idx_reactions_poll_user,priority:2" json:"userId"`
	Kind      ReactionKind `gorm:"size:16;not null" json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (p *Poll) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

func (o *PollOption) BeforeCreate(tx *gorm.DB) error {
	newID(&o.ID)
	return nil
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	newID(&v.ID)
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

// Models lists the tables owned by this package, for migrations.
func Models() []interface{} {
	return []interface{}{&Poll{}, &PollOption{}, &Vote{}, &Comment{}, &Reaction{}}
}
