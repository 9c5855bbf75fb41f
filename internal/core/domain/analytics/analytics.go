package analytics

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidVote = errors.New("invalid vote")

type Vote struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BusinessID uuid.UUID `json:"business_id" db:"business_id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	VoterRef   string    `json:"voter_ref" db:"voter_ref"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type VoteTally struct {
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Votes       int64     `json:"votes" db:"votes"`
}

// BusinessReport aggregates votes for a business. Replica names the
// connection the report was read from ("primary" after a fallback).
type BusinessReport struct {
	BusinessID  uuid.UUID   `json:"business_id"`
	TotalVotes  int64       `json:"total_votes"`
	Products    []VoteTally `json:"products"`
	GeneratedAt time.Time   `json:"generated_at"`
	Replica     string      `json:"replica,omitempty"`
}

type RecordVoteRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	VoterRef  string    `json:"voter_ref"`
}

func (r *RecordVoteRequest) Validate() error {
	if r.ProductID == uuid.Nil {
		return ErrInvalidVote
	}
	return nil
}
