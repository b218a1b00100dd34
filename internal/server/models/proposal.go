// Package models holds the server-side domain records persisted by the
// repositories and returned by the services.
package models

import "time"

// Status is the review state of a proposal.
type Status string

const (
	StatusSubmitted   Status = "Submitted"
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected}

func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move a proposal from s to
// target. Review is unconstrained: any valid status may follow any other,
// including a return to Submitted.
func (s Status) CanTransitionTo(target Status) bool {
	return s.IsValid() && target.IsValid()
}

// Editable reports whether the owner may still edit or withdraw the proposal.
func (s Status) Editable() bool {
	return s == StatusSubmitted
}

func (s Status) String() string {
	return string(s)
}

// Proposal is a submission owned by UserEmail. ProposalFile is the stored
// name of the attached document inside the blob store.
type Proposal struct {
	ID            string    `json:"id"`
	UserEmail     string    `json:"user_email"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Affiliation   string    `json:"affiliation"`
	PhoneNumber   string    `json:"phone_number"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ProposalFile  string    `json:"proposal_file"`
	Status        Status    `json:"status"`
	ReviewResults string    `json:"review_results"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
