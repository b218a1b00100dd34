package services

import (
	"strings"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

// Scope selects which fields a search matches.
type Scope int

const (
	// ScopeUser searches title and description.
	ScopeUser Scope = iota
	// ScopeAdmin also searches applicant name, applicant email and owner email.
	ScopeAdmin
)

// FilterProposals keeps proposals whose status equals statusFilter (or any
// status for "All" or "") and whose searchable text contains search,
// ignoring case. Order is preserved.
func FilterProposals(list []*models.Proposal, statusFilter string, search string, scope Scope) []*models.Proposal {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]*models.Proposal, 0, len(list))

	for _, p := range list {
		if statusFilter != "" && statusFilter != common.StatusFilterAll && string(p.Status) != statusFilter {
			continue
		}
		if needle != "" && !matches(p, needle, scope) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p *models.Proposal, needle string, scope Scope) bool {
	fields := []string{p.Title, p.Description}
	if scope == ScopeAdmin {
		fields = append(fields, p.FullName, p.Email, p.UserEmail)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Stats are the per-status counts shown on the dashboards.
type Stats struct {
	Total       int `json:"total"`
	Submitted   int `json:"submitted"`
	UnderReview int `json:"under_review"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
}

func ComputeStats(list []*models.Proposal) Stats {
	var st Stats
	for _, p := range list {
		st.Total++
		switch p.Status {
		case models.StatusSubmitted:
			st.Submitted++
		case models.StatusUnderReview:
			st.UnderReview++
		case models.StatusApproved:
			st.Approved++
		case models.StatusRejected:
			st.Rejected++
		}
	}
	return st
}
