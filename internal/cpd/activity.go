// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package cpd tracks Continuing Professional Development activities: the
// activity list fetched from the remote API, annual summaries, report
// downloads, and the client-side derived state (filtering, sorting,
// aggregation) the UI renders from.
package cpd

import (
	"sort"
	"strings"
	"time"
)

// ActivityType is one of the seven EBK activity categories.
type ActivityType string

// EBK activity categories.
const (
	TypeEBKOrganized          ActivityType = "EBK_ORGANIZED"
	TypeParticipation         ActivityType = "PARTICIPATION"
	TypePresentation          ActivityType = "PRESENTATION"
	TypeKnowledgeContribution ActivityType = "KNOWLEDGE_CONTRIBUTION"
	TypeWorkBased             ActivityType = "WORK_BASED"
	TypeInformal              ActivityType = "INFORMAL"
	TypeAccreditedProvider    ActivityType = "ACCREDITED_PROVIDER"
)

// ActivityTypes returns the categories in display order.
func ActivityTypes() []ActivityType {
	return []ActivityType{
		TypeEBKOrganized,
		TypeParticipation,
		TypePresentation,
		TypeKnowledgeContribution,
		TypeWorkBased,
		TypeInformal,
		TypeAccreditedProvider,
	}
}

// Label returns the human-readable category name.
func (t ActivityType) Label() string {
	switch t {
	case TypeEBKOrganized:
		return "EBK Organized Activities"
	case TypeParticipation:
		return "Participation (Mentoring, Committees)"
	case TypePresentation:
		return "Presentations"
	case TypeKnowledgeContribution:
		return "Contributions to Knowledge"
	case TypeWorkBased:
		return "Work-Based Activities"
	case TypeInformal:
		return "Informal (Self-Study, Conferences)"
	case TypeAccreditedProvider:
		return "Accredited Service Provider"
	default:
		return string(t)
	}
}

// Valid reports whether t is a known category.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeEBKOrganized, TypeParticipation, TypePresentation,
		TypeKnowledgeContribution, TypeWorkBased, TypeInformal,
		TypeAccreditedProvider:
		return true
	}
	return false
}

// Status is the review outcome the backend assigns on creation.
type Status string

// Review outcomes.
const (
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// dateLayout is the wire format for date-only fields.
const dateLayout = "2006-01-02"

// Activity is one logged CPD activity as returned by the API.
type Activity struct {
	ID              int          `json:"id"`
	EngineerEmail   string       `json:"engineer_email"`
	EngineerName    string       `json:"engineer_name"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Type            ActivityType `json:"activity_type"`
	DateCompleted   string       `json:"date_completed"` // YYYY-MM-DD
	HoursSpent      int          `json:"hours_spent"`
	DocumentURL     string       `json:"supporting_document_url"`
	PDUUnitsAwarded int          `json:"pdu_units_awarded"`
	Status          Status       `json:"status"`
	RejectionReason string       `json:"rejection_reason"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Year returns the completion year, or 0 if the date doesn't parse.
func (a Activity) Year() int {
	d, err := time.Parse(dateLayout, a.DateCompleted)
	if err != nil {
		return 0
	}
	return d.Year()
}

// Filter selects activities for display. Zero values match everything.
type Filter struct {
	Type   ActivityType // "" matches all categories
	Status Status       // "" matches all statuses
	Search string       // case-insensitive substring of title or description
	Year   int          // 0 matches all years
}

// Apply returns the activities matching f, newest first. The input slice
// is not modified.
func Apply(activities []Activity, f Filter) []Activity {
	matched := make([]Activity, 0, len(activities))
	search := strings.ToLower(f.Search)
	for _, a := range activities {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Year != 0 && a.Year() != f.Year {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Description), search) {
			continue
		}
		matched = append(matched, a)
	}
	SortNewestFirst(matched)
	return matched
}

// SortNewestFirst orders activities by completion date descending, with
// creation time as the tiebreaker. Matches the API's default ordering so
// locally-prepended activities settle into the same order a refetch yields.
func SortNewestFirst(activities []Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].DateCompleted != activities[j].DateCompleted {
			return activities[i].DateCompleted > activities[j].DateCompleted
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
}

// Stats aggregates a displayed activity list.
type Stats struct {
	Count        int
	ApprovedPDUs int
	TotalHours   int
	Rejected     int
}

// ComputeStats aggregates activities the way the activity list page does:
// PDUs count only approved entries, hours count everything shown.
func ComputeStats(activities []Activity) Stats {
	var s Stats
	for _, a := range activities {
		s.Count++
		s.TotalHours += a.HoursSpent
		switch a.Status {
		case StatusApproved:
			s.ApprovedPDUs += a.PDUUnitsAwarded
		case StatusRejected:
			s.Rejected++
		}
	}
	return s
}
