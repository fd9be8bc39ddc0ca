// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package cpd

// EBK annual PDU limits. The backend owns the authoritative award; these
// mirrors exist so the client can preview an award before submitting.
const (
	// AnnualRequired is the renewal requirement per year.
	AnnualRequired = 50
	// StructuredCap limits PDUs from structured activities per year.
	StructuredCap = 40
	// UnstructuredCap limits PDUs from informal activities per year.
	UnstructuredCap = 10
)

// categoryCaps are the per-category annual PDU limits.
var categoryCaps = map[ActivityType]int{
	TypeEBKOrganized:          10,
	TypeParticipation:         5,
	TypePresentation:          10,
	TypeKnowledgeContribution: 10,
	TypeWorkBased:             10,
	TypeInformal:              10,
	TypeAccreditedProvider:    25,
}

// CategoryCap returns the annual PDU limit for a category.
func CategoryCap(t ActivityType) int {
	if limit, ok := categoryCaps[t]; ok {
		return limit
	}
	return 10
}

// Structured reports whether t counts toward the structured annual cap.
// Only informal activities are unstructured.
func Structured(t ActivityType) bool { return t != TypeInformal }

// RawPDUs computes the uncapped PDU award for an activity. Work-based
// activities earn 1 PDU per 100 hours (max 10); knowledge contributions
// earn at most 10; everything else earns 1 PDU per hour.
func RawPDUs(t ActivityType, hours int) int {
	switch t {
	case TypeWorkBased:
		pdus := hours / 100
		if pdus > 10 {
			return 10
		}
		return pdus
	case TypeKnowledgeContribution:
		if hours > 10 {
			return 10
		}
		return hours
	default:
		return hours
	}
}

// Preview is the predicted outcome of submitting an activity.
type Preview struct {
	PDUs            int
	Rejected        bool
	RejectionReason string
}

// PreviewAward predicts what the backend will award for a new activity of
// the given type and hours, completed in the given year, against the
// engineer's existing approved activities. The real award happens
// server-side; the preview lets forms warn before a doomed submission.
func PreviewAward(existing []Activity, t ActivityType, hours, year int) Preview {
	raw := RawPDUs(t, hours)
	if raw <= 0 {
		return Preview{Rejected: true, RejectionReason: "No valid PDUs calculated."}
	}

	var categoryEarned, structuredEarned, unstructuredEarned int
	for _, a := range existing {
		if a.Status != StatusApproved || a.Year() != year {
			continue
		}
		if a.Type == t {
			categoryEarned += a.PDUUnitsAwarded
		}
		if Structured(a.Type) {
			structuredEarned += a.PDUUnitsAwarded
		} else {
			unstructuredEarned += a.PDUUnitsAwarded
		}
	}

	limit := CategoryCap(t)
	allowed := limit - categoryEarned
	if allowed < 0 {
		allowed = 0
	}
	pdus := min(raw, allowed)
	if pdus <= 0 {
		return Preview{Rejected: true, RejectionReason: "Exceeds annual limit for this activity type."}
	}

	if Structured(t) {
		pdus = min(pdus, StructuredCap-structuredEarned)
	} else {
		pdus = min(pdus, UnstructuredCap-unstructuredEarned)
	}
	if pdus <= 0 {
		return Preview{Rejected: true, RejectionReason: "Exceeds annual CPD limit (max 50 PDUs: 40 structured + 10 unstructured)."}
	}

	return Preview{PDUs: pdus}
}
