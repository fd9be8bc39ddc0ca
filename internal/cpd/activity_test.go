// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package cpd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleActivities() []Activity {
	return []Activity{
		{
			ID: 1, Title: "Mentoring graduate engineers", Description: "Monthly mentoring sessions",
			Type: TypeParticipation, DateCompleted: "2026-03-10", HoursSpent: 4,
			PDUUnitsAwarded: 4, Status: StatusApproved,
			CreatedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: 2, Title: "Structural design review", Description: "Bridge load assessment",
			Type: TypeWorkBased, DateCompleted: "2026-05-02", HoursSpent: 300,
			PDUUnitsAwarded: 3, Status: StatusApproved,
			CreatedAt: time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: 3, Title: "Conference attendance", Description: "EBK annual conference",
			Type: TypeInformal, DateCompleted: "2025-11-20", HoursSpent: 16,
			PDUUnitsAwarded: 0, Status: StatusRejected, RejectionReason: "Exceeds annual limit for this activity type.",
			CreatedAt: time.Date(2025, 11, 21, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: 4, Title: "Seminar on retaining walls", Description: "EBK organized seminar",
			Type: TypeEBKOrganized, DateCompleted: "2026-05-02", HoursSpent: 6,
			PDUUnitsAwarded: 6, Status: StatusApproved,
			CreatedAt: time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC),
		},
	}
}

func TestApply(t *testing.T) {
	activities := sampleActivities()

	t.Run("empty filter returns all, newest first", func(t *testing.T) {
		got := Apply(activities, Filter{})
		require.Len(t, got, 4)
		assert.Equal(t, []int{2, 4, 1, 3}, []int{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
	})

	t.Run("by type", func(t *testing.T) {
		got := Apply(activities, Filter{Type: TypeWorkBased})
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		got := Apply(activities, Filter{Status: StatusRejected})
		require.Len(t, got, 1)
		assert.Equal(t, 3, got[0].ID)
	})

	t.Run("by year", func(t *testing.T) {
		got := Apply(activities, Filter{Year: 2025})
		require.Len(t, got, 1)
		assert.Equal(t, 3, got[0].ID)
	})

	t.Run("search matches title and description, case-insensitive", func(t *testing.T) {
		byTitle := Apply(activities, Filter{Search: "MENTORING"})
		require.Len(t, byTitle, 1)
		assert.Equal(t, 1, byTitle[0].ID)

		byDesc := Apply(activities, Filter{Search: "bridge"})
		require.Len(t, byDesc, 1)
		assert.Equal(t, 2, byDesc[0].ID)
	})

	t.Run("filters combine", func(t *testing.T) {
		got := Apply(activities, Filter{Status: StatusApproved, Year: 2026, Search: "seminar"})
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].ID)
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		in := sampleActivities()
		_ = Apply(in, Filter{})
		assert.Equal(t, 1, in[0].ID)
	})
}

func TestSortNewestFirst(t *testing.T) {
	activities := sampleActivities()
	SortNewestFirst(activities)

	// Same completion date breaks ties on creation time, newest first.
	assert.Equal(t, 2, activities[0].ID)
	assert.Equal(t, 4, activities[1].ID)
	assert.Equal(t, 1, activities[2].ID)
	assert.Equal(t, 3, activities[3].ID)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleActivities())

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 13, stats.ApprovedPDUs, "rejected activities contribute no PDUs")
	assert.Equal(t, 326, stats.TotalHours, "hours count everything shown")
	assert.Equal(t, 1, stats.Rejected)
}

func TestActivityYear(t *testing.T) {
	assert.Equal(t, 2026, Activity{DateCompleted: "2026-05-02"}.Year())
	assert.Equal(t, 0, Activity{DateCompleted: "not-a-date"}.Year())
	assert.Equal(t, 0, Activity{}.Year())
}

func TestActivityTypes(t *testing.T) {
	types := ActivityTypes()
	require.Len(t, types, 7)
	for _, ty := range types {
		assert.True(t, ty.Valid(), "type %s should be valid", ty)
		assert.NotEqual(t, string(ty), ty.Label(), "type %s should have a display label", ty)
	}
	assert.False(t, ActivityType("NOT_A_TYPE").Valid())
}
