// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package cpd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/samber/oops"

	"github.com/procomply/procomply/internal/api"
)

// API paths owned by the CPD store.
const (
	pathActivities = "/compliance/cpd-activities/"
	pathSummary    = "/compliance/cpd-summary/"
	pathReport     = "/compliance/cpd-report/"
)

// FlexInt decodes a JSON number or a numeric string. The summary endpoint
// echoes the year query parameter back without converting it, so both
// shapes occur on the wire.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, convErr := n.Int64()
		if convErr != nil {
			return fmt.Errorf("parsing %q as integer: %w", n.String(), convErr)
		}
		*f = FlexInt(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value is neither number nor string: %s", data)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parsing %q as integer: %w", s, err)
	}
	*f = FlexInt(v)
	return nil
}

// CategoryBreakdown is one category's slice of an annual summary.
type CategoryBreakdown struct {
	Earned    int `json:"earned"`
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// Summary is the annual PDU summary computed by the backend.
type Summary struct {
	Year                FlexInt                            `json:"year"`
	TotalPDUsEarned     int                                `json:"total_pdus_earned"`
	TotalPDUsRequired   int                                `json:"total_pdus_required"`
	TotalPDUsRemaining  int                                `json:"total_pdus_remaining"`
	BreakdownByCategory map[ActivityType]CategoryBreakdown `json:"breakdown_by_category"`
}

// ProgressPercent returns annual progress as a whole percentage, clamped
// to [0, 100].
func (s Summary) ProgressPercent() int {
	if s.TotalPDUsRequired <= 0 {
		return 100
	}
	pct := s.TotalPDUsEarned * 100 / s.TotalPDUsRequired
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// NewActivity is the payload for logging a CPD activity.
type NewActivity struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Type          ActivityType `json:"activity_type"`
	DateCompleted string       `json:"date_completed"` // YYYY-MM-DD
	HoursSpent    int          `json:"hours_spent"`
}

// formFields flattens the payload for a multipart submission.
func (n NewActivity) formFields() map[string]string {
	return map[string]string{
		"title":          n.Title,
		"description":    n.Description,
		"activity_type":  string(n.Type),
		"date_completed": n.DateCompleted,
		"hours_spent":    strconv.Itoa(n.HoursSpent),
	}
}

// State is a consistent copy of the store at one instant.
type State struct {
	Activities []Activity
	Summary    *Summary
	Loading    bool
	LastError  string
}

// Store holds the engineer's CPD activities and annual summary. Like the
// profile store it relies on the shared API client for request signing.
// Methods are safe for concurrent use.
type Store struct {
	client *api.Client
	logger *slog.Logger

	mu         sync.Mutex
	activities []Activity
	summary    *Summary
	loading    bool
	lastErr    string
	fetchErr   error
	inflight   chan struct{}
}

// NewStore creates an empty CPD store.
func NewStore(client *api.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// State returns a consistent copy of the current store state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Loading: s.loading, LastError: s.lastErr}
	st.Activities = make([]Activity, len(s.activities))
	copy(st.Activities, s.activities)
	if s.summary != nil {
		sum := *s.summary
		st.Summary = &sum
	}
	return st
}

// Fetch retrieves the engineer's activity list. Rapid concurrent calls are
// coalesced into one network request.
func (s *Store) Fetch(ctx context.Context) ([]Activity, error) {
	s.mu.Lock()
	if ch := s.inflight; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, oops.Code(api.CodeTransport).Wrapf(ctx.Err(), "waiting for in-flight fetch")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fetchErr != nil {
			return nil, s.fetchErr
		}
		out := make([]Activity, len(s.activities))
		copy(out, s.activities)
		return out, nil
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	var fetched []Activity
	err := s.client.Get(ctx, pathActivities, &fetched)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.inflight = nil
	close(ch)

	if err != nil {
		s.lastErr = api.UserMessage(err)
		s.fetchErr = err
		return nil, err
	}
	SortNewestFirst(fetched)
	s.activities = fetched
	s.fetchErr = nil
	out := make([]Activity, len(fetched))
	copy(out, fetched)
	return out, nil
}

// Create logs a new activity. A non-nil document is submitted as a
// multipart form; otherwise the payload goes as plain JSON. On success the
// created activity (with its server-assigned award and status) is merged
// into the cached list.
func (s *Store) Create(ctx context.Context, activity NewActivity, document *api.FileAttachment) (*Activity, error) {
	var created Activity
	var err error
	if document != nil {
		err = s.client.PostMultipart(ctx, pathActivities, activity.formFields(), document, &created)
	} else {
		err = s.client.Post(ctx, pathActivities, activity, &created)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = api.UserMessage(err)
		return nil, err
	}
	s.activities = append([]Activity{created}, s.activities...)
	SortNewestFirst(s.activities)
	s.lastErr = ""
	out := created
	return &out, nil
}

// Get retrieves a single activity by ID. Misses surface api.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int) (*Activity, error) {
	var activity Activity
	path := fmt.Sprintf("%s%d/", pathActivities, id)
	if err := s.client.Get(ctx, path, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// FetchSummary retrieves the annual PDU summary for year.
func (s *Store) FetchSummary(ctx context.Context, year int) (*Summary, error) {
	var summary Summary
	path := fmt.Sprintf("%s?year=%d", pathSummary, year)
	err := s.client.Get(ctx, path, &summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = api.UserMessage(err)
		return nil, err
	}
	s.summary = &summary
	s.lastErr = ""
	out := summary
	return &out, nil
}

// DownloadReport streams the PDF compliance report for year into w.
func (s *Store) DownloadReport(ctx context.Context, year int, w io.Writer) error {
	path := fmt.Sprintf("%s?year=%d", pathReport, year)
	if err := s.client.Download(ctx, path, w); err != nil {
		s.mu.Lock()
		s.lastErr = api.UserMessage(err)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Clear drops all cached state. Wired to session logout at the
// composition root.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = nil
	s.summary = nil
	s.lastErr = ""
	s.fetchErr = nil
}
