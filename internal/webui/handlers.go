// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package webui

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/cpd"
	"github.com/procomply/procomply/internal/observability"
	"github.com/procomply/procomply/internal/profile"
	"github.com/procomply/procomply/internal/session"
)

// maxUploadBytes bounds multipart form parsing for document uploads.
const maxUploadBytes = 10 << 20

// Stores bundles the state the web UI renders from.
type Stores struct {
	Sessions   *session.Store
	Profiles   *profile.Store
	Activities *cpd.Store
}

type handlers struct {
	stores   Stores
	renderer *Renderer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// page builds the common layout data for the current visitor.
func (h *handlers) page(title string) Page {
	p := Page{Title: title}
	if snap := h.stores.Sessions.Snapshot(); snap.Authenticated() {
		p.Principal = snap.Principal
	}
	return p
}

func (h *handlers) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

// handleLanding serves the public landing page. Signed-in visitors go
// straight to the dashboard.
func (h *handlers) handleLanding(w http.ResponseWriter, r *http.Request) {
	if h.stores.Sessions.Snapshot().Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, "landing", h.page("Welcome"))
}

type loginForm struct {
	Email string
}

func (h *handlers) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if h.stores.Sessions.Snapshot().Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	p := h.page("Sign in")
	p.Data = loginForm{}
	if r.URL.Query().Get("registered") == "1" {
		p.Notice = "Account created. Sign in to continue."
	}
	h.renderer.Render(w, http.StatusOK, "login", p)
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if err := h.stores.Sessions.Login(r.Context(), email, password); err != nil {
		h.recordLogin("failure")
		p := h.page("Sign in")
		p.Data = loginForm{Email: email}
		p.Error = api.UserMessage(err)
		p.Fields = api.FieldErrors(err)
		status := http.StatusUnauthorized
		if api.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		h.renderer.Render(w, status, "login", p)
		return
	}

	h.recordLogin("success")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *handlers) handleRegisterForm(w http.ResponseWriter, _ *http.Request) {
	p := h.page("Register")
	p.Data = session.Registration{}
	h.renderer.Render(w, http.StatusOK, "register", p)
}

func (h *handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	reg := session.Registration{
		Email:              r.PostFormValue("email"),
		Password:           r.PostFormValue("password"),
		FirstName:          r.PostFormValue("first_name"),
		LastName:           r.PostFormValue("last_name"),
		RegistrationNumber: r.PostFormValue("ebk_registration_number"),
	}

	if _, err := h.stores.Sessions.Register(r.Context(), reg); err != nil {
		p := h.page("Register")
		reg.Password = ""
		p.Data = reg
		p.Error = api.UserMessage(err)
		p.Fields = api.FieldErrors(err)
		h.renderer.Render(w, http.StatusBadRequest, "register", p)
		return
	}

	// Registration does not establish a session; the engineer signs in.
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Sessions.Logout(); err != nil {
		h.logger.Warn("logout cleanup failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type dashboardView struct {
	Profile *profile.Profile
	Summary *cpd.Summary
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := h.page("Dashboard")
	view := dashboardView{}

	prof, err := h.stores.Profiles.Fetch(r.Context())
	if err != nil {
		p.Error = api.UserMessage(err)
	} else {
		view.Profile = prof
	}

	summary, err := h.stores.Activities.FetchSummary(r.Context(), time.Now().Year())
	if err != nil {
		if p.Error == "" {
			p.Error = api.UserMessage(err)
		}
	} else {
		view.Summary = summary
	}

	p.Data = view
	h.renderer.Render(w, http.StatusOK, "dashboard", p)
}

type profileView struct {
	Profile *profile.Profile
}

func (h *handlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := h.page("My profile")
	prof, err := h.stores.Profiles.Fetch(r.Context())
	if err != nil {
		p.Error = api.UserMessage(err)
	}
	p.Data = profileView{Profile: prof}
	h.renderer.Render(w, http.StatusOK, "profile", p)
}

// profileFormFields maps form inputs to serializer field names.
var profileFormFields = []string{
	"first_name",
	"last_name",
	"ebk_registration_number",
	"engineering_specialization",
	"phone_number",
	"national_id",
	"license_expiry_date",
}

func (h *handlers) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	var err error
	if file, header, fileErr := r.FormFile("profile_photo"); fileErr == nil {
		defer file.Close()
		fields := make(map[string]string, len(profileFormFields))
		for _, name := range profileFormFields {
			fields[name] = r.PostFormValue(name)
		}
		_, err = h.stores.Profiles.UpdateMultipart(r.Context(), fields, &api.FileAttachment{
			Field:    "profile_photo",
			Filename: header.Filename,
			Content:  file,
		})
	} else {
		update := profile.Update{
			FirstName:          formPtr(r, "first_name"),
			LastName:           formPtr(r, "last_name"),
			RegistrationNumber: formPtr(r, "ebk_registration_number"),
			Specialization:     formPtr(r, "engineering_specialization"),
			PhoneNumber:        formPtr(r, "phone_number"),
			NationalID:         formPtr(r, "national_id"),
			LicenseExpiryDate:  formPtr(r, "license_expiry_date"),
		}
		_, err = h.stores.Profiles.Update(r.Context(), update)
	}

	if err != nil {
		p := h.page("My profile")
		p.Error = api.UserMessage(err)
		p.Fields = api.FieldErrors(err)
		p.Data = profileView{Profile: h.stores.Profiles.State().Profile}
		h.renderer.Render(w, http.StatusBadRequest, "profile", p)
		return
	}

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// formPtr returns a pointer to the posted value, or nil when the field was
// left empty so the backend keeps the current value.
func formPtr(r *http.Request, name string) *string {
	v := r.PostFormValue(name)
	if v == "" {
		return nil
	}
	return &v
}

type activitiesView struct {
	Types      []cpd.ActivityType
	Filter     activityFilter
	Stats      cpd.Stats
	Activities []cpd.Activity
}

// activityFilter mirrors cpd.Filter with template-friendly field types.
type activityFilter struct {
	Type   cpd.ActivityType
	Status string
	Search string
	Year   int
}

func (h *handlers) handleActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := activityFilter{
		Type:   cpd.ActivityType(q.Get("type")),
		Status: q.Get("status"),
		Search: q.Get("q"),
	}
	if year, err := strconv.Atoi(q.Get("year")); err == nil {
		filter.Year = year
	}

	p := h.page("CPD activities")
	view := activitiesView{Types: cpd.ActivityTypes(), Filter: filter}

	activities, err := h.stores.Activities.Fetch(r.Context())
	if err != nil {
		p.Error = api.UserMessage(err)
	} else {
		view.Activities = cpd.Apply(activities, cpd.Filter{
			Type:   filter.Type,
			Status: cpd.Status(filter.Status),
			Search: filter.Search,
			Year:   filter.Year,
		})
		view.Stats = cpd.ComputeStats(view.Activities)
	}

	p.Data = view
	h.renderer.Render(w, http.StatusOK, "activities", p)
}

type activityNewView struct {
	Types []cpd.ActivityType
	Form  cpd.NewActivity
}

func (h *handlers) handleActivityNewForm(w http.ResponseWriter, _ *http.Request) {
	p := h.page("Log activity")
	p.Data = activityNewView{Types: cpd.ActivityTypes()}
	h.renderer.Render(w, http.StatusOK, "activity_new", p)
}

func (h *handlers) handleActivityCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	form := cpd.NewActivity{
		Title:         r.PostFormValue("title"),
		Description:   r.PostFormValue("description"),
		Type:          cpd.ActivityType(r.PostFormValue("activity_type")),
		DateCompleted: r.PostFormValue("date_completed"),
	}
	if hours, err := strconv.Atoi(r.PostFormValue("hours_spent")); err == nil {
		form.HoursSpent = hours
	}

	var document *api.FileAttachment
	if file, header, err := r.FormFile("supporting_document"); err == nil {
		defer file.Close()
		document = &api.FileAttachment{
			Field:    "supporting_document",
			Filename: header.Filename,
			Content:  file,
		}
	}

	if _, err := h.stores.Activities.Create(r.Context(), form, document); err != nil {
		p := h.page("Log activity")
		p.Error = api.UserMessage(err)
		p.Fields = api.FieldErrors(err)
		p.Data = activityNewView{Types: cpd.ActivityTypes(), Form: form}
		h.renderer.Render(w, http.StatusBadRequest, "activity_new", p)
		return
	}

	http.Redirect(w, r, "/activities", http.StatusSeeOther)
}

type activityDetailView struct {
	Activity *cpd.Activity
}

func (h *handlers) handleActivityDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.renderNotFound(w)
		return
	}

	activity, err := h.stores.Activities.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			h.renderNotFound(w)
			return
		}
		p := h.page("Activity")
		p.Error = api.UserMessage(err)
		p.Data = activityDetailView{}
		h.renderer.Render(w, http.StatusBadGateway, "activity_detail", p)
		return
	}

	p := h.page(activity.Title)
	p.Data = activityDetailView{Activity: activity}
	h.renderer.Render(w, http.StatusOK, "activity_detail", p)
}

type reportsView struct {
	Year int
}

func (h *handlers) handleReports(w http.ResponseWriter, _ *http.Request) {
	p := h.page("Reports")
	p.Data = reportsView{Year: time.Now().Year()}
	h.renderer.Render(w, http.StatusOK, "reports", p)
}

func (h *handlers) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		year = time.Now().Year()
	}

	// Buffer the download so a backend failure can still produce an error
	// page instead of a truncated PDF.
	var buf bytes.Buffer
	if err := h.stores.Activities.DownloadReport(r.Context(), year, &buf); err != nil {
		p := h.page("Reports")
		p.Error = api.UserMessage(err)
		p.Data = reportsView{Year: year}
		h.renderer.Render(w, http.StatusBadGateway, "reports", p)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="cpd-report-`+strconv.Itoa(year)+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (h *handlers) renderNotFound(w http.ResponseWriter) {
	h.renderer.Render(w, http.StatusNotFound, "notfound", h.page("Not found"))
}

func (h *handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}
