// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procomply/procomply/internal/config"
	"github.com/procomply/procomply/internal/session"
)

const loginOKBody = `{
	"message": "Login successful",
	"token": {"refresh": "r-token", "access": "a-token"},
	"engineer": {
		"email": "e@x.com",
		"first_name": "Ada",
		"last_name": "Wanjiru",
		"ebk_registration_number": "EBK/2020/1234"
	}
}`

const profileOKBody = `{
	"id": 1,
	"engineer_email": "e@x.com",
	"engineer_name": "Ada Wanjiru",
	"first_name": "Ada",
	"last_name": "Wanjiru",
	"ebk_registration_number": "EBK/2020/1234",
	"license_status": "Valid",
	"pdu_units_earned": 30,
	"pdu_units_required": 60,
	"pdu_units_remaining": 30
}`

// stubBackend covers the API routes the CLI commands exercise.
func stubBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		if !bytes.Contains(body.Bytes(), []byte("secret")) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(loginOKBody))
	})
	mux.HandleFunc("GET /accounts/profile/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Authentication credentials were not provided."}`))
			return
		}
		_, _ = w.Write([]byte(profileOKBody))
	})
	mux.HandleFunc("GET /compliance/cpd-activities/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "title": "Mentoring graduate engineers", "activity_type": "PARTICIPATION", "date_completed": "2026-03-10", "hours_spent": 4, "pdu_units_awarded": 4, "status": "APPROVED"}]`))
	})
	mux.HandleFunc("POST /compliance/cpd-activities/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 2, "title": "Bridge load assessment training", "activity_type": "EBK_ORGANIZED", "date_completed": "2026-05-02", "hours_spent": 6, "pdu_units_awarded": 6, "status": "APPROVED"}`))
	})
	mux.HandleFunc("GET /compliance/cpd-summary/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"year": "2026", "total_pdus_earned": 30, "total_pdus_required": 50, "total_pdus_remaining": 20, "breakdown_by_category": {"PARTICIPATION": {"earned": 4, "remaining": 1, "limit": 5}}}`))
	})
	mux.HandleFunc("GET /compliance/cpd-report/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 report"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testDeps wires commands against the stub backend with an isolated vault.
func testDeps(t *testing.T, backendURL string) (*AppDeps, *session.Vault) {
	t.Helper()
	vault := session.NewVault(t.TempDir())
	cfg := config.Default()
	cfg.API.BaseURL = backendURL
	cfg.Log.Format = "text"
	cfg.Log.Level = "error"
	return &AppDeps{
		ConfigLoader: func() (*config.Config, error) { return &cfg, nil },
		VaultFactory: func() *session.Vault { return vault },
	}, vault
}

// testCmd returns a command shell with captured output and a live context.
func testCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func TestLoginCommand(t *testing.T) {
	backend := stubBackend(t)

	t.Run("success stores token", func(t *testing.T) {
		deps, vault := testDeps(t, backend.URL)
		cmd, buf := testCmd(t)

		err := runLoginWithDeps(cmd, &loginConfig{email: "e@x.com", password: "secret"}, deps)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Signed in as Ada Wanjiru <e@x.com>")

		token, err := vault.Token()
		require.NoError(t, err)
		assert.Equal(t, "a-token", token)
	})

	t.Run("invalid credentials leave vault empty", func(t *testing.T) {
		deps, vault := testDeps(t, backend.URL)
		cmd, _ := testCmd(t)

		err := runLoginWithDeps(cmd, &loginConfig{email: "e@x.com", password: "wrong"}, deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid credentials")

		token, err := vault.Token()
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("prompts for missing credentials", func(t *testing.T) {
		deps, _ := testDeps(t, backend.URL)
		cmd, buf := testCmd(t)
		cmd.SetIn(bytes.NewBufferString("e@x.com\nsecret\n"))

		err := runLoginWithDeps(cmd, &loginConfig{}, deps)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Email: ")
		assert.Contains(t, buf.String(), "Signed in as")
	})
}

func TestLogoutCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))

	cmd, buf := testCmd(t)
	require.NoError(t, runLogoutWithDeps(cmd, deps))
	assert.Contains(t, buf.String(), "Signed out")

	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestWhoamiCommand(t *testing.T) {
	backend := stubBackend(t)

	t.Run("not signed in", func(t *testing.T) {
		deps, _ := testDeps(t, backend.URL)
		cmd, _ := testCmd(t)

		err := runWhoamiWithDeps(cmd, &whoamiConfig{}, deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "procomply login")
	})

	t.Run("signed in", func(t *testing.T) {
		deps, vault := testDeps(t, backend.URL)
		require.NoError(t, vault.Store("a-token"))
		cmd, buf := testCmd(t)

		require.NoError(t, runWhoamiWithDeps(cmd, &whoamiConfig{}, deps))
		assert.Contains(t, buf.String(), "Ada Wanjiru")
		assert.Contains(t, buf.String(), "EBK/2020/1234")
	})

	t.Run("json output", func(t *testing.T) {
		deps, vault := testDeps(t, backend.URL)
		require.NoError(t, vault.Store("a-token"))
		cmd, buf := testCmd(t)

		require.NoError(t, runWhoamiWithDeps(cmd, &whoamiConfig{jsonOutput: true}, deps))
		assert.Contains(t, buf.String(), `"email": "e@x.com"`)
	})
}

func TestProfileShowCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))
	cmd, buf := testCmd(t)

	require.NoError(t, runProfileShowWithDeps(cmd, &profileShowConfig{}, deps))
	out := buf.String()
	assert.Contains(t, out, "Ada Wanjiru")
	assert.Contains(t, out, "30 / 60 (50%)")
}

func TestCPDListCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))

	t.Run("table output", func(t *testing.T) {
		cmd, buf := testCmd(t)
		require.NoError(t, runCPDListWithDeps(cmd, &cpdListConfig{}, deps))
		assert.Contains(t, buf.String(), "Mentoring graduate engineers")
		assert.Contains(t, buf.String(), "1 activities, 4 approved PDUs, 4 hours")
	})

	t.Run("filter excludes everything", func(t *testing.T) {
		cmd, buf := testCmd(t)
		require.NoError(t, runCPDListWithDeps(cmd, &cpdListConfig{status: "REJECTED"}, deps))
		assert.Contains(t, buf.String(), "No activities match.")
	})
}

func TestCPDLogCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))

	t.Run("rejects unknown activity type", func(t *testing.T) {
		cmd, _ := testCmd(t)
		err := runCPDLogWithDeps(cmd, &cpdLogConfig{
			title:        "Seminar",
			activityType: "NOT_A_TYPE",
			date:         "2026-05-02",
			hours:        6,
		}, deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown activity type")
	})

	t.Run("approved submission reports the award", func(t *testing.T) {
		cmd, buf := testCmd(t)
		err := runCPDLogWithDeps(cmd, &cpdLogConfig{
			title:        "Bridge load assessment training",
			activityType: "EBK_ORGANIZED",
			date:         "2026-05-02",
			hours:        6,
		}, deps)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Activity #2 approved: 6 PDUs awarded")
	})

	t.Run("warns when the preview predicts rejection", func(t *testing.T) {
		cmd, buf := testCmd(t)
		// PARTICIPATION is capped at 5 PDUs per year and the stub already
		// reports 4 earned, so 6 more hours still clears the preview; 0
		// hours does not.
		err := runCPDLogWithDeps(cmd, &cpdLogConfig{
			title:        "Committee sitting",
			activityType: "PARTICIPATION",
			date:         "2026-06-01",
			hours:        0,
		}, deps)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "likely to be rejected")
	})
}

func TestCPDSummaryCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))
	cmd, buf := testCmd(t)

	require.NoError(t, runCPDSummaryWithDeps(cmd, &cpdSummaryConfig{year: 2026}, deps))
	out := buf.String()
	assert.Contains(t, out, "PDU summary for 2026: 30 earned of 50 required (60%)")
	assert.Contains(t, out, "PARTICIPATION")
}

func TestCPDReportCommand(t *testing.T) {
	backend := stubBackend(t)
	deps, vault := testDeps(t, backend.URL)
	require.NoError(t, vault.Store("a-token"))

	out := filepath.Join(t.TempDir(), "report.pdf")
	cmd, buf := testCmd(t)

	require.NoError(t, runCPDReportWithDeps(cmd, &cpdReportConfig{year: 2026, output: out}, deps))
	assert.Contains(t, buf.String(), "Report saved to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
