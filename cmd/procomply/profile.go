// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/profile"
)

// NewProfileCmd creates the profile subcommand.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the engineer profile",
	}

	cmd.AddCommand(newProfileShowCmd())
	cmd.AddCommand(newProfileUpdateCmd())

	return cmd
}

// profileShowConfig holds configuration for profile show.
type profileShowConfig struct {
	jsonOutput bool
}

func newProfileShowCmd() *cobra.Command {
	cfg := &profileShowConfig{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the engineer profile and PDU progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfileShowWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runProfileShowWithDeps(cmd *cobra.Command, cfg *profileShowConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	prof, err := a.profiles.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(prof, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", prof.EngineerName)
	fmt.Fprintf(w, "Email:\t%s\n", prof.EngineerEmail)
	if prof.RegistrationNumber != "" {
		fmt.Fprintf(w, "EBK number:\t%s\n", prof.RegistrationNumber)
	}
	if prof.Specialization != "" {
		fmt.Fprintf(w, "Specialization:\t%s\n", prof.Specialization)
	}
	fmt.Fprintf(w, "Licence status:\t%s\n", prof.LicenseStatus)
	if prof.LicenseExpiryDate != "" {
		fmt.Fprintf(w, "Licence expires:\t%s\n", prof.LicenseExpiryDate)
	}
	fmt.Fprintf(w, "PDUs:\t%d / %d (%d%%)\n", prof.PDUUnitsEarned, prof.PDUUnitsRequired, prof.ProgressPercent())
	return w.Flush()
}

// profileUpdateConfig holds configuration for profile update.
type profileUpdateConfig struct {
	firstName          string
	lastName           string
	registrationNumber string
	specialization     string
	phoneNumber        string
	nationalID         string
	licenseExpiry      string
	photoPath          string
}

func newProfileUpdateCmd() *cobra.Command {
	cfg := &profileUpdateConfig{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		Long: `Update profile fields. Only the flags you pass are changed;
everything else keeps its current value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfileUpdateWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&cfg.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&cfg.registrationNumber, "ebk-number", "", "EBK registration number")
	cmd.Flags().StringVar(&cfg.specialization, "specialization", "", "engineering specialization")
	cmd.Flags().StringVar(&cfg.phoneNumber, "phone", "", "phone number")
	cmd.Flags().StringVar(&cfg.nationalID, "national-id", "", "national ID")
	cmd.Flags().StringVar(&cfg.licenseExpiry, "license-expiry", "", "licence expiry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.photoPath, "photo", "", "path to a profile photo to upload")

	return cmd
}

func runProfileUpdateWithDeps(cmd *cobra.Command, cfg *profileUpdateConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	// flagPtr returns a pointer only for flags the user actually set.
	flagPtr := func(name string, value *string) *string {
		if cmd.Flags().Changed(name) {
			return value
		}
		return nil
	}

	var updated *profile.Profile
	if cfg.photoPath != "" {
		file, err := os.Open(cfg.photoPath)
		if err != nil {
			return fmt.Errorf("opening photo: %w", err)
		}
		defer file.Close()

		fields := map[string]string{}
		for name, value := range map[string]string{
			"first_name":                 cfg.firstName,
			"last_name":                  cfg.lastName,
			"ebk_registration_number":    cfg.registrationNumber,
			"engineering_specialization": cfg.specialization,
			"phone_number":               cfg.phoneNumber,
			"national_id":                cfg.nationalID,
			"license_expiry_date":        cfg.licenseExpiry,
		} {
			if value != "" {
				fields[name] = value
			}
		}

		updated, err = a.profiles.UpdateMultipart(cmd.Context(), fields, &api.FileAttachment{
			Field:    "profile_photo",
			Filename: filepath.Base(cfg.photoPath),
			Content:  file,
		})
		if err != nil {
			return fmt.Errorf("%s", api.UserMessage(err))
		}
	} else {
		update := profile.Update{
			FirstName:          flagPtr("first-name", &cfg.firstName),
			LastName:           flagPtr("last-name", &cfg.lastName),
			RegistrationNumber: flagPtr("ebk-number", &cfg.registrationNumber),
			Specialization:     flagPtr("specialization", &cfg.specialization),
			PhoneNumber:        flagPtr("phone", &cfg.phoneNumber),
			NationalID:         flagPtr("national-id", &cfg.nationalID),
			LicenseExpiryDate:  flagPtr("license-expiry", &cfg.licenseExpiry),
		}
		updated, err = a.profiles.Update(cmd.Context(), update)
		if err != nil {
			if fields := api.FieldErrors(err); len(fields) > 0 {
				return fmt.Errorf("update rejected:\n%s", formatFieldErrors(fields))
			}
			return fmt.Errorf("%s", api.UserMessage(err))
		}
	}

	cmd.Printf("Profile updated for %s\n", updated.EngineerEmail)
	return nil
}
