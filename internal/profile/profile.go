// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package profile holds the engineer compliance record fetched from the
// remote API and the operations that read and update it.
package profile

import "time"

// Profile is the engineer compliance record. License status and the
// remaining-PDU counter are computed server-side and treated as read-only.
type Profile struct {
	ID                 int       `json:"id"`
	EngineerID         int       `json:"engineer_id"`
	EngineerEmail      string    `json:"engineer_email"`
	EngineerName       string    `json:"engineer_name"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	RegistrationNumber string    `json:"ebk_registration_number"`
	Specialization     string    `json:"engineering_specialization"`
	PhoneNumber        string    `json:"phone_number"`
	NationalID         string    `json:"national_id"`
	LicenseExpiryDate  string    `json:"license_expiry_date"` // date-only, YYYY-MM-DD
	LicenseStatus      string    `json:"license_status"`
	PDUUnitsEarned     int       `json:"pdu_units_earned"`
	PDUUnitsRequired   int       `json:"pdu_units_required"`
	PDUUnitsRemaining  int       `json:"pdu_units_remaining"`
	ProfilePhotoURL    string    `json:"profile_photo_url"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProgressPercent returns renewal progress as a whole percentage,
// clamped to [0, 100]. A zero requirement reads as complete.
func (p Profile) ProgressPercent() int {
	if p.PDUUnitsRequired <= 0 {
		return 100
	}
	pct := p.PDUUnitsEarned * 100 / p.PDUUnitsRequired
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Update is a partial profile update. Nil fields are omitted from the
// payload and left unchanged server-side.
type Update struct {
	FirstName          *string `json:"first_name,omitempty"`
	LastName           *string `json:"last_name,omitempty"`
	RegistrationNumber *string `json:"ebk_registration_number,omitempty"`
	Specialization     *string `json:"engineering_specialization,omitempty"`
	PhoneNumber        *string `json:"phone_number,omitempty"`
	NationalID         *string `json:"national_id,omitempty"`
	LicenseExpiryDate  *string `json:"license_expiry_date,omitempty"`
}
