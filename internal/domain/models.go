// Package domain defines the persistence models for users and bribe reports.
// These types are mapped with GORM and form the core data layer of the
// reporting application.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// UnknownOfficial is stored when the reporter leaves the official's name blank.
	UnknownOfficial = "*UNKNOWN"
	// MaxDescriptionLen caps report descriptions, counted in runes.
	MaxDescriptionLen = 3000
	// DateLayout is the wire format for incident dates.
	DateLayout = "2006-01-02"
	// MinUsernameLen and MaxUsernameLen bound pseudonymous usernames.
	MinUsernameLen = 3
	MaxUsernameLen = 20
)

// User is a pseudonymous reporter. The ID is issued by the identity provider
// at sign-up; the username is the only public handle.
//
// Fields:
//   - ID: provider-issued identifier (UUID text).
//   - Username: 3-20 ASCII alphanumerics, unique.
//   - Reports: reports owned by the user (never loaded implicitly). The
//     foreign key is declared here, so deleting a user removes their reports.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Username  string    `json:"username"   gorm:"type:varchar(20);not null;uniqueIndex:ux_users_username"`
	CreatedAt time.Time `json:"created_at"`

	Reports []BribeReport `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// BribeReport is a single citizen report. BribeID is the tracking code handed
// back to the reporter and doubles as the primary key, so the commit-time
// unique constraint is what guarantees code uniqueness.
//
// Column names follow the established schema (ofcl_name, dept, bribe_amt,
// pin_code, state_ut, descr, doi) so existing data remains readable.
type BribeReport struct {
	BribeID      string                      `json:"bribe_id"       gorm:"column:bribe_id;type:varchar(32);primaryKey"`
	UserID       string                      `json:"-"              gorm:"column:user_id;type:varchar(64);not null;index:idx_bribes_user"`
	OfficialName string                      `json:"official_name"  gorm:"column:ofcl_name;type:varchar(255);not null;default:'*UNKNOWN'"`
	Department   string                      `json:"department"     gorm:"column:dept;type:varchar(255);not null"`
	Amount       int64                       `json:"amount"         gorm:"column:bribe_amt;not null;index:idx_bribes_amount"`
	PinCode      *string                     `json:"pin_code"       gorm:"column:pin_code;type:varchar(12)"`
	State        string                      `json:"state"          gorm:"column:state_ut;type:varchar(100);not null"`
	District     string                      `json:"district"       gorm:"column:district;type:varchar(100);not null"`
	Description  string                      `json:"description"    gorm:"column:descr;type:varchar(3000);not null"`
	IncidentDate *time.Time                  `json:"-"              gorm:"column:doi;type:date"`
	EvidenceURLs datatypes.JSONSlice[string] `json:"evidence_urls"  gorm:"column:evidence_urls"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`

	// User is the report owner. Preloaded by the tracking queries so the
	// owner's username can be shown next to each report.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID"`
}

// TableName returns the database table name for BribeReport.
func (BribeReport) TableName() string { return "bribes" }

// DateString renders the incident date as YYYY-MM-DD, or "" when unset.
func (r BribeReport) DateString() string {
	if r.IncidentDate == nil {
		return ""
	}
	return r.IncidentDate.Format(DateLayout)
}
