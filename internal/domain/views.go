package domain

import "github.com/samber/lo"

// TrackedReport is the read model returned by the tracking flow. It is what
// the one-time result cache stores, so it must stay JSON-serializable.
type TrackedReport struct {
	BribeID      string   `json:"bribe_id"`
	Username     string   `json:"username,omitempty"`
	OfficialName string   `json:"official_name"`
	Department   string   `json:"department"`
	Amount       int64    `json:"amount"`
	PinCode      string   `json:"pin_code,omitempty"`
	State        string   `json:"state"`
	District     string   `json:"district"`
	Description  string   `json:"description"`
	Date         *string  `json:"date"`
	Evidence     []string `json:"evidence"`
}

// NewTrackedReport projects a report (with its owner preloaded) to the
// tracking read model.
func NewTrackedReport(r BribeReport) TrackedReport {
	out := TrackedReport{
		BribeID:      r.BribeID,
		Username:     r.User.Username,
		OfficialName: r.OfficialName,
		Department:   r.Department,
		Amount:       r.Amount,
		State:        r.State,
		District:     r.District,
		Description:  r.Description,
		Evidence:     []string(r.EvidenceURLs),
	}
	if r.PinCode != nil {
		out.PinCode = *r.PinCode
	}
	if d := r.DateString(); d != "" {
		out.Date = &d
	}
	if out.Evidence == nil {
		out.Evidence = []string{}
	}
	return out
}

// NewTrackedReports maps a slice of reports in order.
func NewTrackedReports(rs []BribeReport) []TrackedReport {
	return lo.Map(rs, func(r BribeReport, _ int) TrackedReport { return NewTrackedReport(r) })
}
