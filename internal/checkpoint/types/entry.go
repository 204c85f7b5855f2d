package types

import "time"

// EntryState is the lifecycle state of a single visit.
type EntryState string

const (
	StateEntered    EntryState = "entered"
	StateInPremises EntryState = "in_premises"
	StateExited     EntryState = "exited"
)

// Severity of a validation finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityBlock   Severity = "block"
)

// Finding is a warning or block produced while validating an entry.
// Accepted records only ever carry warnings.
type Finding struct {
	Severity Severity   `json:"severity"`
	Code     ReasonCode `json:"code"`
	Message  string     `json:"message"`
}

// EntryRequest is what the operator submits at the checkpoint.
type EntryRequest struct {
	Identity Identity `json:"identity"`

	// HostRef is the sponsoring employee for visitors.
	HostRef string `json:"host_ref,omitempty"`
	// CompanyRef is the contracting company for contractors (optional for
	// suppliers).
	CompanyRef string `json:"company_ref,omitempty"`
	// VehicleRef is the delivery vehicle plate for suppliers.
	VehicleRef string `json:"vehicle_ref,omitempty"`

	// ExpectedStay is the declared duration of the visit. Zero means not
	// declared.
	ExpectedStay time.Duration `json:"expected_stay,omitempty"`

	// RequestedAt overrides the evaluation time; zero means now.
	RequestedAt time.Time `json:"requested_at,omitempty"`
}

// EntryRecord is one physical visit. Records are never deleted; once
// Exited they are read-only history.
type EntryRecord struct {
	ID       string     `json:"id"`
	Identity Identity   `json:"identity"`
	Category Category   `json:"category"`
	State    EntryState `json:"state"`

	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`

	// BadgeCode is the badge issued for this visit, empty until issued.
	BadgeCode string `json:"badge_code,omitempty"`

	HostRef    string `json:"host_ref,omitempty"`
	CompanyRef string `json:"company_ref,omitempty"`
	VehicleRef string `json:"vehicle_ref,omitempty"`

	ExpectedStay time.Duration `json:"expected_stay,omitempty"`
	// StayLimit is the hard cap derived at acceptance (contractor
	// authorization) or the soft visitor threshold. Zero means unlimited.
	StayLimit time.Duration `json:"stay_limit,omitempty"`

	Findings []Finding `json:"findings,omitempty"`

	// Operator is the session actor that admitted the visit.
	Operator  string    `json:"operator"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (r EntryRecord) Clone() EntryRecord {
	out := r
	if r.ExitedAt != nil {
		t := *r.ExitedAt
		out.ExitedAt = &t
	}
	if r.Findings != nil {
		out.Findings = append([]Finding(nil), r.Findings...)
	}
	return out
}
