package types

// ReasonCode is the enumerable cause of a rejection or warning, stable
// enough for a UI to render without re-deriving policy.
type ReasonCode string

const (
	ReasonMissingIdentityKey ReasonCode = "missing_identity_key"
	ReasonMissingName        ReasonCode = "missing_name"
	ReasonUnknownCategory    ReasonCode = "unknown_category"
	ReasonCategoryMismatch   ReasonCode = "category_mismatch"
	ReasonNegativeStay       ReasonCode = "negative_stay"

	ReasonBlacklisted  ReasonCode = "blacklisted"
	ReasonLookupFailed ReasonCode = "lookup_failed"
	ReasonOpenAlert    ReasonCode = "open_alert"

	ReasonMissingHost        ReasonCode = "missing_host"
	ReasonStayOverThreshold  ReasonCode = "stay_over_threshold"
	ReasonMissingCompany     ReasonCode = "missing_company"
	ReasonUnknownCompany     ReasonCode = "unknown_company"
	ReasonCompanyInactive    ReasonCode = "company_inactive"
	ReasonOutsideContract    ReasonCode = "outside_contract_window"
	ReasonStayOverAuthorized ReasonCode = "stay_over_authorization"
	ReasonMissingVehicle     ReasonCode = "missing_vehicle"
	ReasonVehicleBlacklisted ReasonCode = "vehicle_blacklisted"
)

// Reason is one entry of an ordered rejection list. Ref points at the
// record that caused it (blacklist entry ID, company ID, alert ID).
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
	Ref     string     `json:"ref,omitempty"`
}
