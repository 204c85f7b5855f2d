package validation

import (
	"strings"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// requiredFields lists the references each category must carry.
var requiredFields = map[types.Category][]field{
	types.CategoryVisitor:    {fieldHost},
	types.CategoryContractor: {fieldCompany},
	types.CategorySupplier:   {fieldVehicle},
}

type field int

const (
	fieldHost field = iota
	fieldCompany
	fieldVehicle
)

// Normalize trims every free-text field of the request and puts the
// identity key in canonical form.
func Normalize(req types.EntryRequest) types.EntryRequest {
	req.Identity.Key = types.CanonicalKey(req.Identity.Key)
	req.Identity.Name = strings.TrimSpace(req.Identity.Name)
	if c, ok := types.ParseCategory(string(req.Identity.Category)); ok {
		req.Identity.Category = c
	}
	req.HostRef = strings.TrimSpace(req.HostRef)
	req.CompanyRef = strings.TrimSpace(req.CompanyRef)
	req.VehicleRef = strings.TrimSpace(req.VehicleRef)
	return req
}

// CheckCommon validates a normalised request: well-formed identity, known
// category, sane stay and the category's required references. A non-empty
// result means the input is malformed.
func CheckCommon(req types.EntryRequest) []types.Reason {
	var reasons []types.Reason

	if req.Identity.Key == "" {
		reasons = append(reasons, types.Reason{Code: types.ReasonMissingIdentityKey, Message: "identity key is required"})
	}
	if req.Identity.Name == "" {
		reasons = append(reasons, types.Reason{Code: types.ReasonMissingName, Message: "identity name is required"})
	}
	if req.ExpectedStay < 0 {
		reasons = append(reasons, types.Reason{Code: types.ReasonNegativeStay, Message: "expected stay cannot be negative"})
	}

	fields, ok := requiredFields[req.Identity.Category]
	if !ok {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonUnknownCategory,
			Message: "unknown category " + string(req.Identity.Category),
		})
		return reasons
	}

	for _, f := range fields {
		switch f {
		case fieldHost:
			if req.HostRef == "" {
				reasons = append(reasons, types.Reason{Code: types.ReasonMissingHost, Message: "visitors need a sponsoring host"})
			}
		case fieldCompany:
			if req.CompanyRef == "" {
				reasons = append(reasons, types.Reason{Code: types.ReasonMissingCompany, Message: "contractors need a company reference"})
			}
		case fieldVehicle:
			if req.VehicleRef == "" {
				reasons = append(reasons, types.Reason{Code: types.ReasonMissingVehicle, Message: "suppliers need a delivery vehicle reference"})
			}
		}
	}

	return reasons
}
