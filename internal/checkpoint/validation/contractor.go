package validation

import (
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// contractorStrategy: the company must exist, be active and be inside its
// contract window; the stay is hard-capped by the company's authorization.
type contractorStrategy struct{}

func (contractorStrategy) Validate(req types.EntryRequest, c Context) Result {
	co := c.Company
	if co == nil {
		return rejected(types.Reason{
			Code:    types.ReasonUnknownCompany,
			Message: "company " + req.CompanyRef + " is not registered",
			Ref:     req.CompanyRef,
		})
	}

	var reasons []types.Reason
	if !co.Active {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonCompanyInactive,
			Message: "company " + co.Name + " is inactive",
			Ref:     co.ID,
		})
	}

	if (!co.AuthorizedFrom.IsZero() && c.Now.Before(co.AuthorizedFrom)) ||
		(!co.AuthorizedUntil.IsZero() && !c.Now.Before(co.AuthorizedUntil)) {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonOutsideContract,
			Message: "company " + co.Name + " has no authorization at this time",
			Ref:     co.ID,
		})
	}

	limit := authorizedStay(*co, c.Now)
	if len(reasons) == 0 && limit > 0 && req.ExpectedStay > limit {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonStayOverAuthorized,
			Message: fmt.Sprintf("declared stay %s exceeds authorized %s", req.ExpectedStay, limit),
			Ref:     co.ID,
		})
	}

	if len(reasons) > 0 {
		return rejected(reasons...)
	}
	return accepted(limit)
}

// authorizedStay is the tighter of the per-visit cap and the time left in
// the contract window. Zero means unlimited.
func authorizedStay(co types.Company, now time.Time) time.Duration {
	limit := co.MaxStay
	if !co.AuthorizedUntil.IsZero() {
		left := co.AuthorizedUntil.Sub(now)
		if limit == 0 || left < limit {
			limit = left
		}
	}
	return limit
}
