package validation

import (
	"fmt"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// visitorStrategy: sponsored visits with a soft stay cap that only warns.
type visitorStrategy struct{}

func (visitorStrategy) Validate(req types.EntryRequest, c Context) Result {
	limit := c.Policy.VisitorStayWarning
	if limit > 0 && req.ExpectedStay > limit {
		return accepted(limit, types.Finding{
			Severity: types.SeverityWarning,
			Code:     types.ReasonStayOverThreshold,
			Message:  fmt.Sprintf("declared stay %s exceeds visitor threshold %s", req.ExpectedStay, limit),
		})
	}
	return accepted(limit)
}
