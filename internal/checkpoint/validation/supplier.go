package validation

import "github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"

// supplierStrategy: the delivery vehicle is screened against the blacklist
// independently of the driver.
type supplierStrategy struct{}

func (supplierStrategy) Validate(req types.EntryRequest, c Context) Result {
	if len(c.VehicleBlocks) == 0 {
		return accepted(0)
	}
	reasons := make([]types.Reason, 0, len(c.VehicleBlocks))
	for _, b := range c.VehicleBlocks {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonVehicleBlacklisted,
			Message: "vehicle " + req.VehicleRef + " is blacklisted: " + b.Reason,
			Ref:     b.ID,
		})
	}
	return rejected(reasons...)
}
