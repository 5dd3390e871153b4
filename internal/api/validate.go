package api

import (
	"fmt"

	"lngsched/internal/model"
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	seen := map[string]struct{}{}
	for _, v := range req.Vessels {
		if v.VesselID == "" {
			continue
		}
		if _, dup := seen[v.VesselID]; dup {
			return fmt.Errorf("duplicate vessel_id: %s", v.VesselID)
		}
		seen[v.VesselID] = struct{}{}
	}
	seen = map[string]struct{}{}
	for _, c := range req.Cargos {
		if c.CargoID == "" {
			continue
		}
		if _, dup := seen[c.CargoID]; dup {
			return fmt.Errorf("duplicate cargo_id: %s", c.CargoID)
		}
		seen[c.CargoID] = struct{}{}
	}
	return nil
}
