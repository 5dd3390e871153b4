package model

import "fmt"

// Validate checks the engine preconditions for a vessel record. Speed must be
// strictly positive so transit estimates never divide by zero.
func (v Vessel) Validate() error {
	if v.VesselID == "" {
		return fmt.Errorf("vessel_id is required")
	}
	if v.Speed <= 0 {
		return fmt.Errorf("vessel %s: speed must be > 0", v.VesselID)
	}
	if v.CostPerDay < 0 {
		return fmt.Errorf("vessel %s: cost_per_day must be >= 0", v.VesselID)
	}
	return nil
}

// Validate checks the required cargo fields. window_start is optional;
// window_end is required for delay computation but its format is checked
// later, during enrichment.
func (c Cargo) Validate() error {
	if c.CargoID == "" {
		return fmt.Errorf("cargo_id is required")
	}
	if c.Origin == "" {
		return fmt.Errorf("cargo %s: origin is required", c.CargoID)
	}
	if c.Destination == "" {
		return fmt.Errorf("cargo %s: destination is required", c.CargoID)
	}
	if c.WindowEnd == "" {
		return fmt.Errorf("cargo %s: window_end is required", c.CargoID)
	}
	if c.Volume <= 0 {
		return fmt.Errorf("cargo %s: volume must be > 0", c.CargoID)
	}
	return nil
}

// Validate checks a contract row.
func (c Contract) Validate() error {
	if c.CargoID == "" {
		return fmt.Errorf("cargo_id is required")
	}
	if c.DeliveryPricePerTon < 0 {
		return fmt.Errorf("contract %s: delivery_price_per_ton must be >= 0", c.CargoID)
	}
	return nil
}
