package model

import "testing"

func TestVesselValidate(t *testing.T) {
	ok := Vessel{VesselID: "V1", Speed: 20, CostPerDay: 5000}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid vessel rejected: %v", err)
	}
	bad := []Vessel{
		{Speed: 20, CostPerDay: 5000},
		{VesselID: "V1", Speed: 0, CostPerDay: 5000},
		{VesselID: "V1", Speed: -5, CostPerDay: 5000},
		{VesselID: "V1", Speed: 20, CostPerDay: -1},
	}
	for i, v := range bad {
		if err := v.Validate(); err == nil {
			t.Errorf("case %d: invalid vessel accepted: %+v", i, v)
		}
	}
}

func TestCargoValidate(t *testing.T) {
	ok := Cargo{CargoID: "C1", Origin: "X", Destination: "Y", WindowEnd: "2025-06-01", Volume: 100}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid cargo rejected: %v", err)
	}
	bad := []Cargo{
		{Origin: "X", Destination: "Y", WindowEnd: "2025-06-01", Volume: 100},
		{CargoID: "C1", Destination: "Y", WindowEnd: "2025-06-01", Volume: 100},
		{CargoID: "C1", Origin: "X", WindowEnd: "2025-06-01", Volume: 100},
		{CargoID: "C1", Origin: "X", Destination: "Y", Volume: 100},
		{CargoID: "C1", Origin: "X", Destination: "Y", WindowEnd: "2025-06-01", Volume: 0},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: invalid cargo accepted: %+v", i, c)
		}
	}
}
