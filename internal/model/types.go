package model

// Core domain types for the lifting scheduler.

// Vessel is one unit of the fleet. Speed and CostPerDay drive the profit
// model; the remaining fields are carried through from the upstream feed and
// filled in by schedule enrichment.
type Vessel struct {
	VesselID        string  `json:"vessel_id"`
	Speed           float64 `json:"speed"`
	CostPerDay      float64 `json:"cost_per_day"`
	CurrentLocation string  `json:"current_location,omitempty"`
	Status          string  `json:"status,omitempty"`
	DelayHours      int     `json:"delay_hours"`
	LastUpdate      string  `json:"last_update,omitempty"`
	AssignedCargo   string  `json:"assignedCargo,omitempty"`
	ETA             string  `json:"eta,omitempty"`
}

// Cargo is a shipment awaiting a vessel. Immutable once loaded for a run.
type Cargo struct {
	CargoID     string  `json:"cargo_id"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	WindowStart string  `json:"window_start,omitempty"`
	WindowEnd   string  `json:"window_end"`
	Volume      float64 `json:"volume"`
}

// Contract holds negotiated terms for a cargo. Referenced by downstream
// consumers; the engine prices revenue off the resolved spot price instead.
type Contract struct {
	CargoID             string  `json:"cargo_id"`
	DeliveryPricePerTon float64 `json:"delivery_price_per_ton"`
	PenaltyPerDay       float64 `json:"penalty_per_day"`
}

// ScheduleRecord is the per-assignment output of one optimization run.
type ScheduleRecord struct {
	Vessel           string  `json:"vessel"`
	Cargo            string  `json:"cargo"`
	PickupPort       string  `json:"pickup_port"`
	DeliveryPort     string  `json:"delivery_port"`
	EstimatedDays    float64 `json:"estimated_days"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
	EstimatedProfit  float64 `json:"estimated_profit"`
	DelayHours       int     `json:"delay_hours"`
	Status           string  `json:"status"`
	OptimizedAt      string  `json:"optimized_at"`
}

// Banner is an advisory surfaced next to the schedule.
type Banner struct {
	Type    string `json:"type"` // opportunity | warning
	Message string `json:"message"`
}

// OptimizeRequest optionally carries inline fleet data. When a side is empty
// the stored set is used.
type OptimizeRequest struct {
	Vessels []Vessel `json:"vessels,omitempty"`
	Cargos  []Cargo  `json:"cargos,omitempty"`
}

// RunDiagnostics reports the non-fatal degradations of a run.
type RunDiagnostics struct {
	DroppedVessels    int      `json:"droppedVessels,omitempty"`
	DroppedCargos     int      `json:"droppedCargos,omitempty"`
	PriceFallbacks    []string `json:"priceFallbacks,omitempty"` // markers served from the static table
	UnassignedVessels []string `json:"unassignedVessels,omitempty"`
	UnassignedCargos  []string `json:"unassignedCargos,omitempty"`
	BadWindows        []string `json:"badWindows,omitempty"` // cargo ids with unparsable window_end
	Reason            string   `json:"reason,omitempty"`     // set when the run is empty or partial
}

// OptimizationRun is the persisted outcome of one optimize call.
type OptimizationRun struct {
	ID          string           `json:"id"`
	RequestedAt string           `json:"requestedAt"`
	Schedule    []ScheduleRecord `json:"schedule"`
	Vessels     []Vessel         `json:"vessels"`
	Banners     []Banner         `json:"banners"`
	Diagnostics RunDiagnostics   `json:"diagnostics"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID          string `json:"id"`
	RequestedAt string `json:"requestedAt"`
	Assignments int    `json:"assignments"`
	Banners     int    `json:"banners"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
