package opt

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lngsched/internal/model"
	"lngsched/internal/pricefeed"
)

// PriceSource is the slice of the price resolver needed by a run. Lookups
// never fail; degraded prices are reported through Price.Live.
type PriceSource interface {
	PriceFor(ctx context.Context, port string) pricefeed.Price
}

// AlertRules drives banner generation.
type AlertRules struct {
	OpportunityThreshold float64 // spot price at or above this raises an opportunity
	WarningPort          string  // destination watched for long-haul disruption
	WarningDays          float64 // estimated transit days beyond which the warning fires
}

// Problem is the input to one optimization run.
type Problem struct {
	Vessels  []model.Vessel
	Cargos   []model.Cargo
	Prices   PriceSource
	Distance float64    // reference voyage distance; <=0 selects the default
	Alerts   AlertRules // zero value selects the defaults
	Now      time.Time  // run timestamp; zero means time.Now
}

// DefaultDistance is the nominal voyage distance used when the caller does
// not configure one.
const DefaultDistance = 3000

// DefaultAlertRules returns the built-in banner thresholds.
func DefaultAlertRules() AlertRules {
	return AlertRules{OpportunityThreshold: 13.0, WarningPort: "Busan", WarningDays: 140}
}

const etaLayout = "2006-01-02 15:04"

// Result is the outcome of one run. Schedule records and vessel snapshots are
// freshly constructed; input records are never mutated.
type Result struct {
	Schedule    []model.ScheduleRecord
	Vessels     []model.Vessel
	Banners     []model.Banner
	Diagnostics model.RunDiagnostics
	Metrics     RunMetrics
}

// RunMetrics summarizes solver behavior for the admin metrics view.
type RunMetrics struct {
	Vessels        int     `json:"vessels"`
	Cargos         int     `json:"cargos"`
	Assigned       int     `json:"assigned"`
	TotalProfit    float64 `json:"totalProfit"`
	LivePrices     int     `json:"livePrices"`
	FallbackPrices int     `json:"fallbackPrices"`
	ElapsedMs      int64   `json:"elapsedMs"`
}

// Solve assigns vessels to cargos maximizing total projected profit, then
// enriches each pairing with ETA, delay, revenue and profit, and derives the
// advisory banners. Invalid records are dropped and counted; the smaller side
// is always fully covered, even at negative profit.
func Solve(ctx context.Context, p Problem) Result {
	start := time.Now()
	if p.Distance <= 0 {
		p.Distance = DefaultDistance
	}
	if p.Alerts == (AlertRules{}) {
		p.Alerts = DefaultAlertRules()
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	res := Result{Schedule: []model.ScheduleRecord{}, Vessels: []model.Vessel{}, Banners: []model.Banner{}}

	vessels := make([]model.Vessel, 0, len(p.Vessels))
	for _, v := range p.Vessels {
		if err := v.Validate(); err != nil {
			res.Diagnostics.DroppedVessels++
			log.Printf("optimize: dropping vessel: %v", err)
			continue
		}
		vessels = append(vessels, v)
	}
	cargos := make([]model.Cargo, 0, len(p.Cargos))
	for _, c := range p.Cargos {
		if err := c.Validate(); err != nil {
			res.Diagnostics.DroppedCargos++
			log.Printf("optimize: dropping cargo: %v", err)
			continue
		}
		cargos = append(cargos, c)
	}
	res.Metrics.Vessels = len(vessels)
	res.Metrics.Cargos = len(cargos)

	// Vessel snapshots go out even when nothing can be assigned.
	for _, v := range vessels {
		res.Vessels = append(res.Vessels, v)
	}

	if len(vessels) == 0 || len(cargos) == 0 {
		res.Diagnostics.Reason = fmt.Sprintf("nothing to assign: %d vessels, %d cargos after validation", len(vessels), len(cargos))
		for _, c := range cargos {
			res.Diagnostics.UnassignedCargos = append(res.Diagnostics.UnassignedCargos, c.CargoID)
		}
		for _, v := range vessels {
			res.Diagnostics.UnassignedVessels = append(res.Diagnostics.UnassignedVessels, v.VesselID)
		}
		res.Metrics.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}

	// Resolve each destination once up front; the source caches per marker so
	// every pairing within the run prices consistently.
	prices := map[string]pricefeed.Price{}
	seenFallback := map[string]bool{}
	for _, c := range cargos {
		if _, ok := prices[c.Destination]; ok {
			continue
		}
		pr := p.Prices.PriceFor(ctx, c.Destination)
		prices[c.Destination] = pr
		if pr.Live {
			res.Metrics.LivePrices++
		} else {
			res.Metrics.FallbackPrices++
			if !seenFallback[pr.Marker] {
				seenFallback[pr.Marker] = true
				res.Diagnostics.PriceFallbacks = append(res.Diagnostics.PriceFallbacks, pr.Marker)
			}
		}
	}

	profit := func(v model.Vessel, c model.Cargo) float64 {
		return prices[c.Destination].Value*c.Volume - v.CostPerDay*(p.Distance/v.Speed)
	}

	// Orient the matrix so rows are the smaller side; Match covers every row.
	cargoFor := make([]int, len(vessels)) // vessel index -> cargo index, -1 unassigned
	for i := range cargoFor {
		cargoFor[i] = -1
	}
	if len(cargos) <= len(vessels) {
		w := make([][]float64, len(cargos))
		for i, c := range cargos {
			w[i] = make([]float64, len(vessels))
			for j, v := range vessels {
				w[i][j] = profit(v, c)
			}
		}
		for ci, vi := range Match(w) {
			cargoFor[vi] = ci
		}
	} else {
		w := make([][]float64, len(vessels))
		for i, v := range vessels {
			w[i] = make([]float64, len(cargos))
			for j, c := range cargos {
				w[i][j] = profit(v, c)
			}
		}
		for vi, ci := range Match(w) {
			cargoFor[vi] = ci
		}
		assigned := make([]bool, len(cargos))
		for _, ci := range cargoFor {
			if ci >= 0 {
				assigned[ci] = true
			}
		}
		for ci, ok := range assigned {
			if !ok {
				res.Diagnostics.UnassignedCargos = append(res.Diagnostics.UnassignedCargos, cargos[ci].CargoID)
			}
		}
	}

	optimizedAt := now.Format(time.RFC3339)
	for vi, v := range vessels {
		ci := cargoFor[vi]
		if ci < 0 {
			res.Diagnostics.UnassignedVessels = append(res.Diagnostics.UnassignedVessels, v.VesselID)
			continue
		}
		c := cargos[ci]
		price := prices[c.Destination].Value
		days := p.Distance / v.Speed
		eta := now.Add(time.Duration(days * float64(24*time.Hour)))
		delay, parsed := delayHours(c.WindowEnd, eta)
		if !parsed {
			res.Diagnostics.BadWindows = append(res.Diagnostics.BadWindows, c.CargoID)
			log.Printf("optimize: cargo %s has unparsable window_end %q, delay set to 0", c.CargoID, c.WindowEnd)
		}
		rec := model.ScheduleRecord{
			Vessel:           v.VesselID,
			Cargo:            c.CargoID,
			PickupPort:       c.Origin,
			DeliveryPort:     c.Destination,
			EstimatedDays:    round2(days),
			EstimatedRevenue: round2(price * c.Volume),
			EstimatedProfit:  round2(price*c.Volume - v.CostPerDay*days),
			DelayHours:       delay,
			Status:           "Scheduled",
			OptimizedAt:      optimizedAt,
		}
		res.Schedule = append(res.Schedule, rec)
		res.Metrics.TotalProfit += rec.EstimatedProfit

		snap := v
		snap.AssignedCargo = c.CargoID
		snap.ETA = eta.Format(etaLayout)
		snap.DelayHours = delay
		snap.LastUpdate = optimizedAt
		res.Vessels[vi] = snap
	}
	res.Metrics.Assigned = len(res.Schedule)
	res.Metrics.TotalProfit = round2(res.Metrics.TotalProfit)

	res.Banners = banners(res.Schedule, prices, p.Alerts)
	res.Metrics.ElapsedMs = time.Since(start).Milliseconds()
	return res
}

// delayHours is the signed gap between the delivery window end and the ETA,
// rounded to whole hours. A window that cannot be parsed yields zero and
// parsed==false; negative values are data, not errors.
func delayHours(windowEnd string, eta time.Time) (int, bool) {
	end, err := parseWindow(windowEnd)
	if err != nil {
		return 0, false
	}
	return int(math.Round(end.Sub(eta).Hours())), true
}

func parseWindow(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func round2(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}
