// Package ingest decodes the CSV feeds for vessels, cargos, and contracts.
// Rows that fail validation are dropped and counted rather than failing the
// whole upload; upstream exports routinely ship partial rows.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lngsched/internal/model"
)

// DecodeVessels parses a vessels CSV export. Returns the valid vessels and
// the number of dropped rows.
func DecodeVessels(r io.Reader) ([]model.Vessel, int, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.Vessel, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		v := model.Vessel{
			VesselID:        row["vessel_id"],
			CurrentLocation: row["current_location"],
			Status:          row["status"],
			LastUpdate:      row["last_update"],
			AssignedCargo:   row["assignedCargo"],
			ETA:             row["eta"],
		}
		ok := true
		if v.Speed, err = parseFloat(row["speed"]); err != nil {
			ok = false
		}
		if v.CostPerDay, err = parseFloat(row["cost_per_day"]); err != nil {
			ok = false
		}
		if dh := row["delay_hours"]; dh != "" {
			if v.DelayHours, err = strconv.Atoi(dh); err != nil {
				ok = false
			}
		}
		if !ok || v.Validate() != nil {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped, nil
}

// DecodeCargos parses a cargos CSV export.
func DecodeCargos(r io.Reader) ([]model.Cargo, int, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.Cargo, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		c := model.Cargo{
			CargoID:     row["cargo_id"],
			Origin:      row["origin"],
			Destination: row["destination"],
			WindowStart: row["window_start"],
			WindowEnd:   row["window_end"],
		}
		if c.Volume, err = parseFloat(row["volume"]); err != nil || c.Validate() != nil {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped, nil
}

// DecodeContracts parses a contracts CSV export.
func DecodeContracts(r io.Reader) ([]model.Contract, int, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.Contract, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		c := model.Contract{CargoID: row["cargo_id"]}
		ok := true
		if c.DeliveryPricePerTon, err = parseFloat(row["delivery_price_per_ton"]); err != nil {
			ok = false
		}
		if c.PenaltyPerDay, err = parseFloat(row["penalty_per_day"]); err != nil {
			ok = false
		}
		if !ok || c.Validate() != nil {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped, nil
}

// EncodeVessels writes the enriched fleet back out in the upstream column
// order, so the export can round-trip as the next run's input.
func EncodeVessels(w io.Writer, vessels []model.Vessel) error {
	cw := csv.NewWriter(w)
	header := []string{"vessel_id", "speed", "cost_per_day", "current_location", "status", "delay_hours", "last_update", "assignedCargo", "eta"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, v := range vessels {
		rec := []string{
			v.VesselID,
			formatFloat(v.Speed),
			formatFloat(v.CostPerDay),
			v.CurrentLocation,
			v.Status,
			strconv.Itoa(v.DelayHours),
			v.LastUpdate,
			v.AssignedCargo,
			v.ETA,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRows reads a header row plus data rows into maps keyed by column name.
// Short rows are tolerated; missing cells come back empty.
func readRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
