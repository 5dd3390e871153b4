package ingest

import (
	"bytes"
	"strings"
	"testing"

	"lngsched/internal/model"
)

func TestDecodeVessels(t *testing.T) {
	in := strings.NewReader(`vessel_id,speed,cost_per_day,current_location,status,delay_hours
V1,20,5000,Ras Laffan,Idle,0
V2,10,3000,Bintulu,Idle,12
`)
	vessels, dropped, err := DecodeVessels(in)
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 0 || len(vessels) != 2 {
		t.Fatalf("want 2 vessels 0 dropped, got %d/%d", len(vessels), dropped)
	}
	if vessels[0].VesselID != "V1" || vessels[0].Speed != 20 || vessels[0].CostPerDay != 5000 {
		t.Fatalf("unexpected first vessel: %+v", vessels[0])
	}
	if vessels[1].DelayHours != 12 {
		t.Fatalf("delay_hours not parsed: %+v", vessels[1])
	}
}

func TestDecodeVesselsDropsBadRows(t *testing.T) {
	in := strings.NewReader(`vessel_id,speed,cost_per_day
V1,20,5000
V2,zero,3000
,15,2000
V4,0,2000
`)
	vessels, dropped, err := DecodeVessels(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(vessels) != 1 || dropped != 3 {
		t.Fatalf("want 1 vessel 3 dropped, got %d/%d", len(vessels), dropped)
	}
}

func TestDecodeVesselsShortRows(t *testing.T) {
	in := strings.NewReader(`vessel_id,speed,cost_per_day,current_location
V1,20,5000
`)
	vessels, dropped, err := DecodeVessels(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(vessels) != 1 || dropped != 0 {
		t.Fatalf("short row should survive: %d/%d", len(vessels), dropped)
	}
	if vessels[0].CurrentLocation != "" {
		t.Fatalf("missing cell should be empty, got %q", vessels[0].CurrentLocation)
	}
}

func TestDecodeCargos(t *testing.T) {
	in := strings.NewReader(`cargo_id,origin,destination,window_start,window_end,volume
C1,Ras Laffan,Yokohama,2025-01-01,2025-06-01 00:00,50000
C2,Bintulu,Rotterdam,,2025-10-27 00:00,30000
C3,Bintulu,Rotterdam,,2025-10-27 00:00,0
`)
	cargos, dropped, err := DecodeCargos(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(cargos) != 2 || dropped != 1 {
		t.Fatalf("want 2 cargos 1 dropped, got %d/%d", len(cargos), dropped)
	}
	if cargos[0].Destination != "Yokohama" || cargos[0].Volume != 50000 {
		t.Fatalf("unexpected first cargo: %+v", cargos[0])
	}
}

func TestDecodeContracts(t *testing.T) {
	in := strings.NewReader(`cargo_id,delivery_price_per_ton,penalty_per_day
C1,13.25,1500
C2,not_a_number,0
`)
	contracts, dropped, err := DecodeContracts(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(contracts) != 1 || dropped != 1 {
		t.Fatalf("want 1 contract 1 dropped, got %d/%d", len(contracts), dropped)
	}
	if contracts[0].DeliveryPricePerTon != 13.25 {
		t.Fatalf("unexpected contract: %+v", contracts[0])
	}
}

func TestDecodeMissingHeader(t *testing.T) {
	if _, _, err := DecodeVessels(strings.NewReader("")); err == nil {
		t.Fatalf("empty input should fail on the header")
	}
}

func TestEncodeVesselsRoundTrip(t *testing.T) {
	vessels := []model.Vessel{
		{VesselID: "V1", Speed: 20, CostPerDay: 5000, Status: "Scheduled", DelayHours: -24, AssignedCargo: "C1", ETA: "2025-05-31 00:00", LastUpdate: "2025-01-01T00:00:00Z"},
	}
	var buf bytes.Buffer
	if err := EncodeVessels(&buf, vessels); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want header plus one row, got %d lines", len(lines))
	}
	if lines[0] != "vessel_id,speed,cost_per_day,current_location,status,delay_hours,last_update,assignedCargo,eta" {
		t.Fatalf("unexpected header: %s", lines[0])
	}

	back, dropped, err := DecodeVessels(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 0 || len(back) != 1 {
		t.Fatalf("round trip lost rows: %d/%d", len(back), dropped)
	}
	if back[0] != vessels[0] {
		t.Fatalf("round trip changed the record:\n%+v\n%+v", back[0], vessels[0])
	}
}
