package qual

import (
	"strings"
	"testing"

	"crewpair/internal/roster"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<data xmlns="http://www.ad-opt.com/2009/Altitude/data">
  <employee>
    <employee-id>E123</employee-id>
    <primary-seat-qual>PIC</primary-seat-qual>
    <name>John Doe</name>
    <base ref="CYYC"/>
    <qualifications>
      <aircraft ref="CJ3"/>
    </qualifications>
  </employee>
  <employee>
    <employee-id>E456</employee-id>
    <primary-seat-qual>SIC</primary-seat-qual>
    <name></name>
    <base ref="CYVR"/>
    <aircraft ref="CJ3"/>
  </employee>
  <employee>
    <employee-id>E789</employee-id>
    <primary-seat-qual>SIC</primary-seat-qual>
  </employee>
</data>`

func TestLoad(t *testing.T) {
	pilots, err := Load(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(pilots) != 3 {
		t.Fatalf("got %d pilots, want 3", len(pilots))
	}

	want := roster.Pilot{
		EmployeeID: "E123",
		Seat:       "PIC",
		Name:       "John Doe",
		Base:       "CYYC",
		Aircraft:   "CJ3",
	}
	if pilots[0] != want {
		t.Errorf("pilots[0] = %+v, want %+v", pilots[0], want)
	}

	// Aircraft may be a direct child or nested; both resolve.
	if pilots[1].Aircraft != "CJ3" {
		t.Errorf("pilots[1].Aircraft = %q, want %q", pilots[1].Aircraft, "CJ3")
	}
	if pilots[1].Name != "" {
		t.Errorf("pilots[1].Name = %q, want empty", pilots[1].Name)
	}

	// Missing base and aircraft stay empty.
	if pilots[2].Base != "" || pilots[2].Aircraft != "" {
		t.Errorf("pilots[2] = %+v, want empty base/aircraft", pilots[2])
	}
}

func TestLoad_DuplicateEmployeeFirstWins(t *testing.T) {
	feed := `<data xmlns="http://www.ad-opt.com/2009/Altitude/data">
  <employee>
    <employee-id>E1</employee-id>
    <primary-seat-qual>PIC</primary-seat-qual>
    <base ref="CYYC"/>
  </employee>
  <employee>
    <employee-id>E1</employee-id>
    <primary-seat-qual>SIC</primary-seat-qual>
    <base ref="CYVR"/>
  </employee>
</data>`

	pilots, err := Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pilots) != 1 {
		t.Fatalf("got %d pilots, want 1", len(pilots))
	}
	if pilots[0].Seat != "PIC" || pilots[0].Base != "CYYC" {
		t.Errorf("pilots[0] = %+v, want first entry", pilots[0])
	}
}

func TestLoad_Empty(t *testing.T) {
	pilots, err := Load(strings.NewReader(`<data xmlns="http://www.ad-opt.com/2009/Altitude/data"></data>`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pilots) != 0 {
		t.Errorf("got %d pilots, want 0", len(pilots))
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(strings.NewReader("<data><employee>")); err == nil {
		t.Error("Load on truncated XML: got nil error")
	}
}
