package roster

import (
	"testing"
	"time"
)

func TestIndex_FirstSeenWins(t *testing.T) {
	pilots := []Pilot{
		{EmployeeID: "E1", Seat: SeatPIC, Base: "CYYC"},
		{EmployeeID: "E1", Seat: SeatSIC, Base: "CYVR"},
		{EmployeeID: "E2", Seat: SeatSIC},
	}

	byID := Index(pilots)
	if len(byID) != 2 {
		t.Fatalf("Index returned %d entries, want 2", len(byID))
	}
	if got := byID["E1"].Seat; got != SeatPIC {
		t.Errorf("byID[E1].Seat = %q, want %q (first entry wins)", got, SeatPIC)
	}
}

func TestMerge_BasePrecedence(t *testing.T) {
	duties := []DutyRecord{
		{EmployeeID: "E1", Date: Date(2024, time.January, 10), Code: DutyAvailable, Base: "CYEG"},
		{EmployeeID: "E2", Date: Date(2024, time.January, 10), Code: DutyAvailable, Base: "CYWG"},
		{EmployeeID: "E3", Date: Date(2024, time.January, 11), Code: DutyOff, Base: "CYUL"},
	}
	pilots := []Pilot{
		{EmployeeID: "E1", Seat: SeatPIC, Name: "John Doe", Base: "CYYC", Aircraft: "CJ3"},
		{EmployeeID: "E2", Seat: SeatSIC, Aircraft: "CJ3"}, // no qualification base
	}

	merged := Merge(duties, pilots)
	if len(merged) != 3 {
		t.Fatalf("Merge returned %d records, want 3 (left join keeps all duty rows)", len(merged))
	}

	// Qualification base takes precedence over the duty-feed base.
	if merged[0].Base != "CYYC" {
		t.Errorf("merged[0].Base = %q, want %q", merged[0].Base, "CYYC")
	}
	if merged[0].Seat != SeatPIC || merged[0].Aircraft != "CJ3" {
		t.Errorf("merged[0] missing qualification fields: %+v", merged[0])
	}

	// Duty-feed base is the fallback.
	if merged[1].Base != "CYWG" {
		t.Errorf("merged[1].Base = %q, want %q", merged[1].Base, "CYWG")
	}

	// Unmatched employee keeps duty fields only.
	if merged[2].Seat != "" || merged[2].Name != "" || merged[2].Aircraft != "" {
		t.Errorf("merged[2] should have no qualification fields: %+v", merged[2])
	}
	if merged[2].Base != "CYUL" {
		t.Errorf("merged[2].Base = %q, want %q", merged[2].Base, "CYUL")
	}
}

func TestDisplayIdentifier(t *testing.T) {
	tests := []struct {
		name, id, want string
	}{
		{"John Doe", "E123", "John Doe"},
		{"", "E123", "E123"},
		{"   ", "E123", "E123"},
	}

	for _, tt := range tests {
		if got := DisplayIdentifier(tt.name, tt.id); got != tt.want {
			t.Errorf("DisplayIdentifier(%q, %q) = %q, want %q", tt.name, tt.id, got, tt.want)
		}
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"John Doe", "JD"},
		{"Anna Belle Carter", "ABC"},
		{"Émile Zola", "ÉZ"},
		{"JD", "JD"},
		{"jd", "JD"},
		{"émile", "ÉMILE"},
		{"E123", "E123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Initials(tt.in); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDutyCodeFlying(t *testing.T) {
	if !DutyAvailable.Flying() || !DutyAvailableProvisional.Flying() {
		t.Error("available codes should count as flying")
	}
	if DutyOff.Flying() {
		t.Error("OFF should not count as flying")
	}
}

func TestParseDutyCode(t *testing.T) {
	tests := []struct {
		in   string
		want DutyCode
		ok   bool
	}{
		{"A", DutyAvailable, true},
		{"available", DutyAvailable, true},
		{"draft", DutyAvailableProvisional, true},
		{"OFF", DutyOff, true},
		{"x", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDutyCode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDutyCode(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
