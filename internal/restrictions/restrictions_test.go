package restrictions

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	rows := []Row{
		{Initials: "JD", Status: "RESTRICTION", Text: "Do not fly with AB"},
		{Initials: "mk", Status: "restriction", Text: "Do not crew together without vetting with DP (AB and CD)"},
		{Initials: "ZZ", Status: "CLEARED", Text: "Do not fly with AB"},
		{Initials: "PQ", Status: "RESTRICTION", Text: "Do not fly with AB/CD, EF"},
	}

	m := Build(rows)

	if !m.Forbidden("JD", "AB") {
		t.Error("JD/AB should be forbidden")
	}
	if m.Forbidden("JD", "CD") {
		t.Error("JD/CD should not be forbidden")
	}
	if !m.Forbidden("MK", "AB") || !m.Forbidden("MK", "CD") {
		t.Error("MK row should forbid both AB and CD")
	}
	if m.Forbidden("ZZ", "AB") {
		t.Error("non-RESTRICTION rows must be ignored")
	}
	for _, sic := range []string{"AB", "CD", "EF"} {
		if !m.Forbidden("PQ", sic) {
			t.Errorf("PQ/%s should be forbidden (slash and comma separators)", sic)
		}
	}
}

func TestForbidden_CaseInsensitive(t *testing.T) {
	m := Build([]Row{{Initials: "JD", Status: "RESTRICTION", Text: "do not fly with ab"}})

	if !m.Forbidden("jd", "ab") {
		t.Error("initials matching should be case-insensitive")
	}
}

func TestForbidden_NilMap(t *testing.T) {
	var m Map
	if m.Forbidden("JD", "AB") {
		t.Error("nil map should forbid nothing")
	}
}

func TestScrapeInitials_DropsShortTokens(t *testing.T) {
	got := scrapeInitials("Do not fly with AB and X or CD")
	want := []string{"AB", "OR", "CD"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("scrapeInitials = %v, want %v", got, want)
	}
}

func TestParseCSV_AliasedHeaders(t *testing.T) {
	feed := "Pilot Initials,Restriction Status,Notes\n" +
		"JD,RESTRICTION,Do not fly with AB\n" +
		"MK,CLEARED,ok now\n"

	rows, err := ParseCSV(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	want := Row{Initials: "JD", Status: "RESTRICTION", Text: "Do not fly with AB"}
	if rows[0] != want {
		t.Errorf("rows[0] = %+v, want %+v", rows[0], want)
	}
}

func TestParseCSV_ExtraColumnsIgnored(t *testing.T) {
	feed := "id,initials,base,status,restriction\n" +
		"1,JD,CYYC,RESTRICTION,Do not fly with AB\n"

	rows, err := ParseCSV(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 1 || rows[0].Initials != "JD" {
		t.Errorf("rows = %+v, want single JD row", rows)
	}
}

func TestParseCSV_MissingColumns(t *testing.T) {
	feed := "initials,notes\nJD,Do not fly with AB\n"

	_, err := ParseCSV(strings.NewReader(feed))
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("ParseCSV error = %v, want ErrMissingColumns", err)
	}
}

func TestLoad(t *testing.T) {
	feed := "initials,status,restriction\n" +
		"JD,RESTRICTION,Do not fly with AB\n"

	m, err := Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Forbidden("JD", "AB") {
		t.Error("loaded map should forbid JD/AB")
	}
}
