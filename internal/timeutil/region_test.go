package timeutil

import "testing"

func TestHolidaysForRegionKnownCountry(t *testing.T) {
	h := HolidaysForRegion("US")
	newYears := mustDate(t, "2026-01-01")
	if !h.IsHoliday(newYears) {
		t.Fatalf("expected %s to be a US holiday", newYears)
	}

	ordinary := mustDate(t, "2026-03-02")
	if h.IsHoliday(ordinary) {
		t.Fatalf("did not expect %s to be a US holiday", ordinary)
	}
}

func TestHolidaysForRegionUnknownCountryIsNoHolidays(t *testing.T) {
	h := HolidaysForRegion("ZZ")
	if h.IsHoliday(mustDate(t, "2026-01-01")) {
		t.Fatal("unrecognized region code should never report a holiday")
	}
}

func TestHolidaysForRegionEmptyCountryIsNoHolidays(t *testing.T) {
	h := HolidaysForRegion("")
	if h.IsHoliday(mustDate(t, "2026-12-25")) {
		t.Fatal("empty region code should never report a holiday")
	}
}
