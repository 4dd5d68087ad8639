package types

import (
	"errors"
	"testing"
	"time"
)

func TestEventIDDeterministic(t *testing.T) {
	start := time.Date(2026, time.June, 27, 19, 0, 0, 0, time.UTC)

	a := EventID("Poetry Jazz Cafe", "Jazz Night", start)
	b := EventID("Poetry Jazz Cafe", "Jazz Night", start)
	if a != b {
		t.Errorf("same inputs gave %q and %q", a, b)
	}
	if a == "" {
		t.Error("id must not be empty")
	}
}

func TestEventIDIgnoresCaseAndTimeOfDay(t *testing.T) {
	day := time.Date(2026, time.June, 27, 0, 0, 0, 0, time.UTC)

	a := EventID("Poetry Jazz Cafe", "Jazz Night", day.Add(19*time.Hour))
	b := EventID("POETRY JAZZ CAFE", "  jazz   night ", day.Add(21*time.Hour))
	if a != b {
		t.Error("identity must fold case, whitespace, and time of day")
	}
}

func TestEventIDDistinguishes(t *testing.T) {
	start := time.Date(2026, time.June, 27, 19, 0, 0, 0, time.UTC)
	base := EventID("Poetry Jazz Cafe", "Jazz Night", start)

	if EventID("Poetry Jazz Cafe", "Jazz Night", start.AddDate(0, 0, 1)) == base {
		t.Error("different day must change the id")
	}
	if EventID("Poetry Jazz Cafe", "Open Mic", start) == base {
		t.Error("different title must change the id")
	}
	if EventID("Rickshaw Theatre", "Jazz Night", start) == base {
		t.Error("different venue must change the id")
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Jazz Night", "jazz night"},
		{"  JAZZ   NIGHT  ", "jazz night"},
		{"Jazz\tNight", "jazz night"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	fe := &FetchError{URL: "https://venue.example", Err: ErrTimeout, Retryable: true}
	if !errors.Is(fe, ErrTimeout) {
		t.Error("FetchError must unwrap to its cause")
	}
	if !fe.IsRetryable() {
		t.Error("retryable flag lost")
	}
}

func TestResponseDocumentLazy(t *testing.T) {
	req, err := NewRequest("https://venue.example/events")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp := NewBrowserResponse(req, 200, []byte("<html><body><h1>Listings</h1></body></html>"), req.URLString(), time.Millisecond)

	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.Find("h1").Text() != "Listings" {
		t.Error("document did not parse the body")
	}

	again, err := resp.Document()
	if err != nil {
		t.Fatalf("second Document: %v", err)
	}
	if again != doc {
		t.Error("document must be parsed once and cached")
	}
}

func TestCityDecisionResolved(t *testing.T) {
	if !(CityDecision{City: "Toronto", Reason: CityKnownVenue}).Resolved() {
		t.Error("decision with city must be resolved")
	}
	if (CityDecision{Reason: CityUnresolved}).Resolved() {
		t.Error("unresolved decision must not be resolved")
	}
}
