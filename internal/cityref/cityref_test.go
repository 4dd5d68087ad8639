package cityref

import (
	"log/slog"
	"os"
	"testing"

	"github.com/cityhound/cityhound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestAssignPriorityChain(t *testing.T) {
	r := New(testLogger)

	tests := []struct {
		name       string
		in         Input
		wantCity   string
		wantReason types.CityReason
	}{
		{
			"configured city beats everything",
			Input{
				ConfiguredCity: "Calgary",
				VenueName:      "Poetry Jazz Cafe",
				SourceURL:      "https://vancouver.example/events",
				Text:           "123 Main St, Toronto, ON",
			},
			"Calgary", types.CityPathAuthority,
		},
		{
			"known venue beats url and text",
			Input{
				VenueName: "Poetry Jazz Cafe",
				SourceURL: "https://vancouver.example/events",
				Text:      "somewhere in British Columbia",
			},
			"Toronto", types.CityKnownVenue,
		},
		{
			"known venue with suffix",
			Input{VenueName: "Poetry Jazz Cafe Presents"},
			"Toronto", types.CityKnownVenue,
		},
		{
			"url pattern beats text",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://www.rickshawtheatre.com/events",
				Text:      "main floor, Toronto style seating",
			},
			"Vancouver", types.CitySourcePattern,
		},
		{
			"text scan city name",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Text:      "100 River Rd, Montréal",
			},
			"Montreal", types.CityTextScan,
		},
		{
			"province maps to hub city",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Text:      "somewhere in British Columbia",
			},
			"Vancouver", types.CityTextScan,
		},
		{
			"province abbreviation",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Text:      "456 8th Ave SE, AB",
			},
			"Calgary", types.CityTextScan,
		},
		{
			"title scan when nothing else matches",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Title:     "Vancouver Winter Jazz Gala",
			},
			"Vancouver", types.CityTextScan,
		},
		{
			"location text beats title text",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Text:      "123 Main St, Toronto, ON",
				Title:     "Vancouver Winter Jazz Gala",
			},
			"Toronto", types.CityTextScan,
		},
		{
			"venue name text beats title text",
			Input{
				VenueName: "Vancouver Supper Club",
				SourceURL: "https://events.example/list",
				Title:     "A Night in Montréal",
			},
			"Vancouver", types.CityTextScan,
		},
		{
			"no evidence stays unresolved",
			Input{
				VenueName: "Some New Room",
				SourceURL: "https://events.example/list",
				Text:      "doors at eight",
				Title:     "An Evening of Improvisation",
			},
			"", types.CityUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Assign(tt.in)
			if got.City != tt.wantCity {
				t.Errorf("city = %q, want %q", got.City, tt.wantCity)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestAssignCityNameBeatsProvinceRule(t *testing.T) {
	got := New(testLogger).Assign(Input{Text: "800 Granville St, Vancouver, BC"})
	if got.City != "Vancouver" || got.Reason != types.CityTextScan {
		t.Errorf("got %+v, want Vancouver via text scan", got)
	}
}

func TestKnownVenueBackfill(t *testing.T) {
	got := New(testLogger).Assign(Input{VenueName: "Commodore Ballroom"})
	if got.City != "Vancouver" || got.Reason != types.CityKnownVenue {
		t.Fatalf("got %+v, want Vancouver via known venue", got)
	}
	if got.Address != "868 Granville St" {
		t.Errorf("address = %q, want the table address", got.Address)
	}
	if got.Region != "BC" {
		t.Errorf("region = %q, want BC", got.Region)
	}
	if got.Country != "Canada" {
		t.Errorf("country = %q, want Canada", got.Country)
	}
}

func TestConfiguredCityCarriesNoBackfill(t *testing.T) {
	got := New(testLogger).Assign(Input{ConfiguredCity: "Toronto", VenueName: "Commodore Ballroom"})
	if got.Reason != types.CityPathAuthority {
		t.Fatalf("reason = %q, want path authority", got.Reason)
	}
	if got.Address != "" || got.Region != "" {
		t.Errorf("got back-fill %q/%q, want none above the venue rung", got.Address, got.Region)
	}
}

func TestAddVenue(t *testing.T) {
	r := New(testLogger)
	r.AddVenue("The Back Room", "Calgary")

	got := r.Assign(Input{VenueName: "the back room"})
	if got.City != "Calgary" || got.Reason != types.CityKnownVenue {
		t.Errorf("got %+v, want Calgary via known venue", got)
	}
}

func TestDecisionResolved(t *testing.T) {
	if (types.CityDecision{Reason: types.CityUnresolved}).Resolved() {
		t.Error("unresolved decision must not report resolved")
	}
	if !(types.CityDecision{City: "Toronto", Reason: types.CityKnownVenue}).Resolved() {
		t.Error("known venue decision must report resolved")
	}
}
