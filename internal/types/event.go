package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Venue identifies where an event takes place.
type Venue struct {
	Name    string `json:"name"            bson:"name"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
	City    string `json:"city"            bson:"city"`
	Region  string `json:"region,omitempty"  bson:"region,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
}

// NormalizedEvent is the only record that escapes the pipeline.
// Invariants: Title length in [5,200], City non-empty, ID deterministic.
type NormalizedEvent struct {
	ID          string     `json:"id"                  bson:"_id"`
	Title       string     `json:"title"               bson:"title"`
	Description string     `json:"description"         bson:"description"`
	StartDate   time.Time  `json:"start_date"          bson:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"  bson:"end_date,omitempty"`
	Venue       Venue      `json:"venue"               bson:"venue"`
	URL         string     `json:"url"                 bson:"url"`
	ImageURL    string     `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Source      string     `json:"source"              bson:"source"`
	FetchedAt   time.Time  `json:"fetched_at"          bson:"fetched_at"`
}

// EventID derives a stable identifier from the venue name, the normalized
// title, and the start date truncated to day granularity. Repeated runs over
// the same source produce the same ID for the same logical event.
func EventID(venueName, title string, start time.Time) string {
	key := strings.ToLower(strings.TrimSpace(venueName)) +
		"|" + NormalizeTitle(title) +
		"|" + start.Format("2006-01-02")
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16])
}

// NormalizeTitle lowercases a title and collapses internal whitespace.
// Used for both ID derivation and per-run deduplication keys.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Draft holds the raw text fields pulled from one candidate node before any
// date parsing or validation. Drafts never leave a single pipeline run.
type Draft struct {
	Title       string
	DateText    string
	Description string
	Link        string
	Image       string

	// VenueName and Location are only populated when the source markup carries
	// them (JSON-LD events do); both feed the city assigner's free-text scan.
	VenueName string
	Location  string
}

// DateWindow is a canonical start/end pair produced by the date normalizer.
// End is nil unless an explicit range end or a default duration made it
// derivable; Start is always a concrete timestamp.
type DateWindow struct {
	Start           time.Time
	End             *time.Time
	HasExplicitTime bool
}

// CityReason records which signal resolved a record's city.
type CityReason string

const (
	CityPathAuthority CityReason = "path_authority"
	CityKnownVenue    CityReason = "known_venue"
	CitySourcePattern CityReason = "source_pattern"
	CityTextScan      CityReason = "text_scan"
	CityUnresolved    CityReason = "unresolved"
)

// CityDecision is the city assigner's verdict. A record whose decision is
// CityUnresolved must be dropped, never emitted with an empty city. A known
// venue match also carries the table's address fields so records missing
// them can be back-filled.
type CityDecision struct {
	City   string
	Reason CityReason

	Address string
	Region  string
	Country string
}

// Resolved reports whether the decision carries a usable city.
func (d CityDecision) Resolved() bool {
	return d.Reason != CityUnresolved && d.City != ""
}
