// Package cityref assigns a city to harvested events. Evidence is ranked:
// an operator-configured city on the source always wins, then the known-venue
// table, then URL patterns, then a scan of the event's free-text fields.
// Events with no evidence at any rung stay unresolved and are dropped
// downstream rather than guessed.
package cityref

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/cityhound/cityhound/internal/types"
)

// VenueInfo is one known-venue table entry. The address fields back-fill the
// record when the source config leaves them empty.
type VenueInfo struct {
	City    string
	Address string
	Region  string
	Country string
}

// knownVenues maps venue names to their location. Seeded with venues whose
// sites never state a city anywhere on the events page.
var knownVenues = map[string]VenueInfo{
	"poetry jazz cafe":         {"Toronto", "1078 Queen St W", "ON", "Canada"},
	"horseshoe tavern":         {"Toronto", "370 Queen St W", "ON", "Canada"},
	"danforth music hall":      {"Toronto", "147 Danforth Ave", "ON", "Canada"},
	"phoenix concert theatre":  {"Toronto", "410 Sherbourne St", "ON", "Canada"},
	"commodore ballroom":       {"Vancouver", "868 Granville St", "BC", "Canada"},
	"rickshaw theatre":         {"Vancouver", "254 E Hastings St", "BC", "Canada"},
	"fox cabaret":              {"Vancouver", "2321 Main St", "BC", "Canada"},
	"hollywood theatre":        {"Vancouver", "3123 W Broadway", "BC", "Canada"},
	"fortune sound club":       {"Vancouver", "147 E Pender St", "BC", "Canada"},
	"vogue theatre":            {"Vancouver", "918 Granville St", "BC", "Canada"},
	"orpheum":                  {"Vancouver", "601 Smithe St", "BC", "Canada"},
	"mtelus":                   {"Montreal", "59 Saint-Catherine St E", "QC", "Canada"},
	"corona theatre":           {"Montreal", "2490 Notre-Dame St W", "QC", "Canada"},
	"la tulipe":                {"Montreal", "4530 Papineau Ave", "QC", "Canada"},
	"palomino smokehouse":      {"Calgary", "109 7 Ave SW", "AB", "Canada"},
	"commonwealth bar & stage": {"Calgary", "731 10 Ave SW", "AB", "Canada"},
}

// hostPatterns map substrings of the source host to a city.
var hostPatterns = []struct {
	substr string
	city   string
}{
	{"poetryjazzcafe", "Toronto"},
	{"horseshoetavern", "Toronto"},
	{"commodoreballroom", "Vancouver"},
	{"rickshawtheatre", "Vancouver"},
	{"foxcabaret", "Vancouver"},
	{"mtelus", "Montreal"},
	{"toronto", "Toronto"},
	{"vancouver", "Vancouver"},
	{"montreal", "Montreal"},
	{"calgary", "Calgary"},
}

// textRules scan free-form text. City names come before province rules so
// "Vancouver, BC" resolves by name, not by the BC fallback. Province evidence
// maps to the hub city harvested for that province.
var textRules = []struct {
	re   *regexp.Regexp
	city string
}{
	{regexp.MustCompile(`(?i)\bvancouver\b`), "Vancouver"},
	{regexp.MustCompile(`(?i)\btoronto\b`), "Toronto"},
	{regexp.MustCompile(`(?i)\bmontr[ée]al\b`), "Montreal"},
	{regexp.MustCompile(`(?i)\bcalgary\b`), "Calgary"},
	{regexp.MustCompile(`(?i)\bbritish columbia\b|\bBC\b`), "Vancouver"},
	{regexp.MustCompile(`(?i)\balberta\b|\bAB\b`), "Calgary"},
	{regexp.MustCompile(`(?i)\bontario\b`), "Toronto"},
	{regexp.MustCompile(`(?i)\bqu[ée]bec\b|\bQC\b`), "Montreal"},
}

// Input is the evidence available for one event.
type Input struct {
	// ConfiguredCity is the city set on the source definition, when the
	// operator stated one.
	ConfiguredCity string
	VenueName      string
	SourceURL      string
	// Text is the event's address or location blob.
	Text  string
	Title string
}

type Resolver struct {
	venues map[string]VenueInfo
	logger *slog.Logger
}

func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	venues := make(map[string]VenueInfo, len(knownVenues))
	for name, info := range knownVenues {
		venues[name] = info
	}
	return &Resolver{
		venues: venues,
		logger: logger.With("component", "cityref"),
	}
}

// AddVenue registers or overrides a venue-to-city mapping, letting source
// configs extend the built-in table.
func (r *Resolver) AddVenue(name, city string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || city == "" {
		return
	}
	r.venues[name] = VenueInfo{City: city}
}

// Assign walks the evidence chain top down and returns the first rung that
// produces a city. The decision records which rung fired; a known-venue hit
// also carries the table's address fields for back-filling.
func (r *Resolver) Assign(in Input) types.CityDecision {
	if city := strings.TrimSpace(in.ConfiguredCity); city != "" {
		return types.CityDecision{City: city, Reason: types.CityPathAuthority}
	}

	if info, ok := r.lookupVenue(in.VenueName); ok {
		return types.CityDecision{
			City:    info.City,
			Reason:  types.CityKnownVenue,
			Address: info.Address,
			Region:  info.Region,
			Country: info.Country,
		}
	}

	if city := matchHost(in.SourceURL); city != "" {
		return types.CityDecision{City: city, Reason: types.CitySourcePattern}
	}

	// The free-text rung scans fields in fixed order so location evidence
	// beats a city name that merely appears in the title.
	for _, field := range []string{in.Text, in.VenueName, in.SourceURL, in.Title} {
		if city := scanText(field); city != "" {
			return types.CityDecision{City: city, Reason: types.CityTextScan}
		}
	}

	r.logger.Debug("city unresolved", "venue", in.VenueName, "url", in.SourceURL)
	return types.CityDecision{Reason: types.CityUnresolved}
}

func (r *Resolver) lookupVenue(name string) (VenueInfo, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return VenueInfo{}, false
	}
	if info, ok := r.venues[name]; ok {
		return info, true
	}
	// Venue names on pages often carry suffixes like "Poetry Jazz Cafe
	// Presents"; a containment pass catches those.
	for known, info := range r.venues {
		if strings.Contains(name, known) {
			return info, true
		}
	}
	return VenueInfo{}, false
}

func matchHost(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range hostPatterns {
		if strings.Contains(host, p.substr) {
			return p.city
		}
	}
	return ""
}

func scanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, rule := range textRules {
		if rule.re.MatchString(text) {
			return rule.city
		}
	}
	return ""
}
