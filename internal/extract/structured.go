package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cityhound/cityhound/internal/types"
)

// ParseStructured reads schema.org Event objects out of the page's JSON-LD
// blocks. Sites that publish these give exact fields with no heuristics
// needed, so drafts found here take precedence over DOM candidates for the
// same page. Malformed blocks are skipped, never fatal.
func ParseStructured(doc *goquery.Document, base *url.URL) []types.Draft {
	var drafts []types.Draft

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		for _, obj := range flattenLD(raw) {
			if d, ok := draftFromLD(obj, base); ok {
				drafts = append(drafts, d)
			}
		}
	})

	return drafts
}

// flattenLD unwraps the shapes JSON-LD comes in: a single object, a top-level
// array, or an object holding a @graph array.
func flattenLD(raw any) []map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var out []map[string]any
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, g := range v {
			if m, ok := g.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func draftFromLD(obj map[string]any, base *url.URL) (types.Draft, bool) {
	if !isEventType(obj["@type"]) {
		return types.Draft{}, false
	}

	title := cleanText(ldString(obj["name"]))
	start := strings.TrimSpace(ldString(obj["startDate"]))
	if title == "" || start == "" {
		return types.Draft{}, false
	}

	// Start and end are carried as one text expression so structured and
	// DOM-extracted drafts normalize through the same path.
	dateText := start
	if end := strings.TrimSpace(ldString(obj["endDate"])); end != "" && end != start {
		dateText = start + " to " + end
	}

	d := types.Draft{
		Title:       title,
		DateText:    dateText,
		Description: cleanText(ldString(obj["description"])),
		Link:        resolveURL(base, ldString(obj["url"])),
		Image:       resolveURL(base, ldImage(obj["image"])),
	}

	if loc, ok := obj["location"].(map[string]any); ok {
		d.VenueName = cleanText(ldString(loc["name"]))
		d.Location = ldAddress(loc["address"])
	} else if s := ldString(obj["location"]); s != "" {
		d.Location = cleanText(s)
	}

	return d, true
}

// isEventType accepts Event and its subtypes (MusicEvent, TheaterEvent, ...),
// including multi-typed objects.
func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

func ldString(v any) string {
	s, _ := v.(string)
	return s
}

// ldImage handles the three shapes image appears in: a plain URL, a list of
// URLs, or an ImageObject.
func ldImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return ldImage(img[0])
		}
	case map[string]any:
		return ldString(img["url"])
	}
	return ""
}

func ldAddress(v any) string {
	switch addr := v.(type) {
	case string:
		return cleanText(addr)
	case map[string]any:
		parts := make([]string, 0, 3)
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion"} {
			if p := cleanText(ldString(addr[key])); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
