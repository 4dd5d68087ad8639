// Package extract pulls the raw event fields out of a located candidate
// block. It produces unnormalized drafts; dates stay as text and no identity
// or city decisions happen here.
package extract

import (
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cityhound/cityhound/internal/locate"
	"github.com/cityhound/cityhound/internal/types"
)

// Rejection reasons. The pipeline counts these per run; none of them is a
// page-level failure.
var (
	ErrNoTitle     = errors.New("extract: no title")
	ErrJunkTitle   = errors.New("extract: navigation or junk title")
	ErrTitleLength = errors.New("extract: title length out of bounds")
	ErrNoDate      = errors.New("extract: no date text")
)

const (
	DefaultTitleMin = 5
	DefaultTitleMax = 200
	DefaultDescMax  = 500

	minDateTextLen = 4
)

// junkTitles match navigation chrome that the broad locator heuristics drag
// in: "View All Events", "Load More", cookie banners, menu labels. Matched
// anywhere in the title, not only at the start.
var junkTitles = regexp.MustCompile(`(?i)\b(view all|see all|all events|more events|more info|load more|read more|learn more|buy tickets|tickets|menu|nav|skip|home|about|contact|search|filter|sort|login|sign (in|up)|subscribe|newsletter|privacy|terms|cookie|calendar|upcoming events)\b`)

var dateLike = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre)[a-z]*\b|\b\d{1,2}[./]\d{1,2}[./]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}`)

// dateTokens cover everything a date-only heading is made of. Venue pages
// often head each card with the date in display caps and put the real title
// in the link below it.
var dateTokens = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thurs|fri|sat|sun|january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec|\d{1,4}(st|nd|rd|th)?)\b`)

// placeholder images that lazy-loading themes ship as the src attribute.
var placeholderImage = regexp.MustCompile(`(?i)placeholder|spacer|blank\.|1x1|pixel\.|loading\.|^data:`)

type Extractor struct {
	titleMin int
	titleMax int
	descMax  int
	logger   *slog.Logger
}

func New(titleMin, titleMax, descMax int, logger *slog.Logger) *Extractor {
	if titleMin <= 0 {
		titleMin = DefaultTitleMin
	}
	if titleMax <= 0 {
		titleMax = DefaultTitleMax
	}
	if descMax <= 0 {
		descMax = DefaultDescMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		titleMin: titleMin,
		titleMax: titleMax,
		descMax:  descMax,
		logger:   logger.With("component", "extractor"),
	}
}

// Draft extracts the raw fields from one candidate block. Relative link and
// image URLs are resolved against base. A non-nil error names the rejection
// reason; rejected candidates carry no draft.
func (e *Extractor) Draft(c locate.Candidate, base *url.URL) (*types.Draft, error) {
	sel := c.Selection()

	title, err := e.title(sel)
	if err != nil {
		return nil, err
	}

	dateText := e.dateText(sel)
	if len(dateText) < minDateTextLen {
		return nil, ErrNoDate
	}

	return &types.Draft{
		Title:       title,
		DateText:    dateText,
		Description: e.description(sel),
		Link:        resolveURL(base, firstLink(sel)),
		Image:       resolveURL(base, firstImage(sel)),
		Location:    cleanText(sel.Find(".venue, .location, .where").First().Text()),
	}, nil
}

// title cascades heading text, titled classes, bold text, link text, then
// image alt. Whatever wins must clear the junk filter and the length bounds.
func (e *Extractor) title(sel *goquery.Selection) (string, error) {
	var title string
	for _, pick := range []func() string{
		func() string { return sel.Find("h1, h2, h3, h4, h5").First().Text() },
		func() string { return sel.Find(".title, .event-title, .name").First().Text() },
		func() string { return sel.Find("strong, b").First().Text() },
		func() string { return sel.Find("a[href]").First().Text() },
		func() string { alt, _ := sel.Find("img[alt]").First().Attr("alt"); return alt },
	} {
		candidate := cleanText(pick())
		if candidate == "" || looksLikeDate(candidate) {
			continue
		}
		title = candidate
		break
	}
	if title == "" {
		return "", ErrNoTitle
	}
	if junkTitles.MatchString(title) {
		return "", ErrJunkTitle
	}
	if n := len([]rune(title)); n < e.titleMin || n > e.titleMax {
		return "", ErrTitleLength
	}
	return title, nil
}

// dateText prefers machine-readable datetime attributes, then date-classed
// elements, then the first date-looking line of the block text.
func (e *Extractor) dateText(sel *goquery.Selection) string {
	timeEl := sel.Find("time").First()
	if dt, ok := timeEl.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	if t := cleanText(timeEl.Text()); t != "" {
		return t
	}

	if t := cleanText(sel.Find(`.date, .event-date, .when, [class*="date"]`).First().Text()); t != "" {
		return t
	}

	for _, line := range strings.Split(sel.Text(), "\n") {
		line = cleanText(line)
		if line != "" && dateLike.MatchString(line) {
			return line
		}
	}
	return ""
}

func (e *Extractor) description(sel *goquery.Selection) string {
	desc := cleanText(sel.Find(".description, .excerpt, .summary").First().Text())
	if desc == "" {
		desc = cleanText(sel.Find("p").First().Text())
	}
	if r := []rune(desc); len(r) > e.descMax {
		desc = string(r[:e.descMax])
	}
	return desc
}

func firstLink(sel *goquery.Selection) string {
	var href string
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		h = strings.TrimSpace(h)
		if h == "" || h == "#" || strings.HasPrefix(h, "javascript:") || strings.HasPrefix(h, "mailto:") {
			return true
		}
		href = h
		return false
	})
	return href
}

// firstImage tries src and the lazy-loading attribute variants, skipping
// placeholder images so a real image further down the cascade can win.
func firstImage(sel *goquery.Selection) string {
	var src string
	sel.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
			v, ok := img.Attr(attr)
			v = strings.TrimSpace(v)
			if !ok || v == "" || placeholderImage.MatchString(v) {
				continue
			}
			src = v
			return false
		}
		if srcset, ok := img.Attr("srcset"); ok {
			if v := firstSrcset(srcset); v != "" && !placeholderImage.MatchString(v) {
				src = v
				return false
			}
		}
		return true
	})
	return src
}

func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// looksLikeDate reports whether s is made entirely of date vocabulary, like
// "FRIDAY JUNE 27TH". Such a heading is the card's date, never its title.
func looksLikeDate(s string) bool {
	stripped := dateTokens.ReplaceAllString(s, "")
	stripped = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '.', '-', ':', '|', '/':
			return -1
		}
		return r
	}, stripped)
	return stripped == ""
}
