// Package locate finds the DOM subtrees on a listing page that plausibly
// represent one event each. It knows nothing about fields or dates; it only
// narrows a full document down to a bounded, deduplicated candidate set for
// the extractor.
package locate

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// DefaultBound caps the candidate set per page. Listing pages with more
// blocks than this are index pages, not event lists.
const DefaultBound = 200

const maxAncestorClimb = 5

// containerSelectors is the union of class and tag shapes event blocks use
// across venue sites. Order matters: more specific shapes come first so the
// bound keeps the best candidates.
var containerSelectors = []string{
	".event-card",
	".event-item",
	".event-listing",
	".event",
	`[class*="event-"]`,
	`[data-event]`,
	`[data-event-id]`,
	".show",
	".performance",
	".listing-item",
	"article",
	"li.event",
}

var monthPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre)[a-z]*\b`)

// Candidate is one plausible event block. Heuristic names where it came from,
// for logging and metrics only.
type Candidate struct {
	Node      *html.Node
	Heuristic string
}

// Selection wraps the candidate node for goquery-style field extraction.
// Parent pointers survive the wrap, so upward traversal still works.
func (c Candidate) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(c.Node).Selection
}

type Locator struct {
	bound  int
	logger *slog.Logger
}

func New(bound int, logger *slog.Logger) *Locator {
	if bound <= 0 {
		bound = DefaultBound
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		bound:  bound,
		logger: logger.With("component", "locator"),
	}
}

// Candidates runs the heuristics in fixed order against doc and returns at
// most the configured bound of distinct blocks. The broad fallback pass runs
// only when the targeted heuristics find nothing at all.
func (l *Locator) Candidates(doc *goquery.Document) []Candidate {
	seen := make(map[*html.Node]struct{})
	var out []Candidate

	add := func(n *html.Node, heuristic string) bool {
		if n == nil || len(out) >= l.bound {
			return false
		}
		if _, dup := seen[n]; dup {
			return true
		}
		seen[n] = struct{}{}
		out = append(out, Candidate{Node: n, Heuristic: heuristic})
		return true
	}

	l.bySelectorUnion(doc, add)
	l.byDatetimeAttr(doc, add)
	l.byHeadingMonth(doc, add)

	if len(out) == 0 {
		l.byBroadFallback(doc, add)
	}

	l.logger.Debug("located candidates", "count", len(out))
	return out
}

// bySelectorUnion collects blocks matching the known container shapes.
func (l *Locator) bySelectorUnion(doc *goquery.Document, add func(*html.Node, string) bool) {
	for _, sel := range containerSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(s.Get(0), "selector")
		})
	}
}

// byDatetimeAttr anchors on machine-readable datetime attributes and adds
// every enclosing ancestor up to the climb cap. A <time datetime> deep inside
// a card is the most reliable signal a card is an event, and the card's true
// container is not always the nearest wrapper.
func (l *Locator) byDatetimeAttr(doc *goquery.Document, add func(*html.Node, string) bool) {
	root := doc.Get(0)
	if root == nil {
		return
	}
	for _, n := range htmlquery.Find(root, "//*[@datetime]") {
		for _, anc := range ancestorChain(n) {
			add(anc, "datetime")
		}
	}
}

// ancestorChain returns up to maxAncestorClimb element ancestors of n,
// nearest first, stopping short of body.
func ancestorChain(n *html.Node) []*html.Node {
	var out []*html.Node
	cur := n
	for i := 0; i < maxAncestorClimb; i++ {
		parent := cur.Parent
		if parent == nil || parent.Type != html.ElementNode ||
			parent.Data == "body" || parent.Data == "html" {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}

// byHeadingMonth takes headings whose surrounding block also mentions a month
// name. Covers sites that mark up events as plain headed sections.
func (l *Locator) byHeadingMonth(doc *goquery.Document, add func(*html.Node, string) bool) {
	doc.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		block := climbToBlock(s.Get(0))
		if block == nil {
			return
		}
		if monthPattern.MatchString(htmlquery.InnerText(block)) {
			add(block, "heading")
		}
	})
}

// byBroadFallback scans generic blocks for a link plus month-like text. Noisy
// on purpose; the extractor's rejections clean up after it.
func (l *Locator) byBroadFallback(doc *goquery.Document, add func(*html.Node, string) bool) {
	doc.Find("li, article, section, div").Each(func(_ int, s *goquery.Selection) {
		if s.Find("a[href]").Length() == 0 {
			return
		}
		text := s.Text()
		if len(text) > 2000 {
			return
		}
		if monthPattern.MatchString(text) {
			add(s.Get(0), "fallback")
		}
	})
}

// climbToBlock walks up from n to the nearest block-level container, at most
// maxAncestorClimb levels, stopping short of body. Returns nil when nothing
// container-like is within reach.
func climbToBlock(n *html.Node) *html.Node {
	cur := n
	for i := 0; i < maxAncestorClimb && cur != nil; i++ {
		parent := cur.Parent
		if parent == nil || parent.Type != html.ElementNode {
			break
		}
		if parent.Data == "body" || parent.Data == "html" {
			break
		}
		cur = parent
		if isBlockContainer(cur) {
			return cur
		}
	}
	if cur != n && cur != nil && cur.Type == html.ElementNode {
		return cur
	}
	return nil
}

func isBlockContainer(n *html.Node) bool {
	switch n.Data {
	case "article", "li", "section":
		return true
	case "div":
		return hasEventClass(n)
	}
	return false
}

func hasEventClass(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		class := strings.ToLower(attr.Val)
		for _, hint := range []string{"event", "show", "listing", "card", "performance"} {
			if strings.Contains(class, hint) {
				return true
			}
		}
	}
	return false
}
