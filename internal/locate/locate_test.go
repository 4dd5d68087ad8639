package locate

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func parseDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestCandidatesSelectorUnion(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="event-card"><h3>Jazz Night</h3><span>June 27</span></div>
		<div class="event-card"><h3>Open Mic</h3><span>June 28</span></div>
		<article><h3>Poetry Slam</h3><time datetime="2025-06-29">June 29</time></article>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3", len(got))
	}
	for _, c := range got[:2] {
		if c.Heuristic != "selector" {
			t.Errorf("heuristic = %q, want selector", c.Heuristic)
		}
	}
}

func TestCandidatesNoDuplicateNodes(t *testing.T) {
	// One block matching the selector union, the datetime scan, and the
	// heading scan must still yield a single candidate.
	doc := parseDoc(t, `<html><body>
		<article class="event">
			<h2>Jazz Night</h2>
			<time datetime="2025-06-27">June 27</time>
		</article>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
}

func TestCandidatesDatetimeAncestors(t *testing.T) {
	// Every ancestor within the climb cap becomes a candidate, so the real
	// container is reachable even when it sits above unmarked wrappers.
	doc := parseDoc(t, `<html><body>
		<li><div><p><time datetime="2025-06-27">June 27</time></p></div></li>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want the p, div, and li ancestors", len(got))
	}
	for i, want := range []string{"p", "div", "li"} {
		if got[i].Node.Data != want {
			t.Errorf("candidate %d = <%s>, want <%s>", i, got[i].Node.Data, want)
		}
		if got[i].Heuristic != "datetime" {
			t.Errorf("heuristic = %q, want datetime", got[i].Heuristic)
		}
	}
}

func TestCandidatesDatetimeClimbCapped(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<section><div><div><div><div><div><p><time datetime="2025-06-27">June 27</time></p></div></div></div></div></div></section>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != maxAncestorClimb {
		t.Fatalf("candidates = %d, want the climb cap of %d", len(got), maxAncestorClimb)
	}
	for _, c := range got {
		if c.Node.Data == "section" {
			t.Error("section is beyond the climb cap and must not be a candidate")
		}
	}
}

func TestCandidatesDataEventMarker(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div data-event><h3>Jazz Night</h3><span>June 27</span></div>
		<div data-event-id="42"><h3>Open Mic</h3><span>June 28</span></div>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 from data-event markers", len(got))
	}
	for _, c := range got {
		if c.Heuristic != "selector" {
			t.Errorf("heuristic = %q, want selector", c.Heuristic)
		}
	}
}

func TestCandidatesHeadingNeedsMonth(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<section><h2>About This Venue</h2><p>Our history and mission.</p></section>
		<section><h2>Gallery Opening</h2><p>Doors at 7, December 5.</p></section>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	if got[0].Heuristic != "heading" {
		t.Errorf("heuristic = %q, want heading", got[0].Heuristic)
	}
}

func TestCandidatesBound(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `<div class="event-card"><h3>Event %d</h3></div>`, i)
	}
	b.WriteString("</body></html>")

	got := New(10, testLogger).Candidates(parseDoc(t, b.String()))
	if len(got) != 10 {
		t.Fatalf("candidates = %d, want bound of 10", len(got))
	}
}

func TestCandidatesFallback(t *testing.T) {
	// No event classes, no datetime attrs, no headings: only the broad pass
	// should fire, keyed on link plus month text.
	doc := parseDoc(t, `<html><body>
		<ul>
			<li><a href="/shows/1">Jazz Night</a> June 27</li>
			<li><a href="/about">About us</a></li>
		</ul>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) == 0 {
		t.Fatal("expected fallback candidates")
	}
	for _, c := range got {
		if c.Heuristic != "fallback" {
			t.Errorf("heuristic = %q, want fallback", c.Heuristic)
		}
	}
}

func TestCandidatesEmptyPage(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>Nothing here.</p></body></html>`)
	if got := New(DefaultBound, testLogger).Candidates(doc); len(got) != 0 {
		t.Fatalf("candidates = %d, want 0", len(got))
	}
}

func TestCandidateSelectionTraversal(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="event-card"><h3>Jazz Night</h3><a href="/e/1">Details</a></div>
	</body></html>`)

	got := New(DefaultBound, testLogger).Candidates(doc)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	sel := got[0].Selection()
	if title := sel.Find("h3").Text(); title != "Jazz Night" {
		t.Errorf("title via selection = %q, want Jazz Night", title)
	}
	if href, _ := sel.Find("a").Attr("href"); href != "/e/1" {
		t.Errorf("href via selection = %q, want /e/1", href)
	}
}
