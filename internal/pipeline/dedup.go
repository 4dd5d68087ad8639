package pipeline

import (
	"time"

	"github.com/cityhound/cityhound/internal/types"
)

// runDedup collapses repeats within a single harvest run. Listing pages
// frequently render the same event in a featured block and again in the
// calendar grid; the first occurrence wins.
type runDedup struct {
	seen map[string]struct{}
}

func newRunDedup() *runDedup {
	return &runDedup{seen: make(map[string]struct{})}
}

// observed reports whether an event with this title on this day was already
// seen, and records it otherwise. The key folds case and whitespace so "JAZZ
// NIGHT" and "Jazz Night" collapse.
func (d *runDedup) observed(title string, day time.Time) bool {
	key := types.NormalizeTitle(title) + "|" + day.Format("2006-01-02")
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
