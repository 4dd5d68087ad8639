// Package dates turns free-text event dates into canonical time windows.
//
// Every strange shape handled here was observed in the wild on venue pages:
// "FRIDAY JUNE 27TH", "Jul 15 - Aug 15, 2025", "Tue, Sep 30, 7:00 PM",
// "15 juillet 2025", "4.4.26", "2025-11-08T19:30". The recognized formats
// live in an explicit table rather than per-venue special cases.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cityhound/cityhound/internal/types"
)

const (
	// rolloverGrace: a yearless date that lands more than this far in the
	// past is assumed to mean next year's occurrence.
	rolloverGrace = 7 * 24 * time.Hour

	defaultMaxPast   = 183 * 24 * time.Hour      // ~6 months
	defaultMaxFuture = 3 * 365 * 24 * time.Hour  // ~3 years
)

// Defaults is the time-of-day policy applied when a date carries no explicit
// time. StartHour becomes the start time; when EndHour is greater than
// StartHour the difference also serves as the default event duration.
type Defaults struct {
	StartHour int
	EndHour   int
}

// Options configure one normalization call. The zero value is usable: Now
// defaults to time.Now, Location to UTC, Defaults to a 19:00-22:00 evening.
type Options struct {
	Now      time.Time
	Location *time.Location
	Defaults Defaults

	// Standing disables the past-date sanity bound for exhibition-style
	// listings that legitimately started months ago.
	Standing bool

	MaxPast   time.Duration
	MaxFuture time.Duration
}

func (o *Options) fill() {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Defaults.StartHour == 0 && o.Defaults.EndHour == 0 {
		o.Defaults = Defaults{StartHour: 19, EndHour: 22}
	}
	if o.MaxPast == 0 {
		o.MaxPast = defaultMaxPast
	}
	if o.MaxFuture == 0 {
		o.MaxFuture = defaultMaxFuture
	}
}

// segment is one parsed date expression within the raw text.
type segment struct {
	year         int
	month        time.Month
	day          int
	yearExplicit bool
	hour, minute int
	hasTime      bool
}

var (
	reISO      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{1,2}):(\d{2}))?`)
	reMonthDay = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b(?:,?\s+(\d{4}))?`)
	reDayMonth = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?(?:,?\s+(\d{4}))?`)
	reSlash    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	reDotted   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`)

	reTime12 = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	reTime24 = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	reTimeFr = regexp.MustCompile(`\b(\d{1,2})h(\d{2})?\b`)

	reOrdinal = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)\b`)

	// Range separators: spaced hyphen only, so ISO dates survive intact.
	reRangeSplit = regexp.MustCompile(`\s+(?:to|au|through|until)\s+|\s*[–—]\s*|\s+-\s+`)
)

var monthNum = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// frenchMonths maps non-English month spellings (accented and accent-stripped,
// as seen on Montreal venue pages) to the canonical English names matched by
// the tables above. Longer names are listed before their abbreviations so a
// replacement never clobbers a longer match.
var frenchMonths = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bjanvier\b`), "january"},
	{regexp.MustCompile(`(?i)\bf[ée]vrier\b`), "february"},
	{regexp.MustCompile(`(?i)\bf[ée]v\b`), "feb"},
	{regexp.MustCompile(`(?i)\bmars\b`), "march"},
	{regexp.MustCompile(`(?i)\bavril\b`), "april"},
	{regexp.MustCompile(`(?i)\bavr\b`), "apr"},
	{regexp.MustCompile(`(?i)\bmai\b`), "may"},
	{regexp.MustCompile(`(?i)\bjuin\b`), "june"},
	{regexp.MustCompile(`(?i)\bjuillet\b`), "july"},
	{regexp.MustCompile(`(?i)\bjuil\b`), "jul"},
	{regexp.MustCompile(`(?i)\bao[ûu]t\b`), "august"},
	{regexp.MustCompile(`(?i)\bseptembre\b`), "september"},
	{regexp.MustCompile(`(?i)\boctobre\b`), "october"},
	{regexp.MustCompile(`(?i)\bnovembre\b`), "november"},
	{regexp.MustCompile(`(?i)\bd[ée]cembre\b`), "december"},
	{regexp.MustCompile(`(?i)\bd[ée]c\b`), "dec"},
}

// Clean collapses whitespace, strips ordinal suffixes, cuts trailing
// navigation text, and translates known non-English month names.
func Clean(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")

	for _, cut := range []string{"|", "Buy Tickets", "buy tickets", "View Event", "view event"} {
		if idx := strings.Index(s, cut); idx > 0 {
			s = s[:idx]
		}
	}

	s = reOrdinal.ReplaceAllString(s, "$1")

	for _, fm := range frenchMonths {
		s = fm.re.ReplaceAllString(s, fm.repl)
	}

	s = strings.TrimSpace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// Normalize parses raw date text into a DateWindow. It returns nil when the
// text holds no parseable date or the result fails the sanity bounds; callers
// must then reject the draft.
func Normalize(raw string, opts Options) *types.DateWindow {
	opts.fill()

	s := Clean(raw)
	if len(s) < 4 {
		return nil
	}

	var start, end segment
	var haveEnd bool

	if parts := reRangeSplit.Split(s, 2); len(parts) == 2 {
		a, aok := parseSegment(parts[0])
		b, bok := parseSegment(parts[1])
		if aok && bok {
			start, end, haveEnd = a, b, true
		} else if aok {
			start = a
		} else if bok {
			start = b
		} else {
			return nil
		}
	} else {
		var ok bool
		start, ok = parseSegment(s)
		if !ok {
			return nil
		}
	}

	if haveEnd {
		// A segment without a year inherits it from its partner; the earlier
		// segment may inherit from the later one ("Jul 15 - Aug 15, 2025").
		switch {
		case !start.yearExplicit && end.yearExplicit:
			start.year = end.year
		case start.yearExplicit && !end.yearExplicit:
			end.year = start.year
		case !start.yearExplicit && !end.yearExplicit:
			start.year = rolloverYear(start, opts)
			end.year = start.year
		}
	} else if !start.yearExplicit {
		start.year = rolloverYear(start, opts)
	}

	startTime := segmentTime(start, opts, opts.Defaults.StartHour)

	window := &types.DateWindow{
		Start:           startTime,
		HasExplicitTime: start.hasTime,
	}

	if haveEnd {
		// Range ends without a time span the full final day.
		endHour, endMin := 23, 59
		if end.hasTime {
			endHour, endMin = end.hour, end.minute
		}
		endTime := time.Date(end.year, end.month, end.day, endHour, endMin, 0, 0, opts.Location)
		if endTime.Before(startTime) && !end.yearExplicit {
			endTime = endTime.AddDate(1, 0, 0)
		}
		if endTime.Before(startTime) {
			return nil
		}
		window.End = &endTime
	} else if opts.Defaults.EndHour > opts.Defaults.StartHour {
		d := time.Duration(opts.Defaults.EndHour-opts.Defaults.StartHour) * time.Hour
		endTime := startTime.Add(d)
		window.End = &endTime
	}

	// Sanity bounds: stale listings and implausible futures are rejected
	// rather than emitted with a wrong year.
	if !opts.Standing && startTime.Before(opts.Now.Add(-opts.MaxPast)) {
		return nil
	}
	if startTime.After(opts.Now.Add(opts.MaxFuture)) {
		return nil
	}

	return window
}

// rolloverYear picks the year for a yearless date: the current year, unless
// that lands more than a week in the past, in which case next year. Recurring
// listings are assumed to mean the next occurrence.
func rolloverYear(seg segment, opts Options) int {
	y := opts.Now.Year()
	candidate := time.Date(y, seg.month, seg.day, 23, 59, 0, 0, opts.Location)
	if candidate.Before(opts.Now.Add(-rolloverGrace)) {
		return y + 1
	}
	return y
}

func segmentTime(seg segment, opts Options, defaultHour int) time.Time {
	hour, minute := defaultHour, 0
	if seg.hasTime {
		hour, minute = seg.hour, seg.minute
	}
	return time.Date(seg.year, seg.month, seg.day, hour, minute, 0, 0, opts.Location)
}

// parseSegment matches one date expression against the format table, most
// specific first, and extracts an explicit time when present.
func parseSegment(s string) (segment, bool) {
	var seg segment

	switch {
	case matchISO(s, &seg):
	case matchMonthDay(s, &seg):
	case matchDayMonth(s, &seg):
	case matchNumeric(s, reSlash, &seg):
	case matchNumeric(s, reDotted, &seg):
	default:
		return segment{}, false
	}

	if seg.day < 1 || seg.day > 31 {
		return segment{}, false
	}

	if !seg.hasTime {
		parseTime(s, &seg)
	}
	return seg, true
}

func matchISO(s string, seg *segment) bool {
	m := reISO.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	seg.year = atoi(m[1])
	seg.month = time.Month(atoi(m[2]))
	seg.day = atoi(m[3])
	seg.yearExplicit = true
	if m[4] != "" {
		seg.hour = atoi(m[4])
		seg.minute = atoi(m[5])
		seg.hasTime = true
	}
	return seg.month >= time.January && seg.month <= time.December
}

func matchMonthDay(s string, seg *segment) bool {
	m := reMonthDay.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	seg.month = monthNum[strings.ToLower(m[1])]
	seg.day = atoi(m[2])
	if m[3] != "" {
		seg.year = atoi(m[3])
		seg.yearExplicit = true
	}
	return true
}

func matchDayMonth(s string, seg *segment) bool {
	m := reDayMonth.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	seg.day = atoi(m[1])
	seg.month = monthNum[strings.ToLower(m[2])]
	if m[3] != "" {
		seg.year = atoi(m[3])
		seg.yearExplicit = true
	}
	return true
}

// matchNumeric handles 4/4/26 and 4.4.26 shapes. The first component is taken
// as the month unless it exceeds 12, matching how the source sites write them.
func matchNumeric(s string, re *regexp.Regexp, seg *segment) bool {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	a, b, y := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if a > 12 {
		seg.day, seg.month = a, time.Month(b)
	} else {
		seg.month, seg.day = time.Month(a), b
	}
	if seg.month < time.January || seg.month > time.December {
		return false
	}
	if y < 100 {
		y += 2000
	}
	seg.year = y
	seg.yearExplicit = true
	return true
}

func parseTime(s string, seg *segment) {
	if m := reTime12.FindStringSubmatch(s); m != nil {
		hour := atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if strings.EqualFold(m[3], "pm") && hour < 12 {
			hour += 12
		}
		if strings.EqualFold(m[3], "am") && hour == 12 {
			hour = 0
		}
		if hour < 24 && minute < 60 {
			seg.hour, seg.minute, seg.hasTime = hour, minute, true
		}
		return
	}
	if m := reTime24.FindStringSubmatch(s); m != nil {
		hour, minute := atoi(m[1]), atoi(m[2])
		if hour < 24 && minute < 60 {
			seg.hour, seg.minute, seg.hasTime = hour, minute, true
		}
		return
	}
	if m := reTimeFr.FindStringSubmatch(s); m != nil {
		hour, minute := atoi(m[1]), 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if hour < 24 && minute < 60 {
			seg.hour, seg.minute, seg.hasTime = hour, minute, true
		}
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
