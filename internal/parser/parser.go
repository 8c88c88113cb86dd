// Package parser extracts dated entries from normalized, entry-tagged journal text.
package parser

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/chronicle/internal/models"
)

var (
	containerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<entry((?:\s[^>]*)?)>(.*?)</entry\s*>`),
		regexp.MustCompile(`(?is)<journal_entry((?:\s[^>]*)?)>(.*?)</journal_entry\s*>`),
	}
	dateAttrRe = regexp.MustCompile(`(?i)(?:^|\s)date\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	cdataRe    = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	anyTagRe   = regexp.MustCompile(`<[^>]+>`)

	// dateTags lists the tag fallbacks tried after <date> and the date attribute.
	dateTags = []string{"created", "created_at", "timestamp"}
	bodyTags = []string{"text", "content", "body"}
	metaTags = []string{"date", "created", "created_at", "timestamp", "journal", "location"}

	tagRes = buildTagRes("date", "created", "created_at", "timestamp", "text", "content", "body", "journal", "location")
)

func buildTagRes(names ...string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(names))
	for _, n := range names {
		out[n] = regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(n) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(n) + `\s*>`)
	}
	return out
}

// block is one matched entry container, kept with its offset so that
// <entry> and <journal_entry> blocks interleave in document order.
type block struct {
	pos   int
	attrs string
	inner string
}

// Parse extracts entries from raw journal text, sorted ascending by date.
// Malformed entries are skipped; they never abort the parse.
func Parse(raw string) []models.Entry {
	entries, _ := ParseWithReport(raw)
	return entries
}

// ParseWithReport is Parse plus the number of entry blocks that were dropped.
func ParseWithReport(raw string) ([]models.Entry, int) {
	blocks := findBlocks(raw)
	out := make([]models.Entry, 0, len(blocks))
	dropped := 0
	for _, b := range blocks {
		e, ok := parseBlock(b)
		if !ok {
			dropped++
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, dropped
}

func findBlocks(raw string) []block {
	var out []block
	for _, re := range containerRes {
		for _, m := range re.FindAllStringSubmatchIndex(raw, -1) {
			out = append(out, block{
				pos:   m[0],
				attrs: raw[m[2]:m[3]],
				inner: raw[m[4]:m[5]],
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}

func parseBlock(b block) (models.Entry, bool) {
	date, ok := resolveDate(b)
	if !ok {
		return models.Entry{}, false
	}
	text := resolveBody(b.inner)
	if text == "" {
		return models.Entry{}, false
	}
	return models.Entry{
		Date:        date,
		Text:        text,
		JournalName: tagValue(b.inner, "journal"),
		Location:    tagValue(b.inner, "location"),
	}, true
}

// resolveDate tries <date>, the date attribute, then the timestamp-like tags,
// taking the first candidate that actually parses.
func resolveDate(b block) (time.Time, bool) {
	candidates := []string{tagValue(b.inner, "date")}
	if m := dateAttrRe.FindStringSubmatch(b.attrs); m != nil {
		candidates = append(candidates, decode(m[1]+m[2]))
	}
	for _, name := range dateTags {
		candidates = append(candidates, tagValue(b.inner, name))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, ok := ParseDate(c); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func resolveBody(inner string) string {
	for _, name := range bodyTags {
		if v := tagValue(inner, name); v != "" {
			return v
		}
	}
	// No body tag: use the whole block minus metadata.
	rest := inner
	for _, name := range metaTags {
		rest = tagRes[name].ReplaceAllString(rest, "")
	}
	rest = cdataRe.ReplaceAllString(rest, "$1")
	rest = anyTagRe.ReplaceAllString(rest, "")
	return strings.TrimSpace(html.UnescapeString(rest))
}

func tagValue(inner, name string) string {
	m := tagRes[name].FindStringSubmatch(inner)
	if m == nil {
		return ""
	}
	return decode(m[1])
}

func decode(s string) string {
	s = cdataRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(html.UnescapeString(s))
}
