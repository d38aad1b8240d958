package aggregate

import (
	"strings"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// DedupLinks returns the unique detail links referenced by recs, first-seen
// order preserved. This runs before any detail fetch is issued: a link
// reached through several search hits is fetched and billed exactly once.
func DedupLinks(recs []model.Person) []string {
	seen := make(map[string]struct{}, len(recs))
	var links []string
	for _, r := range recs {
		link := strings.TrimSpace(r.DetailLink)
		if link == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

// DedupIdentity collapses records that resolve to the same person across
// the whole task, keyed by canonical primary phone. The same person often
// surfaces under several (name, location) subtasks. Records with no phone
// fall back to their detail link; records with neither are kept as-is.
func DedupIdentity(recs []model.Person) []model.Person {
	seen := make(map[string]struct{}, len(recs))
	out := make([]model.Person, 0, len(recs))
	for _, r := range recs {
		key := CanonicalPhone(r.PrimaryPhone())
		if key == "" {
			key = strings.TrimSpace(r.DetailLink)
		}
		if key == "" {
			out = append(out, r)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// CanonicalPhone reduces a phone number to bare national digits: strips
// formatting and a leading US country code.
func CanonicalPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) < 7 {
		return ""
	}
	return digits
}

// GroupBySubtask groups records by their originating subtask index. The
// index travels on each record; grouping never depends on slice position
// or completion order.
func GroupBySubtask(recs []model.Person) map[int][]model.Person {
	groups := make(map[int][]model.Person)
	for _, r := range recs {
		groups[r.SubtaskIndex] = append(groups[r.SubtaskIndex], r)
	}
	return groups
}
