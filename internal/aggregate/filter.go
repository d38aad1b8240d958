// Package aggregate applies declarative filters to parsed records and
// deduplicates them, first by detail link (so no detail page is billed
// twice) and finally by contact identity across the whole task.
package aggregate

import (
	"strings"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// Accept reports whether rec passes the filter. Pure and idempotent: the
// decision depends only on the record's fields and the predicate.
func Accept(rec model.Person, f model.Filter) bool {
	if f.MinAge > 0 && (rec.Age == 0 || rec.Age < f.MinAge) {
		return false
	}
	if f.MaxAge > 0 && rec.Age > f.MaxAge {
		return false
	}
	if f.MinPropertyValue > 0 && rec.PropertyValue < f.MinPropertyValue {
		return false
	}
	if f.RequirePhone && len(usablePhones(rec, f)) == 0 {
		return false
	}
	if len(f.ExcludePhoneType) > 0 || len(f.ExcludeCarriers) > 0 {
		// A record whose every number is excluded carries no billable value.
		if len(rec.Phones) > 0 && len(usablePhones(rec, f)) == 0 {
			return false
		}
	}
	return true
}

// usablePhones returns the record's numbers that survive the filter's
// phone-type and carrier exclusions.
func usablePhones(rec model.Person, f model.Filter) []model.Phone {
	var out []model.Phone
	for _, ph := range rec.Phones {
		if phoneExcluded(ph, f) {
			continue
		}
		out = append(out, ph)
	}
	return out
}

func phoneExcluded(ph model.Phone, f model.Filter) bool {
	for _, t := range f.ExcludePhoneType {
		if ph.Type == t {
			return true
		}
	}
	for _, c := range f.ExcludeCarriers {
		if strings.EqualFold(strings.TrimSpace(ph.Carrier), strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// Apply partitions records into those that pass the filter and a count of
// those rejected.
func Apply(recs []model.Person, f model.Filter) (kept []model.Person, filteredOut int) {
	kept = make([]model.Person, 0, len(recs))
	for _, r := range recs {
		if Accept(r, f) {
			kept = append(kept, r)
			continue
		}
		filteredOut++
	}
	return kept, filteredOut
}
