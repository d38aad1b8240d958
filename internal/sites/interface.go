// Package sites holds the per-site integrations: URL construction and the
// HTML parsers for each supported people-search source. The engine only
// sees the Site interface; everything site-specific stays behind it.
package sites

import (
	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// Site is one people-search source.
type Site interface {
	// Name returns the unique identifier (e.g. "truepeoplesearch").
	Name() string

	// SearchURL builds the search results URL for a subtask.
	SearchURL(sub model.SubTask) string

	// ParseSearchPage extracts result records from a search results page.
	// Records carry relative detail links; the engine resolves and dedups
	// them before any detail fetch.
	ParseSearchPage(html string) ([]model.Person, error)

	// ParseDetailPage extracts the full record from a detail page.
	// A nil record with nil error means the page held no usable data.
	ParseDetailPage(html string) (*model.Person, error)

	// ResolveLink turns a relative detail link into an absolute URL.
	ResolveLink(link string) string
}
