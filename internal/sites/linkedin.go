package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

const linkedinBase = "https://www.linkedin.com"

var (
	liCardRE  = regexp.MustCompile(`(?s)<a[^>]+href="(https://www\.linkedin\.com/in/[^"?]+)[^"]*"[^>]*>(.*?)</a>`)
	liTitleRE = regexp.MustCompile(`(?s)<title>([^<|]+)`)
)

// LinkedIn integrates LinkedIn's public people directory. Profiles carry
// no phone data, so records from this site surface names and profile
// links only; identity dedup falls back to the detail link.
type LinkedIn struct{}

// NewLinkedIn creates the site integration.
func NewLinkedIn() *LinkedIn {
	return &LinkedIn{}
}

func (s *LinkedIn) Name() string { return "linkedin" }

func (s *LinkedIn) SearchURL(sub model.SubTask) string {
	parts := strings.Fields(sub.Name)
	var first, last string
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	q := url.Values{}
	q.Set("firstName", first)
	q.Set("lastName", last)
	return linkedinBase + "/pub/dir?" + q.Encode()
}

func (s *LinkedIn) ResolveLink(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return linkedinBase + link
}

func (s *LinkedIn) ParseSearchPage(html string) ([]model.Person, error) {
	if !strings.Contains(html, "linkedin.com/in/") {
		if strings.Contains(html, "pub/dir") {
			return nil, nil
		}
		return nil, eris.New("linkedin: unrecognized directory page shape")
	}

	seen := make(map[string]struct{})
	var out []model.Person
	for _, m := range liCardRE.FindAllStringSubmatch(html, -1) {
		link, nameHTML := m[1], m[2]
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		p := model.Person{
			Name:       collapseSpaces(stripTags(nameHTML)),
			DetailLink: link,
		}
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *LinkedIn) ParseDetailPage(html string) (*model.Person, error) {
	if !strings.Contains(html, "linkedin.com") {
		return nil, eris.New("linkedin: unrecognized profile page shape")
	}

	name := collapseSpaces(stripTags(firstGroup(liTitleRE, html)))
	if name == "" {
		return nil, nil
	}
	return &model.Person{Name: name}, nil
}
