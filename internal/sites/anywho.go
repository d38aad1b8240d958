package sites

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

const anywhoBase = "https://www.anywho.com"

var (
	awCardRE  = regexp.MustCompile(`(?s)<div class="person-result[^"]*">.*?<a[^>]+href="(/people/[^"]+)"[^>]*>(.*?)</a>(.*?)</div>`)
	awAgeRE   = regexp.MustCompile(`(?:Age|AGE)\D{0,10}(\d{1,3})`)
	awPhoneRE = regexp.MustCompile(`\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}`)
)

// Anywho integrates anywho.com.
type Anywho struct{}

// NewAnywho creates the site integration.
func NewAnywho() *Anywho {
	return &Anywho{}
}

func (s *Anywho) Name() string { return "anywho" }

func (s *Anywho) SearchURL(sub model.SubTask) string {
	slug := strings.ToLower(strings.Join(strings.Fields(sub.Name), "-"))
	if sub.Location == "" {
		return fmt.Sprintf("%s/people/%s", anywhoBase, slug)
	}
	loc := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(sub.Location, ",", "")), "-"))
	return fmt.Sprintf("%s/people/%s/%s", anywhoBase, slug, loc)
}

func (s *Anywho) ResolveLink(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return anywhoBase + link
}

func (s *Anywho) ParseSearchPage(html string) ([]model.Person, error) {
	if !strings.Contains(html, "person-result") {
		if strings.Contains(html, "no-results") {
			return nil, nil
		}
		return nil, eris.New("anywho: unrecognized search page shape")
	}

	var out []model.Person
	for _, m := range awCardRE.FindAllStringSubmatch(html, -1) {
		link, nameHTML, rest := m[1], m[2], m[3]
		p := model.Person{
			Name:       collapseSpaces(stripTags(nameHTML)),
			Age:        parseInt(firstGroup(awAgeRE, rest)),
			DetailLink: link,
		}
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Anywho) ParseDetailPage(html string) (*model.Person, error) {
	if !strings.Contains(html, "person-details") && !strings.Contains(html, "person-result") {
		return nil, eris.New("anywho: unrecognized detail page shape")
	}

	p := &model.Person{
		Age: parseInt(firstGroup(awAgeRE, html)),
	}

	seen := make(map[string]struct{})
	for _, number := range awPhoneRE.FindAllString(html, 5) {
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		p.Phones = append(p.Phones, model.Phone{
			Number:  number,
			Type:    model.PhoneUnknown,
			Primary: len(p.Phones) == 0,
		})
	}

	if len(p.Phones) == 0 {
		return nil, nil
	}
	return p, nil
}
