package sites

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

const spfBase = "https://www.searchpeoplefree.com"

var (
	spfItemRE    = regexp.MustCompile(`(?s)<li class="toc[^"]*">.*?<a href="(/find/[^"]+)"[^>]*>(.*?)</a>(.*?)</li>`)
	spfAgeRE     = regexp.MustCompile(`(?:Age|age):?\s*</?\w*>?\s*(\d{1,3})`)
	spfPhoneRE   = regexp.MustCompile(`(?s)<a href="/phone-lookup/[^"]*"[^>]*>([^<]+)</a>`)
	spfCarrierRE = regexp.MustCompile(`(?s)Carrier:\s*</\w+>\s*([^<]+)<`)
	spfTypeRE    = regexp.MustCompile(`(?s)Type:\s*</\w+>\s*([^<]+)<`)
	spfValueRE   = regexp.MustCompile(`(?s)Estimated (?:home )?value:?\s*</\w+>\s*\$?([\d,]+)`)
	spfEmailRE   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// SearchPeopleFree integrates searchpeoplefree.com.
type SearchPeopleFree struct{}

// NewSearchPeopleFree creates the site integration.
func NewSearchPeopleFree() *SearchPeopleFree {
	return &SearchPeopleFree{}
}

func (s *SearchPeopleFree) Name() string { return "searchpeoplefree" }

func (s *SearchPeopleFree) SearchURL(sub model.SubTask) string {
	name := strings.ToLower(strings.Join(strings.Fields(sub.Name), "-"))
	if sub.Location == "" {
		return fmt.Sprintf("%s/find/%s", spfBase, name)
	}
	loc := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(sub.Location, ",", "")), "-"))
	return fmt.Sprintf("%s/find/%s/%s", spfBase, name, loc)
}

func (s *SearchPeopleFree) ResolveLink(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return spfBase + link
}

func (s *SearchPeopleFree) ParseSearchPage(html string) ([]model.Person, error) {
	if !strings.Contains(html, "toc") && !strings.Contains(html, "/find/") {
		return nil, eris.New("searchpeoplefree: unrecognized search page shape")
	}

	var out []model.Person
	for _, m := range spfItemRE.FindAllStringSubmatch(html, -1) {
		link, nameHTML, rest := m[1], m[2], m[3]
		p := model.Person{
			Name:       collapseSpaces(stripTags(nameHTML)),
			Age:        parseInt(firstGroup(spfAgeRE, rest)),
			DetailLink: link,
		}
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SearchPeopleFree) ParseDetailPage(html string) (*model.Person, error) {
	if !strings.Contains(html, "/phone-lookup/") && !strings.Contains(html, "Carrier:") {
		return nil, eris.New("searchpeoplefree: unrecognized detail page shape")
	}

	p := &model.Person{
		Age:           parseInt(firstGroup(spfAgeRE, html)),
		PropertyValue: parseInt(firstGroup(spfValueRE, html)),
	}

	carrier := strings.TrimSpace(firstGroup(spfCarrierRE, html))
	ptype := classifyPhoneLabel(firstGroup(spfTypeRE, html))
	for i, m := range spfPhoneRE.FindAllStringSubmatch(html, -1) {
		ph := model.Phone{
			Number:  strings.TrimSpace(m[1]),
			Type:    ptype,
			Primary: i == 0,
		}
		if i == 0 {
			ph.Carrier = carrier
		}
		p.Phones = append(p.Phones, ph)
	}

	for _, email := range spfEmailRE.FindAllString(html, 3) {
		p.Emails = append(p.Emails, strings.ToLower(email))
	}

	if len(p.Phones) == 0 && len(p.Emails) == 0 {
		return nil, nil
	}
	return p, nil
}
