package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

const tpsBase = "https://www.truepeoplesearch.com"

var (
	tpsCardRE   = regexp.MustCompile(`(?s)<div class="card-summary"[^>]*data-detail-link="([^"]+)"[^>]*>(.*?)</div>\s*</div>`)
	tpsNameRE   = regexp.MustCompile(`(?s)<div class="h4">(.*?)</div>`)
	tpsAgeRE    = regexp.MustCompile(`Age\s+(\d{1,3})`)
	tpsPhoneRE  = regexp.MustCompile(`(?s)<span[^>]*itemprop="telephone"[^>]*>([^<]+)</span>\s*(?:<span[^>]*class="smaller"[^>]*>\(([^)]*)\)</span>)?`)
	tpsStreetRE = regexp.MustCompile(`(?s)<span[^>]*itemprop="streetAddress"[^>]*>([^<]+)</span>`)
	tpsCityRE   = regexp.MustCompile(`(?s)<span[^>]*itemprop="addressLocality"[^>]*>([^<]+)</span>`)
	tpsStateRE  = regexp.MustCompile(`(?s)<span[^>]*itemprop="addressRegion"[^>]*>([^<]+)</span>`)
)

// TruePeopleSearch integrates truepeoplesearch.com.
type TruePeopleSearch struct{}

// NewTruePeopleSearch creates the site integration.
func NewTruePeopleSearch() *TruePeopleSearch {
	return &TruePeopleSearch{}
}

func (s *TruePeopleSearch) Name() string { return "truepeoplesearch" }

func (s *TruePeopleSearch) SearchURL(sub model.SubTask) string {
	q := url.Values{}
	q.Set("name", sub.Name)
	if sub.Location != "" {
		q.Set("citystatezip", sub.Location)
	}
	return tpsBase + "/results?" + q.Encode()
}

func (s *TruePeopleSearch) ResolveLink(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return tpsBase + link
}

func (s *TruePeopleSearch) ParseSearchPage(html string) ([]model.Person, error) {
	if !strings.Contains(html, "card-summary") {
		if strings.Contains(html, "No Results Found") || strings.Contains(html, "record-count") {
			return nil, nil
		}
		return nil, eris.New("truepeoplesearch: unrecognized search page shape")
	}

	var out []model.Person
	for _, m := range tpsCardRE.FindAllStringSubmatch(html, -1) {
		link, body := m[1], m[2]
		p := model.Person{
			Name:       collapseSpaces(stripTags(firstGroup(tpsNameRE, body))),
			Age:        parseInt(firstGroup(tpsAgeRE, body)),
			DetailLink: link,
		}
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *TruePeopleSearch) ParseDetailPage(html string) (*model.Person, error) {
	if !strings.Contains(html, "personDetails") && !strings.Contains(html, "itemprop=\"telephone\"") {
		return nil, eris.New("truepeoplesearch: unrecognized detail page shape")
	}

	p := &model.Person{
		Name: collapseSpaces(stripTags(firstGroup(tpsNameRE, html))),
		Age:  parseInt(firstGroup(tpsAgeRE, html)),
	}

	for i, m := range tpsPhoneRE.FindAllStringSubmatch(html, -1) {
		ph := model.Phone{
			Number:  strings.TrimSpace(m[1]),
			Type:    classifyPhoneLabel(m[2]),
			Primary: i == 0,
		}
		p.Phones = append(p.Phones, ph)
	}

	street := stripTags(firstGroup(tpsStreetRE, html))
	if street != "" {
		p.Addresses = append(p.Addresses, model.Address{
			Street: street,
			City:   stripTags(firstGroup(tpsCityRE, html)),
			State:  stripTags(firstGroup(tpsStateRE, html)),
		})
	}

	if p.Name == "" && len(p.Phones) == 0 {
		return nil, nil
	}
	return p, nil
}

// classifyPhoneLabel maps the site's phone annotation to a PhoneType.
func classifyPhoneLabel(label string) model.PhoneType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "wireless", "cell", "mobile":
		return model.PhoneWireless
	case "landline", "home":
		return model.PhoneLandline
	case "voip":
		return model.PhoneVoIP
	default:
		return model.PhoneUnknown
	}
}
