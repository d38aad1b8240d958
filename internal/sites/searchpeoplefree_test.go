package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

const spfSearchFixture = `<html><body>
<ul>
<li class="toc-item">
  <h2><a href="/find/john-smith/3">John Smith</a></h2>
  <p><b>Age:</b> 44 &middot; Austin, TX</p>
</li>
<li class="toc-item">
  <h2><a href="/find/jane-doe/7">Jane <b>Doe</b></a></h2>
  <p>no age listed</p>
</li>
</ul>
</body></html>`

const spfDetailFixture = `<html><body>
<p><b>Age:</b> 44</p>
<a href="/phone-lookup/212-555-0100">(212) 555-0100</a>
<a href="/phone-lookup/212-555-0199">(212) 555-0199</a>
<p><b>Carrier:</b> Verizon Wireless</p>
<p><b>Type:</b> Wireless</p>
<p><b>Estimated home value:</b> $350,000</p>
<p>Contact: JSmith@Example.com</p>
</body></html>`

func TestSPF_SearchURL(t *testing.T) {
	s := NewSearchPeopleFree()
	assert.Equal(t,
		"https://www.searchpeoplefree.com/find/john-smith/austin-tx",
		s.SearchURL(model.SubTask{Name: "John Smith", Location: "Austin, TX"}),
	)
	assert.Equal(t,
		"https://www.searchpeoplefree.com/find/john-smith",
		s.SearchURL(model.SubTask{Name: "John Smith"}),
	)
}

func TestSPF_ParseSearchPage(t *testing.T) {
	s := NewSearchPeopleFree()
	recs, err := s.ParseSearchPage(spfSearchFixture)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "John Smith", recs[0].Name)
	assert.Equal(t, 44, recs[0].Age)
	assert.Equal(t, "/find/john-smith/3", recs[0].DetailLink)

	assert.Equal(t, "Jane Doe", recs[1].Name, "markup inside the anchor is flattened")
	assert.Zero(t, recs[1].Age)
	assert.Equal(t, "/find/jane-doe/7", recs[1].DetailLink)
}

func TestSPF_ParseSearchPage_UnrecognizedShape(t *testing.T) {
	s := NewSearchPeopleFree()
	_, err := s.ParseSearchPage(`<html><body>interstitial</body></html>`)
	assert.Error(t, err)
}

func TestSPF_ParseDetailPage(t *testing.T) {
	s := NewSearchPeopleFree()
	p, err := s.ParseDetailPage(spfDetailFixture)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 44, p.Age)
	assert.Equal(t, 350000, p.PropertyValue)

	require.Len(t, p.Phones, 2)
	assert.Equal(t, "(212) 555-0100", p.Phones[0].Number)
	assert.Equal(t, model.PhoneWireless, p.Phones[0].Type)
	assert.Equal(t, "Verizon Wireless", p.Phones[0].Carrier)
	assert.True(t, p.Phones[0].Primary)
	assert.Empty(t, p.Phones[1].Carrier, "carrier annotation applies to the primary number")

	require.Len(t, p.Emails, 1)
	assert.Equal(t, "jsmith@example.com", p.Emails[0])
}

func TestSPF_ParseDetailPage_NoUsableData(t *testing.T) {
	s := NewSearchPeopleFree()
	p, err := s.ParseDetailPage(`<html><body><p><b>Carrier:</b> </p></body></html>`)
	require.NoError(t, err)
	assert.Nil(t, p)
}
