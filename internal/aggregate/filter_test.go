package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

func TestAccept_AgeBounds(t *testing.T) {
	f := model.Filter{MinAge: 30, MaxAge: 60}

	assert.True(t, Accept(model.Person{Name: "A", Age: 30}, f))
	assert.True(t, Accept(model.Person{Name: "B", Age: 60}, f))
	assert.False(t, Accept(model.Person{Name: "C", Age: 29}, f))
	assert.False(t, Accept(model.Person{Name: "D", Age: 61}, f))
	// Unknown age fails a MinAge constraint rather than passing by default.
	assert.False(t, Accept(model.Person{Name: "E", Age: 0}, f))
	// No constraint, everything passes.
	assert.True(t, Accept(model.Person{Name: "F", Age: 0}, model.Filter{}))
}

func TestAccept_MinPropertyValue(t *testing.T) {
	f := model.Filter{MinPropertyValue: 250000}
	assert.True(t, Accept(model.Person{PropertyValue: 300000}, f))
	assert.False(t, Accept(model.Person{PropertyValue: 100000}, f))
	assert.False(t, Accept(model.Person{}, f))
}

func TestAccept_RequirePhone(t *testing.T) {
	f := model.Filter{RequirePhone: true}
	withPhone := model.Person{Phones: []model.Phone{{Number: "555-0100", Type: model.PhoneWireless}}}
	assert.True(t, Accept(withPhone, f))
	assert.False(t, Accept(model.Person{}, f))

	// RequirePhone counts only numbers that survive the exclusions.
	f.ExcludePhoneType = []model.PhoneType{model.PhoneWireless}
	assert.False(t, Accept(withPhone, f))
}

func TestAccept_PhoneTypeAndCarrierExclusions(t *testing.T) {
	rec := model.Person{Phones: []model.Phone{
		{Number: "555-0100", Type: model.PhoneVoIP},
		{Number: "555-0101", Type: model.PhoneLandline, Carrier: "Verizon"},
	}}

	// One usable number left, record survives.
	assert.True(t, Accept(rec, model.Filter{ExcludePhoneType: []model.PhoneType{model.PhoneVoIP}}))

	// Every number excluded, record dropped.
	f := model.Filter{
		ExcludePhoneType: []model.PhoneType{model.PhoneVoIP},
		ExcludeCarriers:  []string{"verizon"},
	}
	assert.False(t, Accept(rec, f), "carrier match is case-insensitive")

	// A phoneless record is not dropped by phone exclusions alone.
	assert.True(t, Accept(model.Person{Name: "no phones"}, f))
}

func TestAccept_Idempotent(t *testing.T) {
	f := model.Filter{
		MinAge:           25,
		MaxAge:           70,
		ExcludePhoneType: []model.PhoneType{model.PhoneVoIP},
		RequirePhone:     true,
	}
	recs := []model.Person{
		{Name: "pass", Age: 40, Phones: []model.Phone{{Number: "555-0100", Type: model.PhoneWireless}}},
		{Name: "too young", Age: 20, Phones: []model.Phone{{Number: "555-0101", Type: model.PhoneWireless}}},
		{Name: "voip only", Age: 40, Phones: []model.Phone{{Number: "555-0102", Type: model.PhoneVoIP}}},
	}

	first, _ := Apply(recs, f)
	second, rejectedAgain := Apply(first, f)

	assert.Equal(t, first, second, "re-applying the filter to its own output must be a no-op")
	assert.Zero(t, rejectedAgain)
}

func TestApply_CountsFilteredOut(t *testing.T) {
	f := model.Filter{MinAge: 50}
	recs := []model.Person{
		{Name: "a", Age: 60},
		{Name: "b", Age: 30},
		{Name: "c", Age: 55},
		{Name: "d", Age: 10},
	}
	kept, filteredOut := Apply(recs, f)
	assert.Len(t, kept, 2)
	assert.Equal(t, 2, filteredOut)
}
