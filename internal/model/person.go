package model

// PhoneType classifies a phone number as reported by the source site.
type PhoneType string

const (
	PhoneWireless PhoneType = "wireless"
	PhoneLandline PhoneType = "landline"
	PhoneVoIP     PhoneType = "voip"
	PhoneUnknown  PhoneType = "unknown"
)

// Phone is one contact number with its source metadata.
type Phone struct {
	Number  string    `json:"number"`
	Type    PhoneType `json:"type"`
	Carrier string    `json:"carrier,omitempty"`
	Primary bool      `json:"primary"`
}

// Address is a current or prior street address.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip,omitempty"`
}

// Person is one parsed people-search record. SubtaskIndex ties the record
// back to the (name, location) unit that produced it.
type Person struct {
	SubtaskIndex  int       `json:"subtask_index"`
	Name          string    `json:"name"`
	Age           int       `json:"age,omitempty"`
	Phones        []Phone   `json:"phones,omitempty"`
	Emails        []string  `json:"emails,omitempty"`
	Addresses     []Address `json:"addresses,omitempty"`
	PropertyValue int       `json:"property_value,omitempty"`
	DetailLink    string    `json:"detail_link,omitempty"`
	FromCache     bool      `json:"-"`
}

// PrimaryPhone returns the record's primary number, or the first one if no
// number is flagged primary.
func (p *Person) PrimaryPhone() string {
	for _, ph := range p.Phones {
		if ph.Primary {
			return ph.Number
		}
	}
	if len(p.Phones) > 0 {
		return p.Phones[0].Number
	}
	return ""
}
