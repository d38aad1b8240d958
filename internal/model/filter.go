package model

// Filter is the declarative record predicate applied after parsing.
// The zero value accepts everything.
type Filter struct {
	MinAge           int         `json:"min_age,omitempty"`
	MaxAge           int         `json:"max_age,omitempty"`
	ExcludePhoneType []PhoneType `json:"exclude_phone_type,omitempty"`
	ExcludeCarriers  []string    `json:"exclude_carriers,omitempty"`
	MinPropertyValue int         `json:"min_property_value,omitempty"`
	RequirePhone     bool        `json:"require_phone,omitempty"`
}
