package types

import "strings"

// Address is the shipping snapshot embedded into orders. It is a copy, not a
// reference; later edits to a customer's address book never touch settled
// orders.
type Address struct {
	FullName    string `gorm:"column:full_name" json:"full_name"`
	Line1       string `gorm:"column:line1" json:"line1"`
	Line2       string `gorm:"column:line2" json:"line2,omitempty"`
	City        string `gorm:"column:city" json:"city"`
	Governorate string `gorm:"column:governorate" json:"governorate"`
	PostalCode  string `gorm:"column:postal_code" json:"postal_code"`
	Phone       string `gorm:"column:phone" json:"phone"`
}

// Validate reports the first missing required field, if any.
func (a Address) Validate() string {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return "full_name"
	case strings.TrimSpace(a.Line1) == "":
		return "line1"
	case strings.TrimSpace(a.City) == "":
		return "city"
	case strings.TrimSpace(a.Governorate) == "":
		return "governorate"
	case strings.TrimSpace(a.Phone) == "":
		return "phone"
	}
	return ""
}
