package domain

type Address struct {
	ID           int64
	StreetNumber int
	Street       string
	City         string
	PostalCode   string
	Country      string
}

// SameFields reports whether both addresses carry identical values, ignoring identity.
// Comparison is exact: case and whitespace are significant.
func (a Address) SameFields(other Address) bool {
	return a.StreetNumber == other.StreetNumber &&
		a.Street == other.Street &&
		a.City == other.City &&
		a.PostalCode == other.PostalCode &&
		a.Country == other.Country
}
