package models

import "slices"

// Gender is one of the two accepted values.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Citizen is one person record of an import. Relatives holds ids of other
// citizens in the same import; the relation is kept symmetric.
type Citizen struct {
	ID        int64   `json:"citizen_id"`
	Town      string  `json:"town"`
	Street    string  `json:"street"`
	Building  string  `json:"building"`
	Apartment int64   `json:"apartment"`
	Name      string  `json:"name"`
	BirthDate Date    `json:"birth_date"`
	Gender    Gender  `json:"gender"`
	Relatives []int64 `json:"relatives"`
}

// Clone returns a deep copy. Relatives is never nil in the copy.
func (c Citizen) Clone() Citizen {
	out := c
	out.Relatives = slices.Clone(c.Relatives)
	if out.Relatives == nil {
		out.Relatives = []int64{}
	}
	return out
}

// HasRelative reports whether id is among c's relatives.
func (c Citizen) HasRelative(id int64) bool {
	return slices.Contains(c.Relatives, id)
}

// CitizenPatch carries the fields a PATCH request sets. Nil means untouched.
type CitizenPatch struct {
	Town      *string
	Street    *string
	Building  *string
	Apartment *int64
	Name      *string
	BirthDate *Date
	Gender    *Gender
	Relatives *[]int64
}

// IsEmpty reports whether the patch sets nothing.
func (p CitizenPatch) IsEmpty() bool {
	return p.Town == nil && p.Street == nil && p.Building == nil && p.Apartment == nil &&
		p.Name == nil && p.BirthDate == nil && p.Gender == nil && p.Relatives == nil
}

// ApplyTo returns a copy of c with the patch applied.
func (p CitizenPatch) ApplyTo(c Citizen) Citizen {
	out := c.Clone()
	if p.Town != nil {
		out.Town = *p.Town
	}
	if p.Street != nil {
		out.Street = *p.Street
	}
	if p.Building != nil {
		out.Building = *p.Building
	}
	if p.Apartment != nil {
		out.Apartment = *p.Apartment
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.BirthDate != nil {
		out.BirthDate = *p.BirthDate
	}
	if p.Gender != nil {
		out.Gender = *p.Gender
	}
	if p.Relatives != nil {
		out.Relatives = slices.Clone(*p.Relatives)
		if out.Relatives == nil {
			out.Relatives = []int64{}
		}
	}
	return out
}
