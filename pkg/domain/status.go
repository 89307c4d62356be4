package domain

// StatusCategory selects one of the status attribute sequences.
type StatusCategory string

// Status categories.
const (
	StatusRequirements StatusCategory = "requirements"
	StatusRolls        StatusCategory = "rolls"
)

// Attribute is a numeric status entry. IDs are unique within a sequence.
type Attribute struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Value       int    `json:"value"`
	Description string `json:"description,omitempty"`
}

// Status is the companion record of a character keyed by the same id.
type Status struct {
	Requirements []Attribute `json:"requirements"`
	Rolls        []Attribute `json:"rolls"`
}

// Attributes returns the sequence for category.
func (s Status) Attributes(category StatusCategory) ([]Attribute, bool) {
	switch category {
	case StatusRequirements:
		return s.Requirements, true
	case StatusRolls:
		return s.Rolls, true
	}
	return nil, false
}

// Clone returns a deep copy of the status.
func (s Status) Clone() Status {
	return Status{
		Requirements: cloneAttributes(s.Requirements),
		Rolls:        cloneAttributes(s.Rolls),
	}
}

// Normalize replaces nil sequences with empty ones.
func (s Status) Normalize() Status {
	if s.Requirements == nil {
		s.Requirements = []Attribute{}
	}
	if s.Rolls == nil {
		s.Rolls = []Attribute{}
	}
	return s
}

// UpdateStatusAttribute sets the value of the attribute identified by
// (category, id). An unknown category or id leaves the status unchanged and
// reports false.
func UpdateStatusAttribute(s Status, category StatusCategory, id int, value int) (Status, bool) {
	attrs, ok := s.Attributes(category)
	if !ok {
		return s, false
	}
	idx := -1
	for i, a := range attrs {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, false
	}
	out := s.Clone()
	switch category {
	case StatusRequirements:
		out.Requirements[idx].Value = value
	case StatusRolls:
		out.Rolls[idx].Value = value
	}
	return out, true
}

func cloneAttributes(in []Attribute) []Attribute {
	if in == nil {
		return nil
	}
	out := make([]Attribute, len(in))
	copy(out, in)
	return out
}
