package present

// Accordion sections of the analysis card.
const (
	SectionProperties = "properties"
	SectionUses       = "uses"
)

// DefaultSection is open when a new analysis card appears.
const DefaultSection = SectionProperties

// Accordion keeps at most one section open.
type Accordion struct {
	open string
}

// NewAccordion returns an accordion with section open ("" for none).
func NewAccordion(section string) Accordion {
	return Accordion{open: section}
}

// Toggle opens name and closes any other section, or closes name when it
// is already open.
func (a *Accordion) Toggle(name string) {
	if a.open == name {
		a.open = ""
		return
	}
	a.open = name
}

// IsOpen reports whether name is the open section.
func (a Accordion) IsOpen(name string) bool {
	return name != "" && a.open == name
}

// Open returns the open section, "" when all are closed.
func (a Accordion) Open() string {
	return a.open
}

// IsSection reports whether name is a known section.
func IsSection(name string) bool {
	return name == SectionProperties || name == SectionUses
}
