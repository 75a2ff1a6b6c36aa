package models

// ICalSource represents a named iCal calendar source
type ICalSource struct {
	ID   string `json:"id" yaml:"id"`     // Unique identifier
	Name string `json:"name" yaml:"name"` // Display name
	URL  string `json:"url" yaml:"url"`   // iCal URL

	// RemindOffsetMin is the reminder offset applied to imported events
	// (iCal VALARM triggers are not honored). Negative disables reminders
	// for this source.
	RemindOffsetMin int `json:"remind_offset_min" yaml:"remind_offset_min"`
}

// Validate checks if the iCal source has required fields
func (s *ICalSource) Validate() bool {
	return s.Name != "" && s.URL != ""
}
