package models

// DutchWeekDay is a day of the week as the directory spells it
type DutchWeekDay string

const (
	Monday    DutchWeekDay = "Maandag"
	Tuesday   DutchWeekDay = "Dinsdag"
	Wednesday DutchWeekDay = "Woensdag"
	Thursday  DutchWeekDay = "Donderdag"
	Friday    DutchWeekDay = "Vrijdag"
	Saturday  DutchWeekDay = "Zaterdag"
	Sunday    DutchWeekDay = "Zondag"
)

// WeekDays lists the days in calendar order, Monday first
var WeekDays = []DutchWeekDay{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Sections maps a section label to its normalized values
type Sections map[string][]string

// WorkingTime holds the raw opening-hours row for each day ("" when absent)
type WorkingTime struct {
	Monday    string `json:"monday" yaml:"monday"`
	Tuesday   string `json:"tuesday" yaml:"tuesday"`
	Wednesday string `json:"wednesday" yaml:"wednesday"`
	Thursday  string `json:"thursday" yaml:"thursday"`
	Friday    string `json:"friday" yaml:"friday"`
	Saturday  string `json:"saturday" yaml:"saturday"`
	Sunday    string `json:"sunday" yaml:"sunday"`
}

// Set stores the row for the given day
func (w *WorkingTime) Set(day DutchWeekDay, value string) {
	switch day {
	case Monday:
		w.Monday = value
	case Tuesday:
		w.Tuesday = value
	case Wednesday:
		w.Wednesday = value
	case Thursday:
		w.Thursday = value
	case Friday:
		w.Friday = value
	case Saturday:
		w.Saturday = value
	case Sunday:
		w.Sunday = value
	}
}

// Get returns the row for the given day
func (w WorkingTime) Get(day DutchWeekDay) string {
	switch day {
	case Monday:
		return w.Monday
	case Tuesday:
		return w.Tuesday
	case Wednesday:
		return w.Wednesday
	case Thursday:
		return w.Thursday
	case Friday:
		return w.Friday
	case Saturday:
		return w.Saturday
	case Sunday:
		return w.Sunday
	}
	return ""
}

// BusinessRecord is one scraped business detail page
type BusinessRecord struct {
	URL              string      `json:"url" yaml:"url"`
	Category         string      `json:"category" yaml:"category"`
	Name             string      `json:"name" yaml:"name"`
	Location         string      `json:"location" yaml:"location"`
	Description      string      `json:"description" yaml:"description"`
	Phone            string      `json:"phone" yaml:"phone"`
	Website          string      `json:"website" yaml:"website"`
	Email            string      `json:"email" yaml:"email"`
	SocialMedia      []string    `json:"social_media" yaml:"social_media"`
	PaymentOptions   []string    `json:"payment_options" yaml:"payment_options"`
	Certificates     []string    `json:"certificates" yaml:"certificates"`
	OtherInformation Sections    `json:"other_information" yaml:"other_information"`
	WorkingTime      WorkingTime `json:"working_time" yaml:"working_time"`
	ParkingInfo      Sections    `json:"parking_info" yaml:"parking_info"`
	EconomicData     Sections    `json:"economic_data" yaml:"economic_data"`
	Logo             string      `json:"logo" yaml:"logo"`
	Pictures         []string    `json:"pictures" yaml:"pictures"`
}

// NewBusinessRecord returns a record with every multi-valued field set to
// an empty, non-nil value so serialized output never carries nulls
func NewBusinessRecord() BusinessRecord {
	return BusinessRecord{
		SocialMedia:      []string{},
		PaymentOptions:   []string{},
		Certificates:     []string{},
		OtherInformation: Sections{},
		ParkingInfo:      Sections{},
		EconomicData:     Sections{},
		Pictures:         []string{},
	}
}
