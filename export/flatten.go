package export

import (
	"sort"
	"strings"

	"gouden-gids-crawler/models"
)

// Header lists the columns of a flattened record
var Header = []string{
	"url", "category", "name", "location", "description", "phone", "website", "email",
	"social_media", "payment_options", "certificates", "other_information",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"parking_info", "economic_data", "logo", "pictures",
}

// Row flattens a record for tabular output. Lists are joined with "; ",
// sections are rendered as "label: v1, v2" joined with " | " in label order.
func Row(r models.BusinessRecord) []string {
	row := []string{
		r.URL, r.Category, r.Name, r.Location, r.Description, r.Phone, r.Website, r.Email,
		joinList(r.SocialMedia), joinList(r.PaymentOptions), joinList(r.Certificates),
		joinSections(r.OtherInformation),
	}
	for _, day := range models.WeekDays {
		row = append(row, r.WorkingTime.Get(day))
	}
	return append(row,
		joinSections(r.ParkingInfo), joinSections(r.EconomicData), r.Logo, joinList(r.Pictures))
}

func joinList(values []string) string {
	return strings.Join(values, "; ")
}

func joinSections(sections models.Sections) string {
	labels := make([]string, 0, len(sections))
	for label := range sections {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+": "+strings.Join(sections[label], ", "))
	}
	return strings.Join(parts, " | ")
}
