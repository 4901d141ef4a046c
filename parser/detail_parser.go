package parser

import (
	"net/url"
	"strings"

	"gouden-gids-crawler/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DetailParser extracts a business record from a business detail page
type DetailParser struct {
	baseURL *url.URL
}

// NewDetailParser creates a new DetailParser. baseURL is used to resolve
// relative image sources; it may be empty.
func NewDetailParser(baseURL string) *DetailParser {
	dp := &DetailParser{}
	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		dp.baseURL = u
	}
	return dp
}

// ParseBusinessPage extracts every field of a detail page. Fields whose
// selectors match nothing keep their empty defaults; this never fails.
func (dp *DetailParser) ParseBusinessPage(doc *html.Node) models.BusinessRecord {
	record := models.NewBusinessRecord()

	record.Name = textOf(doc, NameXPath)
	record.Location = textOf(doc, LocationXPath)
	record.Description = textOf(doc, DescriptionXPath)
	record.Phone = textOf(doc, PhoneXPath)
	record.Website = textOf(doc, WebsiteXPath)
	record.Email = textOf(doc, EmailXPath)
	record.SocialMedia = textsOf(doc, SocialMediaXPath)
	record.PaymentOptions = textsOf(doc, PaymentOptionsXPath)
	record.Certificates = textsOf(doc, CertificatesXPath)

	record.OtherInformation = ExtractSections(doc,
		OtherInformationSectionXPath, OtherInformationTitleXPath, OtherInformationValueXPath)
	record.WorkingTime = dp.extractWorkingTime(doc)

	// Parking and economic data are filled in client side; on a plain HTTP
	// fetch these come back empty unless the page was rendered first.
	record.ParkingInfo = ExtractSections(doc,
		ParkingInfoXPath, ParkingInfoNameXPath, ParkingInfoValueXPath)
	record.EconomicData = ExtractSections(doc,
		EconomicDataXPath, EconomicDataNameXPath, EconomicDataValueXPath)

	media := goquery.NewDocumentFromNode(doc)
	record.Logo = dp.extractLogo(media)
	record.Pictures = dp.extractPictures(media)

	return record
}

// ExtractSections collects repeating label/value blocks. sectionXPath selects
// the blocks; nameXPath and valueXPath are evaluated relative to each block.
// A label seen twice keeps the values of its last block.
func ExtractSections(doc *html.Node, sectionXPath, nameXPath, valueXPath string) models.Sections {
	sections := models.Sections{}
	for _, section := range nodesOf(doc, sectionXPath) {
		name := textOf(section, nameXPath)
		sections[name] = textsOf(section, valueXPath)
	}
	return sections
}

// extractWorkingTime looks up the opening-hours row of each weekday
func (dp *DetailParser) extractWorkingTime(doc *html.Node) models.WorkingTime {
	var wt models.WorkingTime
	for _, day := range models.WeekDays {
		wt.Set(day, textOf(doc, WorkingDayXPath(day)))
	}
	return wt
}

// extractLogo returns the logo image source
func (dp *DetailParser) extractLogo(doc *goquery.Document) string {
	return dp.imageSource(doc.Find(LogoSelector).First())
}

// extractPictures returns the gallery image sources in page order
func (dp *DetailParser) extractPictures(doc *goquery.Document) []string {
	pictures := []string{}
	doc.Find(PicturesSelector).Each(func(i int, s *goquery.Selection) {
		if src := dp.imageSource(s); src != "" {
			pictures = append(pictures, src)
		}
	})
	return pictures
}

// imageSource prefers src and falls back to the lazy-loading data-src
func (dp *DetailParser) imageSource(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	src := normalizeWhitespace(s.AttrOr("src", ""))
	if src == "" || strings.HasPrefix(src, "data:") {
		src = normalizeWhitespace(s.AttrOr("data-src", ""))
	}
	if src == "" {
		return ""
	}
	return dp.resolve(src)
}

func (dp *DetailParser) resolve(ref string) string {
	if dp.baseURL == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return dp.baseURL.ResolveReference(u).String()
}
