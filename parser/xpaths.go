package parser

import (
	"fmt"
	"strings"

	"gouden-gids-crawler/models"
)

// XPathContains builds an expression matching every element whose attribute
// (or relative path) value contains val as a whole-word-ish fragment
func XPathContains(element, attr, val string) string {
	return fmt.Sprintf("//%s[contains(concat(' ', normalize-space(%s), ' '), '%s')]", element, attr, val)
}

// Selectors for goudengids.nl pages. They are tied to the site's markup and
// break whenever the site changes.
var (
	NameXPath        = XPathContains("h1", "@itemprop", "name")
	LocationXPath    = XPathContains("span", "@itemprop", "address")
	DescriptionXPath = XPathContains("div", "h3/text()", "Beschrijving") + "/div"
	PhoneXPath       = XPathContains("a", "@data-ta", "PhoneButtonClick")
	WebsiteXPath     = XPathContains("div", "@data-ta", "WebsiteActionClick") + "/@data-js-value"
	EmailXPath       = XPathContains("div", "@data-ta", "EmailActionClick") + "/@data-js-value"
	SocialMediaXPath = XPathContains("div", "@class", "flex flex-wrap social-media-wrap") + "/a/@href"

	PaymentOptionsXPath = XPathContains("div", "h3", "Betaalmogelijkheden") + "//li/@title"
	CertificatesXPath   = XPathContains("div", "h3", "Certificeringen") + "//li/span/text()"

	OtherInformationSectionXPath = XPathContains("div", "h3", "Overige informatie") +
		XPathContains("div", "span/@class", "tab__subtitle")
	OtherInformationTitleXPath = "normalize-space(span)"
	OtherInformationValueXPath = "//li/span/text()"

	// workingDayXPath carries a {day} placeholder, see WorkingDayXPath
	workingDayXPath = XPathContains("div", "h3", "Openingsuren") +
		XPathContains("div", "div/text()", "{day}")

	// TODO: replace with a relative locator once the pagination block gets a stable attribute
	MaxPageXPath = "/html/body/main/div/div/div[2]/div[1]/div[2]/div[2]/ul/li[8]/a/text()"
	ListingXPath = XPathContains("li", "@itemtype", "http://schema.org/LocalBusiness") + "/@data-href"

	ParkingInfoXPath      = XPathContains("div", "@id", "parking-info") + "//li"
	ParkingInfoNameXPath  = "normalize-space(span)"
	ParkingInfoValueXPath = "text()"

	EconomicDataXPath      = XPathContains("div", "@id", "economic-data") + "//li"
	EconomicDataNameXPath  = "normalize-space(span)"
	EconomicDataValueXPath = "text()"
)

// CSS selectors for the media block, queried through goquery
const (
	LogoSelector     = "img[itemprop='logo']"
	PicturesSelector = "div[data-js-gallery] img, div.gallery img"
)

// WorkingDayXPath returns the opening-hours row selector for one day
func WorkingDayXPath(day models.DutchWeekDay) string {
	return strings.ReplaceAll(workingDayXPath, "{day}", string(day))
}
