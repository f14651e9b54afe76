package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/amishk599/jobwatch/internal/browser"
	"github.com/amishk599/jobwatch/internal/model"
)

const (
	microsoftBaseURL = "https://jobs.careers.microsoft.com"
	microsoftSlugMax = 80
)

// microsoftScript extracts each result card. The job id lives on an
// ancestor's aria-label and is only needed when the card has no link.
const microsoftScript = `Array.from(document.querySelectorAll('div.ms-DocumentCard')).map(card => {
	const after = name => {
		const icon = card.querySelector('i[data-icon-name="' + name + '"]');
		if (!icon) return '';
		let el = icon.nextElementSibling;
		while (el && el.tagName !== 'SPAN') el = el.nextElementSibling;
		if (!el) el = icon.parentElement && icon.parentElement.querySelector('span');
		return el ? el.innerText : '';
	};
	const h2 = card.querySelector('h2');
	const link = Array.from(card.querySelectorAll('a[href]'))
		.find(a => /\/global\/en\/job\/\d+\//.test(a.getAttribute('href')));
	const parent = card.closest('div[aria-label^="Job item"]');
	return {
		title: h2 ? h2.innerText : '',
		location: after('POI'),
		date: after('Clock'),
		href: link ? link.getAttribute('href') : '',
		link_text: link ? link.innerText : '',
		aria_label: parent ? parent.getAttribute('aria-label') : ''
	};
})`

var (
	microsoftJobHref  = regexp.MustCompile(`/global/en/job/\d+/`)
	microsoftJobItem  = regexp.MustCompile(`Job item (\d+)`)
	microsoftSlugDrop = regexp.MustCompile(`[^a-z0-9\-]`)
)

// microsoftCard is one result card as returned by microsoftScript.
type microsoftCard struct {
	Title     string `json:"title"`
	Location  string `json:"location"`
	Date      string `json:"date"`
	Href      string `json:"href"`
	LinkText  string `json:"link_text"`
	AriaLabel string `json:"aria_label"`
}

// MicrosoftAdapter scrapes the Microsoft careers search results.
type MicrosoftAdapter struct {
	searchURL string
	renderer  browser.Renderer
}

// NewMicrosoftAdapter creates an adapter for a Microsoft search URL. The URL
// may contain a {page} placeholder; otherwise pg=N is appended.
func NewMicrosoftAdapter(searchURL string, renderer browser.Renderer) *MicrosoftAdapter {
	return &MicrosoftAdapter{searchURL: searchURL, renderer: renderer}
}

// FetchPage renders one results page. No cards means no more pages.
func (a *MicrosoftAdapter) FetchPage(ctx context.Context, page int) (model.Page, error) {
	var cards []microsoftCard
	if err := a.renderer.Render(ctx, pageURL(a.searchURL, "pg", page), microsoftScript, &cards); err != nil {
		return model.Page{}, fmt.Errorf("microsoft render page %d: %w", page, err)
	}
	if len(cards) == 0 {
		return model.Page{}, nil
	}
	return model.Page{Listings: microsoftListings(cards), HasMore: true}, nil
}

// microsoftListings converts cards, dropping those with no recoverable URL.
func microsoftListings(cards []microsoftCard) []model.RawListing {
	listings := make([]model.RawListing, 0, len(cards))
	for _, c := range cards {
		title := extractText(c.Title)
		location := extractText(c.Location)
		if location == "" {
			location = unknownLocation
		}

		var jobURL string
		if c.Href != "" && microsoftJobHref.MatchString(c.Href) {
			jobURL = c.Href
			if !strings.HasPrefix(jobURL, "http") {
				jobURL = microsoftBaseURL + jobURL
			}
			if title == "" {
				title = extractText(c.LinkText)
			}
		} else if m := microsoftJobItem.FindStringSubmatch(c.AriaLabel); m != nil && title != "" {
			jobURL = fmt.Sprintf("%s/global/en/job/%s/%s", microsoftBaseURL, m[1], microsoftSlug(title))
		}
		if jobURL == "" {
			continue
		}

		listings = append(listings, model.RawListing{
			Title:     title,
			Location:  location,
			PostedRaw: extractText(c.Date),
			URL:       jobURL,
		})
	}
	return listings
}

// microsoftSlug rebuilds the title slug Microsoft uses in job URLs.
func microsoftSlug(title string) string {
	s := strings.ToLower(title)
	s = strings.NewReplacer(" ", "-", "–", "-", "&", "", ",", "", "’", "", ":", "").Replace(s)
	s = microsoftSlugDrop.ReplaceAllString(s, "")
	if len(s) > microsoftSlugMax {
		s = s[:microsoftSlugMax]
	}
	return s
}

var _ model.PageFetcher = (*MicrosoftAdapter)(nil)
