package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/amishk599/jobwatch/internal/browser"
	"github.com/amishk599/jobwatch/internal/model"
)

const metaBaseURL = "https://www.metacareers.com"

// metaScript collects every job link on a rendered Meta results page along
// with the title and location nodes inside it.
const metaScript = `Array.from(document.querySelectorAll('a[href^="/jobs/"]')).map(a => {
	const title = a.querySelector('div._6g3g');
	const span = a.querySelector('span');
	return {
		href: a.getAttribute('href') || '',
		title: title ? title.innerText : '',
		location: span ? span.innerText : '',
		text: a.innerText || ''
	};
})`

// metaCard is one job link as returned by metaScript.
type metaCard struct {
	Href     string `json:"href"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Text     string `json:"text"`
}

// MetaAdapter scrapes the Meta careers search results. The page carries no
// posting dates, so every listing is keyed with an unknown timestamp.
type MetaAdapter struct {
	searchURL string
	renderer  browser.Renderer
}

// NewMetaAdapter creates an adapter for a filtered Meta search URL. The URL
// may contain a {page} placeholder; otherwise page=N is appended.
func NewMetaAdapter(searchURL string, renderer browser.Renderer) *MetaAdapter {
	return &MetaAdapter{searchURL: searchURL, renderer: renderer}
}

// FetchPage renders one results page. A page with no job links ends the
// cycle.
func (a *MetaAdapter) FetchPage(ctx context.Context, page int) (model.Page, error) {
	var cards []metaCard
	if err := a.renderer.Render(ctx, pageURL(a.searchURL, "page", page), metaScript, &cards); err != nil {
		return model.Page{}, fmt.Errorf("meta render page %d: %w", page, err)
	}
	listings := metaListings(cards)
	if len(listings) == 0 {
		return model.Page{}, nil
	}
	return model.Page{Listings: listings, HasMore: true}, nil
}

// metaListings converts rendered cards, keeping the first card per href.
func metaListings(cards []metaCard) []model.RawListing {
	seen := make(map[string]bool, len(cards))
	var listings []model.RawListing
	for _, c := range cards {
		if c.Href == "" || seen[c.Href] {
			continue
		}
		seen[c.Href] = true

		title := extractText(c.Title)
		location := extractText(c.Location)
		if title == "" {
			// Fallback layout: "Title | Location" as the link text.
			text := extractText(c.Text)
			if before, after, ok := strings.Cut(text, "|"); ok {
				title = strings.TrimSpace(before)
				if location == "" {
					location = strings.TrimSpace(after)
				}
			} else {
				title = text
			}
		}
		if location == "" {
			location = unknownLocation
		}

		listings = append(listings, model.RawListing{
			Title:    title,
			Location: location,
			URL:      metaBaseURL + c.Href,
		})
	}
	return listings
}

var _ model.PageFetcher = (*MetaAdapter)(nil)
