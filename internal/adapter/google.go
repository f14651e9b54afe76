package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amishk599/jobwatch/internal/model"
)

const googleBaseURL = "https://careers.google.com/api/v3/search/"

// unknownLocation is used by sources that omit a location rather than
// dropping the listing.
const unknownLocation = "Unknown Location"

type googleJob struct {
	Title     string           `json:"title"`
	ApplyURL  string           `json:"apply_url"`
	Created   string           `json:"created"`
	Locations []googleLocation `json:"locations"`
}

type googleLocation struct {
	Display string `json:"display"`
}

type googleResponse struct {
	Jobs []googleJob `json:"jobs"`
}

// GoogleAdapter pages through the Google careers search API. An empty page
// marks the end of the results.
type GoogleAdapter struct {
	query   url.Values
	baseURL string
	client  *http.Client
}

// NewGoogleAdapter creates an adapter for the given search parameters,
// e.g. {"q": "ai", "location": "Canada"}.
func NewGoogleAdapter(query map[string]string, client *http.Client) *GoogleAdapter {
	v := url.Values{}
	for k, val := range query {
		v.Set(k, val)
	}
	return &GoogleAdapter{query: v, baseURL: googleBaseURL, client: client}
}

// FetchPage retrieves one page of search results.
func (a *GoogleAdapter) FetchPage(ctx context.Context, page int) (model.Page, error) {
	v := url.Values{}
	for k, vals := range a.query {
		v[k] = vals
	}
	v.Set("page", strconv.Itoa(page))

	var gResp googleResponse
	what := "google fetch for page " + strconv.Itoa(page)
	if err := getJSON(ctx, a.client, a.baseURL+"?"+v.Encode(), what, &gResp); err != nil {
		return model.Page{}, err
	}
	if len(gResp.Jobs) == 0 {
		return model.Page{}, nil
	}

	listings := make([]model.RawListing, 0, len(gResp.Jobs))
	for _, gj := range gResp.Jobs {
		location := unknownLocation
		if len(gj.Locations) > 0 && gj.Locations[0].Display != "" {
			location = gj.Locations[0].Display
		}
		listings = append(listings, model.RawListing{
			Title:     gj.Title,
			Location:  location,
			PostedRaw: gj.Created,
			URL:       gj.ApplyURL,
		})
	}
	return model.Page{Listings: listings, HasMore: true}, nil
}

var _ model.PageFetcher = (*GoogleAdapter)(nil)
