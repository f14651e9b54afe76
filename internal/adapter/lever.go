package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amishk599/jobwatch/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Location     string   `json:"location"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	Text       string          `json:"text"`
	Categories leverCategories `json:"categories"`
	CreatedAt  int64           `json:"createdAt"`
	HostedURL  string          `json:"hostedUrl"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	companySlug string
	baseURL     string
	client      *http.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(companySlug string, client *http.Client) *LeverAdapter {
	return &LeverAdapter{
		companySlug: companySlug,
		baseURL:     leverBaseURL,
		client:      client,
	}
}

// FetchPage retrieves all postings in one page.
func (a *LeverAdapter) FetchPage(ctx context.Context, page int) (model.Page, error) {
	if page > 1 {
		return model.Page{}, nil
	}

	url := fmt.Sprintf("%s/%s?mode=json", a.baseURL, a.companySlug)
	var leverJobs []leverJob
	if err := getJSON(ctx, a.client, url, "lever fetch for "+a.companySlug, &leverJobs); err != nil {
		return model.Page{}, err
	}

	listings := make([]model.RawListing, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Determine location: prefer allLocations if available, fallback to location
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is Unix milliseconds
		var posted string
		if lj.CreatedAt > 0 {
			posted = strconv.FormatInt(lj.CreatedAt, 10)
		}

		listings = append(listings, model.RawListing{
			Title:     lj.Text,
			Location:  location,
			PostedRaw: posted,
			URL:       lj.HostedURL,
		})
	}
	return model.Page{Listings: listings}, nil
}

var _ model.PageFetcher = (*LeverAdapter)(nil)
