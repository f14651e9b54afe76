package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/jobwatch/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	FirstPublished string             `json:"first_published"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API.
// The board is returned whole, so there is only ever one page.
type GreenhouseAdapter struct {
	boardToken string
	baseURL    string
	client     *http.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		boardToken: boardToken,
		baseURL:    greenhouseBaseURL,
		client:     client,
	}
}

// FetchPage retrieves the board. The posting timestamp is first_published
// only: updated_at moves on every edit and would re-key the listing.
func (a *GreenhouseAdapter) FetchPage(ctx context.Context, page int) (model.Page, error) {
	if page > 1 {
		return model.Page{}, nil
	}

	url := fmt.Sprintf("%s/%s/jobs", a.baseURL, a.boardToken)
	var ghResp greenhouseResponse
	if err := getJSON(ctx, a.client, url, "greenhouse fetch for "+a.boardToken, &ghResp); err != nil {
		return model.Page{}, err
	}

	listings := make([]model.RawListing, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		listings = append(listings, model.RawListing{
			Title:     gj.Title,
			Location:  gj.Location.Name,
			PostedRaw: gj.FirstPublished,
			URL:       gj.AbsoluteURL,
		})
	}
	return model.Page{Listings: listings}, nil
}

var _ model.PageFetcher = (*GreenhouseAdapter)(nil)
