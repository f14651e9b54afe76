package seenset

import "github.com/amishk599/jobwatch/internal/model"

func modelListing(title, location, url string) model.RawListing {
	return model.RawListing{Title: title, Location: location, URL: url}
}
