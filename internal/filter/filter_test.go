package filter

import (
	"testing"

	"github.com/amishk599/jobwatch/internal/model"
)

func listing(title, location string) model.RawListing {
	return model.RawListing{Title: title, Location: location}
}

const engineerOrScientist = `\b(engineer|scientist)\b`

var deepmindLocations = []string{"Zurich, Switzerland", "Mountain View, California, US"}

func TestTitleAndLocationFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		listing   model.RawListing
		wantMatch bool
	}{
		{
			name:      "pattern and location match",
			opts:      Options{TitlePattern: engineerOrScientist, Locations: deepmindLocations},
			listing:   listing("Research Engineer", "Zurich, Switzerland"),
			wantMatch: true,
		},
		{
			name:      "title outside pattern",
			opts:      Options{TitlePattern: engineerOrScientist},
			listing:   listing("Product Manager", "Zurich, Switzerland"),
			wantMatch: false,
		},
		{
			name:      "location outside allow-list",
			opts:      Options{TitlePattern: engineerOrScientist, Locations: deepmindLocations},
			listing:   listing("Research Scientist", "London, United Kingdom"),
			wantMatch: false,
		},
		{
			name:      "pattern is case insensitive",
			opts:      Options{TitlePattern: engineerOrScientist},
			listing:   listing("Staff SCIENTIST, Gemini", ""),
			wantMatch: true,
		},
		{
			name:      "pattern respects word boundaries",
			opts:      Options{TitlePattern: engineerOrScientist},
			listing:   listing("Engineering Manager", ""),
			wantMatch: false,
		},
		{
			name:      "allow-list is substring containment",
			opts:      Options{Locations: []string{"zurich"}},
			listing:   listing("Engineer", "Zurich, Switzerland; London, UK"),
			wantMatch: true,
		},
		{
			name:      "empty location fails non-empty allow-list",
			opts:      Options{Locations: deepmindLocations},
			listing:   listing("Engineer", ""),
			wantMatch: false,
		},
		{
			name:      "exclude keyword wins",
			opts:      Options{TitlePattern: engineerOrScientist, TitleExcludeKeywords: []string{"intern"}},
			listing:   listing("Software Engineer Intern", "Remote"),
			wantMatch: false,
		},
		{
			name:      "title keywords",
			opts:      Options{TitleKeywords: []string{"software engineer", "backend"}},
			listing:   listing("Backend Developer", "Remote"),
			wantMatch: true,
		},
		{
			name:      "exclude location",
			opts:      Options{ExcludeLocations: []string{"India"}},
			listing:   listing("Engineer", "Bangalore, India"),
			wantMatch: false,
		},
		{
			name:      "empty options pass all",
			opts:      Options{},
			listing:   listing("Any Role", "Anywhere"),
			wantMatch: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTitleAndLocationFilter(tt.opts)
			if err != nil {
				t.Fatalf("NewTitleAndLocationFilter: %v", err)
			}
			if got := f.Match(tt.listing); got != tt.wantMatch {
				t.Errorf("Match(%+v) = %v, want %v", tt.listing, got, tt.wantMatch)
			}
		})
	}
}

func TestNewTitleAndLocationFilter_BadPattern(t *testing.T) {
	if _, err := NewTitleAndLocationFilter(Options{TitlePattern: "(unclosed"}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
