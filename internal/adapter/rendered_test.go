package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeRenderer returns canned JSON per requested URL.
type fakeRenderer struct {
	results map[string]string
	err     error
	urls    []string
}

func (f *fakeRenderer) Render(ctx context.Context, url, script string, out any) error {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return f.err
	}
	body, ok := f.results[url]
	if !ok {
		body = "[]"
	}
	return json.Unmarshal([]byte(body), out)
}

// --- Meta ---

func TestMetaListings(t *testing.T) {
	cards := []metaCard{
		{Href: "/jobs/111/", Title: "Research Scientist", Location: "Menlo Park, CA"},
		{Href: "/jobs/111/", Title: "Research Scientist (dup)", Location: "Menlo Park, CA"},
		{Href: "/jobs/222/", Text: "Software Engineer, AI | Toronto, ON"},
		{Href: "/jobs/333/", Title: "Data Engineer"},
		{Href: "", Title: "no link"},
	}
	got := metaListings(cards)
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://www.metacareers.com/jobs/111/" || got[0].Title != "Research Scientist" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Title != "Software Engineer, AI" || got[1].Location != "Toronto, ON" {
		t.Errorf("pipe fallback = %+v", got[1])
	}
	if got[2].Location != unknownLocation {
		t.Errorf("missing location = %q", got[2].Location)
	}
	for _, l := range got {
		if l.PostedRaw != "" {
			t.Errorf("meta listings carry no timestamp, got %q", l.PostedRaw)
		}
	}
}

func TestMetaAdapter_FetchPage(t *testing.T) {
	r := &fakeRenderer{results: map[string]string{
		"https://meta.test/jobs?q=ai&page=1": `[{"href": "/jobs/1/", "title": "ML Engineer", "location": "Remote"}]`,
	}}
	a := NewMetaAdapter("https://meta.test/jobs?q=ai", r)

	page, err := a.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.HasMore || len(page.Listings) != 1 {
		t.Fatalf("page 1 = %+v", page)
	}

	page, err = a.FetchPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore || len(page.Listings) != 0 {
		t.Errorf("page without links should end pagination, got %+v", page)
	}
}

func TestMetaAdapter_RenderError(t *testing.T) {
	boom := errors.New("browser crashed")
	a := NewMetaAdapter("https://meta.test/jobs", &fakeRenderer{err: boom})
	_, err := a.FetchPage(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped render error, got %v", err)
	}
}

// --- Microsoft ---

func TestMicrosoftListings(t *testing.T) {
	cards := []microsoftCard{
		{
			Title: "Senior Applied Scientist", Location: "Redmond, WA", Date: "Today",
			Href: "/global/en/job/1700001/Senior-Applied-Scientist",
		},
		{
			LinkText: "Software Engineer II", Location: "Vancouver, BC",
			Href: "https://jobs.careers.microsoft.com/global/en/job/1700002/Software-Engineer-II",
		},
		{
			Title: "Principal Engineer – AI & Data: Platform, Copilot", Location: "Toronto, ON",
			AriaLabel: "Job item 1700003",
		},
		{Title: "No way to link", AriaLabel: "Something else"},
	}
	got := microsoftListings(cards)
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://jobs.careers.microsoft.com/global/en/job/1700001/Senior-Applied-Scientist" {
		t.Errorf("URL = %q", got[0].URL)
	}
	if got[0].PostedRaw != "Today" {
		t.Errorf("PostedRaw = %q", got[0].PostedRaw)
	}
	if got[1].Title != "Software Engineer II" {
		t.Errorf("title from link text = %q", got[1].Title)
	}
	want := "https://jobs.careers.microsoft.com/global/en/job/1700003/principal-engineer---ai--data-platform-copilot"
	if got[2].URL != want {
		t.Errorf("reconstructed URL = %q, want %q", got[2].URL, want)
	}
}

func TestMicrosoftSlug_Truncated(t *testing.T) {
	slug := microsoftSlug(strings.Repeat("Engineer ", 20))
	if len(slug) != microsoftSlugMax {
		t.Errorf("len(slug) = %d, want %d", len(slug), microsoftSlugMax)
	}
	if strings.ContainsAny(slug, " ,&:") {
		t.Errorf("slug contains dropped characters: %q", slug)
	}
}

func TestMicrosoftAdapter_FetchPage(t *testing.T) {
	r := &fakeRenderer{results: map[string]string{
		"https://ms.test/search?q=ai&pg=1&pgSz=20": `[{"title": "SWE", "href": "/global/en/job/9/SWE"}, {"title": "skipped"}]`,
	}}
	a := NewMicrosoftAdapter("https://ms.test/search?q=ai&pg={page}&pgSz=20", r)

	page, err := a.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.HasMore || len(page.Listings) != 1 {
		t.Fatalf("page 1 = %+v", page)
	}
	if page.Listings[0].Location != unknownLocation {
		t.Errorf("location = %q", page.Listings[0].Location)
	}

	page, err = a.FetchPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore {
		t.Error("page without cards should end pagination")
	}
	if len(r.urls) != 2 || r.urls[1] != "https://ms.test/search?q=ai&pg=2&pgSz=20" {
		t.Errorf("rendered urls = %v", r.urls)
	}
}
