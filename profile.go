package devtoolkit

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	maxDisplayNameLen = 100
	maxBioLen         = 500
	maxLocationLen    = 100
)

// validateProfile trims p and checks its field limits. Link fields must be
// empty or absolute http(s) URLs.
func validateProfile(p Profile) (Profile, error) {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Bio = strings.TrimSpace(p.Bio)
	p.Location = strings.TrimSpace(p.Location)
	p.Website = strings.TrimSpace(p.Website)
	p.TwitterURL = strings.TrimSpace(p.TwitterURL)
	p.LinkedinURL = strings.TrimSpace(p.LinkedinURL)
	p.GithubURL = strings.TrimSpace(p.GithubURL)

	limits := []struct {
		field, label, value string
		max                 int
	}{
		{"display_name", "Display name", p.DisplayName, maxDisplayNameLen},
		{"bio", "Bio", p.Bio, maxBioLen},
		{"location", "Location", p.Location, maxLocationLen},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return Profile{}, invalid(l.field, fmt.Sprintf("%s must be %d characters or fewer", l.label, l.max))
		}
	}

	links := []struct{ field, label, value string }{
		{"website", "Website", p.Website},
		{"twitter_url", "Twitter", p.TwitterURL},
		{"linkedin_url", "LinkedIn", p.LinkedinURL},
		{"github_url", "GitHub", p.GithubURL},
	}
	for _, l := range links {
		if l.value != "" && !isHTTPURL(l.value) {
			return Profile{}, invalid(l.field, l.label+" must be a valid URL")
		}
	}
	return p, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
