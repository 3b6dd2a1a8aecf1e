package changelog

import (
	"strings"

	"github.com/wahlandcase/applypr/internal/models"
)

const (
	electricKey = "eléctrico"
	gasKey      = "gas"
	portalKey   = "oficinavirtual"
	commonKey   = "COMÚN"
	othersKey   = "others"
	topFeature  = ":fire: top feature"
)

// typeKeys are the product lines a PR is filed under, in output order
var typeKeys = []string{electricKey, gasKey, portalKey}

// Item is one PR or issue as it appears in the changelog
type Item struct {
	Title  string
	Number int
	URL    string
	Body   string
	Labels []models.Label
}

func itemFrom(is models.Issue) Item {
	return Item{Title: is.Title, Number: is.Number, URL: is.HTMLURL, Body: is.Body, Labels: is.Labels}
}

// matchLabel returns the first key contained in a label name, looking at
// labels in order. Unless skipCustom is set, a "custom" or "internal" label
// wins outright.
func matchLabel(keys []string, labels []models.Label, skipCustom bool) string {
	if !skipCustom {
		for _, l := range labels {
			switch name := strings.ToLower(l.Name); name {
			case "custom", "internal":
				return name
			}
		}
	}
	for _, l := range labels {
		name := strings.ToLower(l.Name)
		for _, k := range keys {
			if strings.Contains(name, k) {
				return k
			}
		}
	}
	return othersKey
}

// sections holds items per product line and category
type sections map[string]map[string][]Item

func newSections(categories []string) sections {
	s := sections{}
	for _, t := range append(append([]string{}, typeKeys...), othersKey) {
		s[t] = map[string][]Item{}
		for _, c := range categories {
			s[t][c] = nil
		}
	}
	return s
}

func (s sections) add(typeKey, category string, it Item) {
	if _, ok := s[typeKey][category]; !ok {
		return
	}
	s[typeKey][category] = append(s[typeKey][category], it)
}

// settle drops the categories that make no sense per product line and
// files the electricity-only categories of common PRs under electricity
func (s sections) settle() {
	for _, t := range []string{gasKey, electricKey, othersKey} {
		delete(s[t], "custom")
		delete(s[t], "internal")
		delete(s[t], "traduccions")
	}
	for _, c := range []string{"gis", "telegestio", "medidas", "facturacio"} {
		if _, ok := s[othersKey][c]; !ok {
			continue
		}
		s[electricKey][c] = append(s[electricKey][c], s[othersKey][c]...)
		s[othersKey][c] = nil
	}
	s[commonKey] = s[othersKey]
	delete(s, othersKey)
}

// bugLast moves "bug" to the end of the category order
func bugLast(categories []string) []string {
	out := make([]string, 0, len(categories))
	hasBug := false
	for _, c := range categories {
		if c == "bug" {
			hasBug = true
			continue
		}
		out = append(out, c)
	}
	if hasBug {
		out = append(out, "bug")
	}
	return out
}
