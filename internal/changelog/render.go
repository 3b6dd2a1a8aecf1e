package changelog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wahlandcase/applypr/internal/export"
)

var (
	topHeading    = regexp.MustCompile(`^##? `)
	innerHeading  = regexp.MustCompile(`\n##? `)
	issueRef      = regexp.MustCompile(`#(\d+)`)
	detailsCutoff = "#### Afectaciones"
)

func (c *Changelog) sectionOrder() []string {
	return append(append([]string{}, typeKeys...), commonKey)
}

// RenderTop lists the top features
func (c *Changelog) RenderTop() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# TOP FEATURES version %s\n", c.opts.Milestone)
	for _, it := range c.top {
		b.WriteString(c.summaryLine(it))
	}
	return b.String()
}

// RenderSummary is the one-line-per-PR changelog
func (c *Changelog) RenderSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Changelog version %s\n", c.opts.Milestone)
	c.eachSection(&b, c.summaryLine)
	if c.opts.ShowIssues {
		b.WriteString("\n# Issues:  \n")
		for _, it := range c.issues {
			b.WriteString(c.summaryLine(it))
		}
	}
	if len(c.others) > 0 {
		b.WriteString("\n# Others :  \n")
		for _, it := range c.others {
			b.WriteString(c.summaryLine(it))
		}
	}
	return b.String()
}

// RenderDetailed carries every PR description
func (c *Changelog) RenderDetailed() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Detalles version %s\n", c.opts.Milestone)
	c.eachSection(&b, c.detail)
	if c.opts.ShowIssues {
		for _, it := range c.issues {
			b.WriteString(c.detail(it))
		}
	}
	for _, it := range c.others {
		b.WriteString(c.detail(it))
	}
	return b.String()
}

func (c *Changelog) eachSection(b *strings.Builder, render func(Item) string) {
	for _, t := range c.sectionOrder() {
		fmt.Fprintf(b, "\n## %s\n", strings.ToUpper(t))
		for _, cat := range c.categories {
			items := c.sections[t][cat]
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(b, "\n### %s\n", strings.ToUpper(cat))
			for _, it := range items {
				b.WriteString(render(it))
			}
		}
	}
}

func (c *Changelog) summaryLine(it Item) string {
	return fmt.Sprintf("\n* %s [:fa-plus-circle: detalles](../detailed_%s#%s-%d) - [:fa-github: %d](%s)",
		it.Title, c.opts.Milestone, export.Slugify(it.Title), it.Number, it.Number, it.URL)
}

func (c *Changelog) detail(it Item) string {
	return fmt.Sprintf("\n\n### %s [:fa-github: %d](%s)  %s\n\n%s\n ---",
		it.Title, it.Number, it.URL, c.labelSpans(it), c.detailBody(it.Body))
}

// detailBody demotes headings, links #NNN references and drops the
// "Afectaciones" section
func (c *Changelog) detailBody(body string) string {
	body = strings.TrimSpace(topHeading.ReplaceAllString(body, "#### "))
	body = strings.TrimSpace(innerHeading.ReplaceAllString(body, "\n#### "))
	link := fmt.Sprintf("[:fa-github: $1](https://github.com/%s/%s/pull/$1)", c.opts.Owner, c.opts.Repository)
	body = issueRef.ReplaceAllString(body, link)
	if idx := strings.Index(body, detailsCutoff); idx > 0 {
		body = body[:idx-1]
	}
	return body
}

func (c *Changelog) labelSpans(it Item) string {
	skip := map[string]bool{}
	for _, l := range c.opts.SkipLabels {
		skip[l] = true
	}
	var spans []string
	for _, l := range it.Labels {
		if skip[l.Name] {
			continue
		}
		spans = append(spans, fmt.Sprintf(`<span class="label" style="background-color: #%s;">%s</span>`, l.Color, l.Name))
	}
	if len(spans) == 0 {
		return ""
	}
	return "\n " + strings.Join(spans, " ")
}
