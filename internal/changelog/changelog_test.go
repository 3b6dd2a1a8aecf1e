package changelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	search  map[string][]models.Issue
	pulls   map[int]*models.PullRequest
	failing map[int]error
	queries []string
}

func (f *fakeAPI) SearchIssues(ctx context.Context, query string) ([]models.Issue, error) {
	f.queries = append(f.queries, query)
	for suffix, items := range f.search {
		if strings.HasSuffix(query, suffix) {
			return items, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) PullRequest(ctx context.Context, number int) (*models.PullRequest, error) {
	if err, ok := f.failing[number]; ok {
		return nil, err
	}
	if p, ok := f.pulls[number]; ok {
		return p, nil
	}
	return &models.PullRequest{Number: number, BaseRef: "developer"}, nil
}

func pull(n int, title string, labels ...string) models.Issue {
	is := models.Issue{
		Number:  n,
		Title:   title,
		HTMLURL: "https://github.com/gisce/erp/pull/" + strconv.Itoa(n),
	}
	for _, l := range labels {
		is.Labels = append(is.Labels, models.Label{Name: l, Color: "aaaaaa"})
	}
	return is
}

func milestoneAPI() *fakeAPI {
	issue := models.Issue{Number: 14, Title: "Broken export", HTMLURL: "https://github.com/gisce/erp/issues/14"}
	other := models.Issue{Number: 16, Title: "Discussion", HTMLURL: "https://github.com/gisce/erp/discussions/16"}
	return &fakeAPI{
		search: map[string][]models.Issue{
			" -label:GIS -label:facturacio": {
				pull(10, "Fix tariffs", "eléctrico", "bug"),
				pull(11, "Gas invoicing", "gas", "facturacio", ":fire: Top Feature"),
				pull(13, "Hotfix on master", "eléctrico", "bug"),
				issue,
				other,
			},
			" label:GIS -label:facturacio": {
				pull(12, "GIS layers", "gis"),
			},
			" -label:GIS label:facturacio": {
				pull(15, "Portal invoices", "oficinavirtual", "facturacio"),
			},
		},
		pulls: map[int]*models.PullRequest{
			13: {Number: 13, BaseRef: "master"},
		},
		failing: map[int]error{
			15: errs.New(errs.Connection, "get pull request #15", errors.New("connection reset")),
		},
	}
}

func milestoneOptions() Options {
	return Options{
		Milestone:  "5.1.0",
		Owner:      "gisce",
		Repository: "erp",
		Categories: []string{"bug", "facturacio", "gis"},
		SkipLabels: []string{"bug"},
		ShowIssues: true,
	}
}

func line(title, slug string, n int) string {
	return fmt.Sprintf("\n* %s [:fa-plus-circle: detalles](../detailed_5.1.0#%s-%d) - [:fa-github: %d](https://github.com/gisce/erp/pull/%d)",
		title, slug, n, n, n)
}

func TestQueries(t *testing.T) {
	q := Queries("5.1.0", "gisce", "erp")
	require.Len(t, q, 3)
	for _, s := range q {
		assert.True(t, strings.HasPrefix(s, "is:pr is:merged milestone:5.1.0 repo:gisce/erp -label:internal -label:custom"), s)
	}
	assert.True(t, strings.HasSuffix(q[1], " label:GIS -label:facturacio"))
}

func TestBuildGroupsByTypeAndCategory(t *testing.T) {
	api := milestoneAPI()
	c, err := Build(context.Background(), api, milestoneOptions(), nil)
	require.NoError(t, err)
	assert.Len(t, api.queries, 3)

	assert.Equal(t, []string{"facturacio", "gis", "bug"}, c.categories)
	assert.Equal(t, []int{10}, numbers(c.sections[electricKey]["bug"]))
	// common GIS work is filed under electricity
	assert.Equal(t, []int{12}, numbers(c.sections[electricKey]["gis"]))
	assert.Empty(t, c.sections[commonKey]["gis"])
	assert.Equal(t, []int{11}, numbers(c.sections[gasKey]["facturacio"]))
	// kept even though its base could not be checked
	assert.Equal(t, []int{15}, numbers(c.sections[portalKey]["facturacio"]))
	assert.Equal(t, []int{11}, numbers(c.top))
	assert.Equal(t, []int{14}, numbers(c.issues))
	assert.Equal(t, []int{16}, numbers(c.others))
	_, hasOthers := c.sections[othersKey]
	assert.False(t, hasOthers)
}

func TestBuildFailsOnAPIError(t *testing.T) {
	api := milestoneAPI()
	api.failing[10] = errs.New(errs.API, "get pull request #10", errors.New("404 Not Found"))
	_, err := Build(context.Background(), api, milestoneOptions(), nil)
	assert.True(t, errs.Is(err, errs.API))
}

func TestMatchLabel(t *testing.T) {
	labels := []models.Label{{Name: "Gas"}, {Name: "custom"}}
	assert.Equal(t, "custom", matchLabel([]string{"gas"}, labels, false))
	assert.Equal(t, "gas", matchLabel([]string{"gas"}, labels, true))
	assert.Equal(t, othersKey, matchLabel([]string{"eléctrico"}, labels, true))
}

func TestRenderSummary(t *testing.T) {
	c, err := Build(context.Background(), milestoneAPI(), milestoneOptions(), nil)
	require.NoError(t, err)
	out := c.RenderSummary()

	require.True(t, strings.HasPrefix(out, "# Changelog version 5.1.0\n"))
	ordered := []string{
		"\n## ELÉCTRICO\n",
		"\n### GIS\n" + line("GIS layers", "gis-layers", 12),
		"\n### BUG\n" + line("Fix tariffs", "fix-tariffs", 10),
		"\n## GAS\n\n### FACTURACIO\n" + line("Gas invoicing", "gas-invoicing", 11),
		"\n## OFICINAVIRTUAL\n\n### FACTURACIO\n" + line("Portal invoices", "portal-invoices", 15),
		"\n## COMÚN\n",
		"\n# Issues:  \n",
		"\n# Others :  \n",
	}
	last := -1
	for _, part := range ordered {
		idx := strings.Index(out, part)
		require.Greater(t, idx, last, part)
		last = idx
	}
	assert.NotContains(t, out, "Hotfix on master")
}

func TestRenderTop(t *testing.T) {
	c, err := Build(context.Background(), milestoneAPI(), milestoneOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, "# TOP FEATURES version 5.1.0\n"+line("Gas invoicing", "gas-invoicing", 11), c.RenderTop())
}

func TestDetailBody(t *testing.T) {
	c := &Changelog{opts: milestoneOptions()}
	body := "# Objetivo\nFixes #123\n## Afectaciones\n- nothing"
	assert.Equal(t,
		"#### Objetivo\nFixes [:fa-github: 123](https://github.com/gisce/erp/pull/123)",
		c.detailBody(body))
}

func TestRenderDetailedSkipsLabels(t *testing.T) {
	c, err := Build(context.Background(), milestoneAPI(), milestoneOptions(), nil)
	require.NoError(t, err)
	out := c.RenderDetailed()

	require.True(t, strings.HasPrefix(out, "# Detalles version 5.1.0\n"))
	assert.Contains(t, out, "\n\n### Fix tariffs [:fa-github: 10](https://github.com/gisce/erp/pull/10)  \n "+
		`<span class="label" style="background-color: #aaaaaa;">eléctrico</span>`+"\n\n\n ---")
	assert.NotContains(t, out, ">bug</span>")
	assert.Contains(t, out, "### Broken export")
}

func TestWrite(t *testing.T) {
	c, err := Build(context.Background(), milestoneAPI(), milestoneOptions(), nil)
	require.NoError(t, err)
	dir := t.TempDir()

	files, err := c.Write(dir)
	require.NoError(t, err)
	for path, prefix := range map[string]string{
		files.Changelog: "# Changelog version 5.1.0",
		files.Top:       "# TOP FEATURES version 5.1.0",
		files.Detailed:  "# Detalles version 5.1.0",
	} {
		data, err := os.ReadFile(path)
		require.NoError(t, err, path)
		assert.True(t, strings.HasPrefix(string(data), prefix), path)
	}
	assert.Equal(t, dir+"/changelog_5.1.0.md", files.Changelog)
}

func numbers(items []Item) []int {
	var out []int
	for _, it := range items {
		out = append(out, it.Number)
	}
	return out
}
