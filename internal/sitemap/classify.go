package sitemap

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// labelPattern maps a path substring to its label. Patterns are tested in
// order; the first match wins, so more specific segments come first.
type labelPattern struct {
	fragment string
	label    jobmodel.URLLabel
}

var pathPatterns = []labelPattern{
	{"/blog/", jobmodel.LabelBlog},
	{"/news/", jobmodel.LabelBlog},
	{"/articles/", jobmodel.LabelBlog},
	{"/insights/", jobmodel.LabelBlog},
	{"/products/", jobmodel.LabelProduct},
	{"/product/", jobmodel.LabelProduct},
	{"/shop/", jobmodel.LabelProduct},
	{"/pricing", jobmodel.LabelProduct},
	{"/services/", jobmodel.LabelService},
	{"/service/", jobmodel.LabelService},
	{"/solutions/", jobmodel.LabelService},
	{"/docs/", jobmodel.LabelDocs},
	{"/documentation/", jobmodel.LabelDocs},
	{"/api/", jobmodel.LabelDocs},
	{"/help/", jobmodel.LabelDocs},
	{"/support/", jobmodel.LabelDocs},
	{"/resources/", jobmodel.LabelResource},
	{"/guides/", jobmodel.LabelResource},
	{"/whitepapers/", jobmodel.LabelResource},
	{"/case-studies/", jobmodel.LabelResource},
	{"/downloads/", jobmodel.LabelResource},
	{"/about", jobmodel.LabelCompany},
	{"/team", jobmodel.LabelCompany},
	{"/careers", jobmodel.LabelCompany},
	{"/company", jobmodel.LabelCompany},
	{"/privacy", jobmodel.LabelLegal},
	{"/terms", jobmodel.LabelLegal},
	{"/legal", jobmodel.LabelLegal},
	{"/imprint", jobmodel.LabelLegal},
	{"/cookie", jobmodel.LabelLegal},
	{"/contact", jobmodel.LabelContact},
	{"/demo", jobmodel.LabelLanding},
	{"/landing/", jobmodel.LabelLanding},
	{"/lp/", jobmodel.LabelLanding},
	{"/signup", jobmodel.LabelLanding},
	{"/get-started", jobmodel.LabelLanding},
	{"/tools/", jobmodel.LabelTool},
	{"/calculator", jobmodel.LabelTool},
	{"/generator", jobmodel.LabelTool},
}

// classifyByPattern is the fast path: a path-segment match against the
// pattern table yields a high-confidence label. The site root classifies as
// a landing page.
func classifyByPattern(raw string) (jobmodel.URLLabel, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return jobmodel.LabelOther, false
	}
	path := strings.ToLower(u.Path)
	if path == "" || path == "/" {
		return jobmodel.LabelLanding, true
	}
	// Terminal segments match without their trailing slash too, so /about and
	// /docs both hit their patterns.
	probe := path
	if !strings.HasSuffix(probe, "/") {
		probe += "/"
	}
	for _, p := range pathPatterns {
		if strings.Contains(probe, p.fragment) || strings.Contains(path, p.fragment) {
			return p.label, true
		}
	}
	return jobmodel.LabelOther, false
}
