package sonarcloud

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sonar-solutions/cloudvoyager/pkg/models"
	"github.com/tidwall/gjson"
)

// SearchIssues retrieves the destination project's issues on one branch.
// The returned order is exactly the order the API listed them in, which
// the reconciliation matcher relies on for tie-breaking.
func (c *Client) SearchIssues(project, branch string) ([]models.Finding, error) {
	var findings []models.Finding

	page := 1
	for {
		params := url.Values{}
		params.Set("organization", c.organization)
		params.Set("componentKeys", project)
		params.Set("branch", branch)
		params.Set("ps", "500")
		params.Set("p", strconv.Itoa(page))

		body, err := c.get("api/issues/search", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch destination issues: %w", err)
		}

		result := gjson.ParseBytes(body)
		result.Get("issues").ForEach(func(_, issue gjson.Result) bool {
			findings = append(findings, issueFromJSON(issue))
			return true
		})

		if pagingDone(result, page) {
			break
		}
		page++
	}

	return findings, nil
}

// SearchHotspots retrieves the destination project's hotspots on one
// branch, in API listing order.
func (c *Client) SearchHotspots(project, branch string) ([]models.Finding, error) {
	var findings []models.Finding

	page := 1
	for {
		params := url.Values{}
		params.Set("organization", c.organization)
		params.Set("projectKey", project)
		params.Set("branch", branch)
		params.Set("ps", "500")
		params.Set("p", strconv.Itoa(page))

		body, err := c.get("api/hotspots/search", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch destination hotspots: %w", err)
		}

		result := gjson.ParseBytes(body)
		result.Get("hotspots").ForEach(func(_, hotspot gjson.Result) bool {
			findings = append(findings, hotspotFromJSON(hotspot))
			return true
		})

		if pagingDone(result, page) {
			break
		}
		page++
	}

	return findings, nil
}

// TransitionIssue applies a workflow transition (e.g., "confirm",
// "falsepositive") to a destination issue.
func (c *Client) TransitionIssue(issueKey, transition string) error {
	form := url.Values{}
	form.Set("issue", issueKey)
	form.Set("transition", transition)
	return c.postForm("api/issues/do_transition", form)
}

// AssignIssue assigns a destination issue to a user.
func (c *Client) AssignIssue(issueKey, assignee string) error {
	form := url.Values{}
	form.Set("issue", issueKey)
	form.Set("assignee", assignee)
	return c.postForm("api/issues/assign", form)
}

// CommentIssue posts a comment on a destination issue.
func (c *Client) CommentIssue(issueKey, text string) error {
	form := url.Values{}
	form.Set("issue", issueKey)
	form.Set("text", text)
	return c.postForm("api/issues/add_comment", form)
}

// SetIssueTags replaces the tag list of a destination issue.
func (c *Client) SetIssueTags(issueKey string, tags []string) error {
	form := url.Values{}
	form.Set("issue", issueKey)
	form.Set("tags", strings.Join(tags, ","))
	return c.postForm("api/issues/set_tags", form)
}

// ChangeHotspotStatus moves a destination hotspot to the given status and
// resolution.
func (c *Client) ChangeHotspotStatus(hotspotKey, status, resolution string) error {
	form := url.Values{}
	form.Set("hotspot", hotspotKey)
	form.Set("status", status)
	if resolution != "" {
		form.Set("resolution", resolution)
	}
	return c.postForm("api/hotspots/change_status", form)
}

// AssignHotspot assigns a destination hotspot to a user.
func (c *Client) AssignHotspot(hotspotKey, assignee string) error {
	form := url.Values{}
	form.Set("hotspot", hotspotKey)
	form.Set("assignee", assignee)
	return c.postForm("api/hotspots/assign", form)
}

// CommentHotspot posts a comment on a destination hotspot.
func (c *Client) CommentHotspot(hotspotKey, text string) error {
	form := url.Values{}
	form.Set("hotspot", hotspotKey)
	form.Set("comment", text)
	return c.postForm("api/hotspots/add_comment", form)
}

// pagingDone reports whether the given page was the response's last.
func pagingDone(result gjson.Result, page int) bool {
	pageSize := int(result.Get("paging.pageSize").Int())
	total := int(result.Get("paging.total").Int())
	if pageSize <= 0 {
		return true
	}
	return page*pageSize >= total
}

func issueFromJSON(issue gjson.Result) models.Finding {
	f := models.Finding{
		Key:        issue.Get("key").String(),
		Rule:       issue.Get("rule").String(),
		Path:       componentPath(issue.Get("component").String()),
		Line:       int(issue.Get("line").Int()),
		Message:    issue.Get("message").String(),
		Severity:   issue.Get("severity").String(),
		Status:     issue.Get("status").String(),
		Resolution: issue.Get("resolution").String(),
		Assignee:   issue.Get("assignee").String(),
	}
	if tr := issue.Get("textRange"); tr.Exists() {
		f.TextRange = &models.TextRange{
			StartLine:   int(tr.Get("startLine").Int()),
			EndLine:     int(tr.Get("endLine").Int()),
			StartOffset: int(tr.Get("startOffset").Int()),
			EndOffset:   int(tr.Get("endOffset").Int()),
		}
	}
	issue.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		f.Tags = append(f.Tags, tag.String())
		return true
	})
	return f
}

func hotspotFromJSON(hotspot gjson.Result) models.Finding {
	f := models.Finding{
		Key:        hotspot.Get("key").String(),
		Rule:       hotspot.Get("ruleKey").String(),
		Path:       componentPath(hotspot.Get("component").String()),
		Line:       int(hotspot.Get("line").Int()),
		Message:    hotspot.Get("message").String(),
		Status:     hotspot.Get("status").String(),
		Resolution: hotspot.Get("resolution").String(),
		Assignee:   hotspot.Get("assignee").String(),
	}
	if tr := hotspot.Get("textRange"); tr.Exists() {
		f.TextRange = &models.TextRange{
			StartLine:   int(tr.Get("startLine").Int()),
			EndLine:     int(tr.Get("endLine").Int()),
			StartOffset: int(tr.Get("startOffset").Int()),
			EndOffset:   int(tr.Get("endOffset").Int()),
		}
	}
	return f
}

// componentPath extracts the project-relative path from a component key
// ("project:src/app.go" yields "src/app.go").
func componentPath(componentKey string) string {
	if idx := strings.Index(componentKey, ":"); idx >= 0 {
		return componentKey[idx+1:]
	}
	return ""
}
