package sonarqube

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// paging is the server's standard pagination envelope.
type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

// done reports whether the given page was the last one.
func (p paging) done(page int) bool {
	if p.PageSize <= 0 {
		return true
	}
	return page*p.PageSize >= p.Total
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// parseServerTime parses the server's timestamp format
// ("2006-01-02T15:04:05-0700"), falling back to RFC 3339.
func parseServerTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z0700", value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

// componentPath extracts the project-relative path from a component key
// ("project:src/app.go" yields "src/app.go").
func componentPath(componentKey string) string {
	if idx := strings.Index(componentKey, ":"); idx >= 0 {
		return componentKey[idx+1:]
	}
	return ""
}

type commentJSON struct {
	Login     string `json:"login"`
	CreatedAt string `json:"createdAt"`
	Markdown  string `json:"markdown"`
}

func (c commentJSON) toComment() models.Comment {
	return models.Comment{
		Author:    c.Login,
		CreatedAt: parseServerTime(c.CreatedAt),
		Text:      c.Markdown,
	}
}

type issueJSON struct {
	Key        string            `json:"key"`
	Rule       string            `json:"rule"`
	Component  string            `json:"component"`
	Line       int               `json:"line"`
	TextRange  *models.TextRange `json:"textRange"`
	Message    string            `json:"message"`
	Severity   string            `json:"severity"`
	Status     string            `json:"status"`
	Resolution string            `json:"resolution"`
	Assignee   string            `json:"assignee"`
	Tags       []string          `json:"tags"`
	Comments   []commentJSON     `json:"comments"`
}

func (i issueJSON) toFinding() models.Finding {
	comments := make([]models.Comment, 0, len(i.Comments))
	for _, c := range i.Comments {
		comments = append(comments, c.toComment())
	}

	return models.Finding{
		Key:        i.Key,
		Rule:       i.Rule,
		Path:       componentPath(i.Component),
		Line:       i.Line,
		TextRange:  i.TextRange,
		Message:    i.Message,
		Severity:   i.Severity,
		Status:     i.Status,
		Resolution: i.Resolution,
		Assignee:   i.Assignee,
		Tags:       i.Tags,
		Comments:   comments,
	}
}

type hotspotJSON struct {
	Key       string `json:"key"`
	Component struct {
		Key string `json:"key"`
	} `json:"component"`
	Rule struct {
		Key string `json:"key"`
	} `json:"rule"`
	Line       int               `json:"line"`
	TextRange  *models.TextRange `json:"textRange"`
	Message    string            `json:"message"`
	Status     string            `json:"status"`
	Resolution string            `json:"resolution"`
	Assignee   string            `json:"assignee"`
	Comment    []commentJSON     `json:"comment"`
}

func (h hotspotJSON) toFinding() models.Finding {
	comments := make([]models.Comment, 0, len(h.Comment))
	for _, c := range h.Comment {
		comments = append(comments, c.toComment())
	}

	return models.Finding{
		Key:        h.Key,
		Rule:       h.Rule.Key,
		Path:       componentPath(h.Component.Key),
		Line:       h.Line,
		TextRange:  h.TextRange,
		Message:    h.Message,
		Status:     h.Status,
		Resolution: h.Resolution,
		Assignee:   h.Assignee,
		Comments:   comments,
	}
}
