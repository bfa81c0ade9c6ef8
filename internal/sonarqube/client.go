// Package sonarqube provides functionality for reading project data from
// a self-hosted SonarQube server through its web API.
package sonarqube

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sonar-solutions/cloudvoyager/internal/config"
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Client encapsulates read access to the source server's web API.
type Client struct {
	http         *retryablehttp.Client
	baseURL      string
	token        string
	fetchWorkers int
}

// NewClient creates a new source-server client using configuration from
// environment variables and verifies connectivity before returning.
func NewClient() (*Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateSourceConfig(cfg); err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil

	client := &Client{
		http:         rc,
		baseURL:      cfg.SonarQube.URL,
		token:        cfg.SonarQube.Token,
		fetchWorkers: cfg.Sync.HotspotFetchWorkers,
	}

	// Test the token
	version, err := client.get("api/server/version", nil)
	if err != nil {
		return nil, fmt.Errorf("error testing sonarqube connection: %w", err)
	}

	logging.Info("sonarqube connection established",
		"url", cfg.SonarQube.URL,
		"version", strings.TrimSpace(string(version)),
		"token", logging.MaskSensitive(cfg.SonarQube.Token))

	return client, nil
}

// get performs an authenticated GET request and returns the response body.
func (c *Client) get(path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	// SonarQube token auth: token as username, empty password.
	req.SetBasicAuth(c.token, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

// branchInfo is the server's branch listing entry.
type branchInfo struct {
	Name         string `json:"name"`
	IsMain       bool   `json:"isMain"`
	AnalysisDate string `json:"analysisDate"`
	Commit       struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ListBranches retrieves the project's branch list in server order.
func (c *Client) ListBranches(project string) ([]models.Branch, error) {
	infos, err := c.listBranches(project)
	if err != nil {
		return nil, err
	}

	branches := make([]models.Branch, 0, len(infos))
	for _, info := range infos {
		branches = append(branches, models.Branch{
			Name:   info.Name,
			IsMain: info.IsMain,
		})
	}
	return branches, nil
}

func (c *Client) listBranches(project string) ([]branchInfo, error) {
	params := url.Values{}
	params.Set("project", project)

	body, err := c.get("api/project_branches/list", params)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches of %s: %w", project, err)
	}

	var response struct {
		Branches []branchInfo `json:"branches"`
	}
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse branch list of %s: %w", project, err)
	}
	return response.Branches, nil
}

// ComponentTree retrieves the branch's directory and file components in
// server listing order.
func (c *Client) ComponentTree(project, branch string) ([]models.Component, error) {
	var components []models.Component

	page := 1
	for {
		params := url.Values{}
		params.Set("component", project)
		params.Set("branch", branch)
		params.Set("qualifiers", "DIR,FIL")
		params.Set("ps", "500")
		params.Set("p", strconv.Itoa(page))

		body, err := c.get("api/components/tree", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch component tree of %s: %w", branch, err)
		}

		var response struct {
			Paging paging `json:"paging"`
			Components []struct {
				Key       string `json:"key"`
				Path      string `json:"path"`
				Qualifier string `json:"qualifier"`
				Language  string `json:"language"`
			} `json:"components"`
		}
		if err := decodeJSON(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse component tree of %s: %w", branch, err)
		}

		for _, comp := range response.Components {
			components = append(components, models.Component{
				Key:       comp.Key,
				Path:      comp.Path,
				Qualifier: comp.Qualifier,
				Language:  comp.Language,
			})
		}

		if response.Paging.done(page) {
			break
		}
		page++
	}

	return components, nil
}

// SearchIssues retrieves all issues on the branch, with their comments,
// in server listing order.
func (c *Client) SearchIssues(project, branch string, batchSize int) ([]models.Finding, error) {
	if batchSize <= 0 || batchSize > 500 {
		batchSize = 500
	}

	var issues []models.Finding

	page := 1
	for {
		params := url.Values{}
		params.Set("componentKeys", project)
		params.Set("branch", branch)
		params.Set("additionalFields", "comments")
		params.Set("ps", strconv.Itoa(batchSize))
		params.Set("p", strconv.Itoa(page))

		body, err := c.get("api/issues/search", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch issues of %s: %w", branch, err)
		}

		var response struct {
			Paging paging      `json:"paging"`
			Issues []issueJSON `json:"issues"`
		}
		if err := decodeJSON(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse issues of %s: %w", branch, err)
		}

		for _, issue := range response.Issues {
			issues = append(issues, issue.toFinding())
		}

		if response.Paging.done(page) {
			break
		}
		page++
	}

	return issues, nil
}

// SearchHotspots retrieves all security hotspots on the branch, then loads
// each hotspot's full details (comments included) through a bounded pool
// of fetch workers. Listing order is preserved in the result.
func (c *Client) SearchHotspots(project, branch string) ([]models.Finding, error) {
	var keys []string

	page := 1
	for {
		params := url.Values{}
		params.Set("projectKey", project)
		params.Set("branch", branch)
		params.Set("ps", "500")
		params.Set("p", strconv.Itoa(page))

		body, err := c.get("api/hotspots/search", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch hotspots of %s: %w", branch, err)
		}

		var response struct {
			Paging   paging `json:"paging"`
			Hotspots []struct {
				Key string `json:"key"`
			} `json:"hotspots"`
		}
		if err := decodeJSON(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse hotspots of %s: %w", branch, err)
		}

		for _, h := range response.Hotspots {
			keys = append(keys, h.Key)
		}

		if response.Paging.done(page) {
			break
		}
		page++
	}

	return c.fetchHotspotDetails(keys)
}

// fetchHotspotDetails loads hotspot details concurrently, bounded by the
// configured fetch-worker width. Results keep the listing order of keys.
func (c *Client) fetchHotspotDetails(keys []string) ([]models.Finding, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	workers := c.fetchWorkers
	if workers <= 0 {
		workers = 1
	}

	results := make([]models.Finding, len(keys))
	errs := make([]error, len(keys))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = c.HotspotDetails(keys[i])
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to fetch hotspot %s: %w", keys[i], err)
		}
	}
	return results, nil
}

// HotspotDetails retrieves one hotspot with its comments.
func (c *Client) HotspotDetails(key string) (models.Finding, error) {
	params := url.Values{}
	params.Set("hotspot", key)

	body, err := c.get("api/hotspots/show", params)
	if err != nil {
		return models.Finding{}, err
	}

	var response hotspotJSON
	if err := decodeJSON(body, &response); err != nil {
		return models.Finding{}, fmt.Errorf("failed to parse hotspot %s: %w", key, err)
	}
	return response.toFinding(), nil
}

// Measures retrieves the branch's measures for the given metric keys as a
// flat (metricKey, value) map. Metrics absent on the branch are omitted.
func (c *Client) Measures(project, branch string, metricKeys []string) (map[string]string, error) {
	params := url.Values{}
	params.Set("component", project)
	params.Set("branch", branch)
	params.Set("metricKeys", strings.Join(metricKeys, ","))

	body, err := c.get("api/measures/component", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch measures of %s: %w", branch, err)
	}

	var response struct {
		Component struct {
			Measures []struct {
				Metric string `json:"metric"`
				Value  string `json:"value"`
			} `json:"measures"`
		} `json:"component"`
	}
	if err := decodeJSON(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse measures of %s: %w", branch, err)
	}

	measures := make(map[string]string, len(response.Component.Measures))
	for _, m := range response.Component.Measures {
		measures[m.Metric] = m.Value
	}
	return measures, nil
}

// RawSource retrieves the raw text of one file component.
func (c *Client) RawSource(fileKey, branch string) (string, error) {
	params := url.Values{}
	params.Set("key", fileKey)
	params.Set("branch", branch)

	body, err := c.get("api/sources/raw", params)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source of %s: %w", fileKey, err)
	}
	return string(body), nil
}

func truncateBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
