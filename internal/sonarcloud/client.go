// Package sonarcloud provides functionality for writing to the cloud-hosted
// destination server: report upload, background-task polling and triage
// mutations on issues and hotspots.
package sonarcloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sonar-solutions/cloudvoyager/internal/config"
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// taskPollInterval is the delay between background-task status polls.
const taskPollInterval = 2 * time.Second

// taskPollTimeout bounds how long an upload's destination-side processing
// is awaited before giving up.
const taskPollTimeout = 10 * time.Minute

// Client encapsulates the destination server's web API.
type Client struct {
	http         *http.Client
	baseURL      string
	organization string
}

// NewClient creates a new destination client using configuration from
// environment variables. Authentication uses a static bearer token carried
// by an oauth2 transport over a retrying HTTP client.
func NewClient() (*Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateDestinationConfig(cfg); err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.SonarCloud.Token})
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, rc.StandardClient())
	httpClient := oauth2.NewClient(ctx, ts)

	client := &Client{
		http:         httpClient,
		baseURL:      cfg.SonarCloud.URL,
		organization: cfg.SonarCloud.Organization,
	}

	logging.Info("sonarcloud client configured",
		"url", cfg.SonarCloud.URL,
		"organization", cfg.SonarCloud.Organization,
		"token", logging.MaskSensitive(cfg.SonarCloud.Token))

	return client, nil
}

// get performs a GET request and returns the response body.
func (c *Client) get(path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := c.http.Get(endpoint)
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

// postForm performs a form-encoded POST request, used by all mutations.
func (c *Client) postForm(path string, form url.Values) error {
	endpoint := c.baseURL + "/" + path

	resp, err := c.http.PostForm(endpoint, form)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncateBody(body))
	}
	return nil
}

// UploadReport submits one branch's encoded report bundle and returns the
// identifier of the destination-side processing task.
func (c *Client) UploadReport(project, branch string, bundle []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("report", "report.zip")
	if err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := part.Write(bundle); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload body: %w", err)
	}

	params := url.Values{}
	params.Set("organization", c.organization)
	params.Set("projectKey", project)
	params.Set("characteristic", "branch="+branch)
	endpoint := c.baseURL + "/api/ce/submit?" + params.Encode()

	resp, err := c.http.Post(endpoint, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("report upload for branch %s failed: %w", branch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("report upload for branch %s returned status %d: %s",
			branch, resp.StatusCode, truncateBody(body))
	}

	taskID := gjson.GetBytes(body, "taskId").String()
	if taskID == "" {
		return "", fmt.Errorf("upload response for branch %s carried no task id", branch)
	}

	logging.Debug("report uploaded",
		"project", project,
		"branch", branch,
		"bytes", len(bundle),
		"task_id", taskID)

	return taskID, nil
}

// WaitForTask polls the background-task endpoint until the task reaches a
// terminal state, returning an error when it did not succeed.
func (c *Client) WaitForTask(taskID string) error {
	deadline := time.Now().Add(taskPollTimeout)

	for {
		params := url.Values{}
		params.Set("id", taskID)

		body, err := c.get("api/ce/task", params)
		if err != nil {
			return fmt.Errorf("failed to poll task %s: %w", taskID, err)
		}

		status := gjson.GetBytes(body, "task.status").String()
		switch status {
		case "SUCCESS":
			return nil
		case "FAILED", "CANCELED":
			errorMsg := gjson.GetBytes(body, "task.errorMessage").String()
			return fmt.Errorf("task %s ended with status %s: %s", taskID, status, errorMsg)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("task %s did not reach a terminal state within %s", taskID, taskPollTimeout)
		}
		time.Sleep(taskPollInterval)
	}
}

func truncateBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
