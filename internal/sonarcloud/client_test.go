package sonarcloud

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient builds a client against a local test server, bypassing the
// environment-based constructor.
func testClient(server *httptest.Server) *Client {
	return &Client{
		http:         server.Client(),
		baseURL:      server.URL,
		organization: "my-org",
	}
}

func TestUploadReportReturnsTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ce/submit", r.URL.Path)
		assert.Equal(t, "proj", r.URL.Query().Get("projectKey"))
		assert.Equal(t, "branch=develop", r.URL.Query().Get("characteristic"))
		assert.Equal(t, "my-org", r.URL.Query().Get("organization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("report")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "report.zip", header.Filename)

		fmt.Fprint(w, `{"taskId": "AYx42"}`)
	}))
	defer server.Close()

	taskID, err := testClient(server).UploadReport("proj", "develop", []byte("bundle-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "AYx42", taskID)
}

func TestUploadReportWithoutTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	_, err := testClient(server).UploadReport("proj", "main", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task id")
}

func TestWaitForTaskPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ce/task", r.URL.Path)
		assert.Equal(t, "task-1", r.URL.Query().Get("id"))

		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"task": {"status": "IN_PROGRESS"}}`)
			return
		}
		fmt.Fprint(w, `{"task": {"status": "SUCCESS"}}`)
	}))
	defer server.Close()

	err := testClient(server).WaitForTask("task-1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), polls.Load())
}

func TestWaitForTaskFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"task": {"status": "FAILED", "errorMessage": "analysis exploded"}}`)
	}))
	defer server.Close()

	err := testClient(server).WaitForTask("task-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
	assert.Contains(t, err.Error(), "analysis exploded")
}

func TestSearchIssuesPreservesListingOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/issues/search", r.URL.Path)
		page := r.URL.Query().Get("p")

		if page == "1" {
			fmt.Fprint(w, `{
				"paging": {"pageIndex": 1, "pageSize": 1, "total": 2},
				"issues": [{
					"key": "d1",
					"rule": "go:S1",
					"component": "proj:src/app.go",
					"line": 5,
					"status": "OPEN",
					"tags": ["a", "b"]
				}]
			}`)
			return
		}
		fmt.Fprint(w, `{
			"paging": {"pageIndex": 2, "pageSize": 1, "total": 2},
			"issues": [{
				"key": "d2",
				"rule": "go:S2",
				"component": "proj:src/util.go",
				"textRange": {"startLine": 7},
				"status": "OPEN"
			}]
		}`)
	}))
	defer server.Close()

	issues, err := testClient(server).SearchIssues("proj", "main")

	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "d1", issues[0].Key)
	assert.Equal(t, []string{"a", "b"}, issues[0].Tags)
	assert.Equal(t, "d2", issues[1].Key)
	assert.Equal(t, 7, issues[1].StartLine())
}

func TestSearchHotspots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hotspots/search", r.URL.Path)
		assert.Equal(t, "proj", r.URL.Query().Get("projectKey"))
		fmt.Fprint(w, `{
			"paging": {"pageIndex": 1, "pageSize": 500, "total": 1},
			"hotspots": [{
				"key": "h1",
				"ruleKey": "go:S4830",
				"component": "proj:src/tls.go",
				"line": 33,
				"status": "TO_REVIEW"
			}]
		}`)
	}))
	defer server.Close()

	hotspots, err := testClient(server).SearchHotspots("proj", "main")

	require.NoError(t, err)
	require.Len(t, hotspots, 1)
	assert.Equal(t, "h1", hotspots[0].Key)
	assert.Equal(t, "go:S4830", hotspots[0].Rule)
	assert.Equal(t, "src/tls.go", hotspots[0].Path)
}

func TestMutationEndpoints(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotForm = r.PostForm
	}))
	defer server.Close()

	client := testClient(server)

	require.NoError(t, client.TransitionIssue("d1", "confirm"))
	assert.Equal(t, "/api/issues/do_transition", gotPath)
	assert.Equal(t, "confirm", gotForm["transition"][0])

	require.NoError(t, client.SetIssueTags("d1", []string{"a", "b"}))
	assert.Equal(t, "/api/issues/set_tags", gotPath)
	assert.Equal(t, "a,b", gotForm["tags"][0])

	require.NoError(t, client.ChangeHotspotStatus("h1", "REVIEWED", "SAFE"))
	assert.Equal(t, "/api/hotspots/change_status", gotPath)
	assert.Equal(t, "REVIEWED", gotForm["status"][0])
	assert.Equal(t, "SAFE", gotForm["resolution"][0])

	require.NoError(t, client.CommentHotspot("h1", "note"))
	assert.Equal(t, "/api/hotspots/add_comment", gotPath)
	assert.Equal(t, "note", gotForm["comment"][0])
}

func TestMutationErrorSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors": [{"msg": "Transition is not allowed"}]}`)
	}))
	defer server.Close()

	err := testClient(server).TransitionIssue("d1", "confirm")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transition is not allowed")
}
