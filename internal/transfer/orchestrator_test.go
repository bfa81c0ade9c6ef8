package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sonar-solutions/cloudvoyager/internal/state"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExtractor serves canned branches and snapshots, with per-branch
// failure injection.
type mockExtractor struct {
	branches    []models.Branch
	branchesErr error
	snapshots   map[string]*models.Snapshot
	failBranch  map[string]error
	extracted   []string
}

func (m *mockExtractor) ListBranches(project string) ([]models.Branch, error) {
	if m.branchesErr != nil {
		return nil, m.branchesErr
	}
	return m.branches, nil
}

func (m *mockExtractor) ExtractSnapshot(project, branch string, batchSize int) (*models.Snapshot, error) {
	m.extracted = append(m.extracted, branch)
	if err := m.failBranch[branch]; err != nil {
		return nil, err
	}
	if snap, ok := m.snapshots[branch]; ok {
		return snap, nil
	}
	return &models.Snapshot{ProjectKey: project, Branch: branch}, nil
}

// mockEncoder encodes snapshots as a placeholder payload.
type mockEncoder struct{}

func (m *mockEncoder) EncodeSnapshot(snapshot *models.Snapshot) ([]byte, error) {
	return []byte("bundle:" + snapshot.Branch), nil
}

// mockUploader records uploads and waits.
type mockUploader struct {
	uploads []string
	waited  []string
}

func (m *mockUploader) UploadReport(project, branch string, bundle []byte) (string, error) {
	m.uploads = append(m.uploads, branch)
	return "task-" + branch, nil
}

func (m *mockUploader) WaitForTask(taskID string) error {
	m.waited = append(m.waited, taskID)
	return nil
}

// mockStore keeps state in memory, with failure injection.
type mockStore struct {
	state   *state.State
	loadErr error
	saveErr error
	saves   int
}

func (m *mockStore) Load() (*state.State, error) {
	if m.loadErr != nil {
		return state.NewState(), m.loadErr
	}
	if m.state == nil {
		return state.NewState(), nil
	}
	return m.state, nil
}

func (m *mockStore) Save(s *state.State) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	return nil
}

func threeBranchProject() *mockExtractor {
	return &mockExtractor{
		branches: []models.Branch{
			{Name: "main", IsMain: true},
			{Name: "develop"},
			{Name: "feature-x"},
		},
		snapshots:  map[string]*models.Snapshot{},
		failBranch: map[string]error{},
	}
}

func TestFullModeTransfersAllBranches(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	store := &mockStore{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, store)

	result, err := o.Run("proj", Options{Mode: ModeFull})

	require.NoError(t, err)
	assert.Equal(t, []string{"main", "develop", "feature-x"}, result.BranchesTransferred)
	assert.Len(t, uploader.uploads, 3)
	// Full mode never touches transfer state.
	assert.Equal(t, 0, store.saves)
}

func TestExcludedBranchIsSkipped(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, &mockStore{})

	result, err := o.Run("proj", Options{Mode: ModeFull, ExcludeBranches: []string{"develop"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature-x"}, result.BranchesTransferred)
	assert.Len(t, uploader.uploads, 2)
}

func TestIncludeListWithoutMainSkipsProject(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	store := &mockStore{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, store)

	result, err := o.Run("proj", Options{
		Mode:            ModeIncremental,
		IncludeBranches: []string{"develop"},
	})

	require.NoError(t, err)
	assert.Empty(t, result.BranchesTransferred)
	// Zero side effects: no extraction, no upload, no state writes.
	assert.Empty(t, extractor.extracted)
	assert.Empty(t, uploader.uploads)
	assert.Equal(t, 0, store.saves)
}

func TestIncludeListFiltersOtherBranches(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, &mockStore{})

	result, err := o.Run("proj", Options{
		Mode:            ModeFull,
		IncludeBranches: []string{"main", "feature-x"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature-x"}, result.BranchesTransferred)
}

func TestNonMainFailureIsIsolated(t *testing.T) {
	extractor := threeBranchProject()
	extractor.failBranch["develop"] = errors.New("connection reset")
	extractor.snapshots["main"] = &models.Snapshot{
		Branch:   "main",
		Issues:   []models.Finding{{Key: "i1"}},
		Measures: map[string]string{"ncloc": "100"},
	}
	extractor.snapshots["feature-x"] = &models.Snapshot{
		Branch:   "feature-x",
		Issues:   []models.Finding{{Key: "i2"}, {Key: "i3"}},
		Measures: map[string]string{"ncloc": "50"},
	}
	uploader := &mockUploader{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, &mockStore{})

	result, err := o.Run("proj", Options{Mode: ModeFull})

	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature-x"}, result.BranchesTransferred)
	// Stats are the sum over exactly the transferred branches.
	assert.Equal(t, 3, result.IssuesTransferred)
	assert.Equal(t, 150, result.LinesOfCode)
}

func TestMainBranchFailureIsFatal(t *testing.T) {
	extractor := threeBranchProject()
	extractor.failBranch["main"] = errors.New("auth failed")
	uploader := &mockUploader{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, &mockStore{})

	result, err := o.Run("proj", Options{Mode: ModeFull})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "main")
	assert.Empty(t, result.BranchesTransferred)
	// Remaining branches are aborted.
	assert.Equal(t, []string{"main"}, extractor.extracted)
}

func TestMissingBranchListIsFatal(t *testing.T) {
	extractor := &mockExtractor{branchesErr: errors.New("503")}
	o := NewOrchestrator(extractor, &mockEncoder{}, &mockUploader{}, &mockStore{})

	_, err := o.Run("proj", Options{Mode: ModeFull})
	require.Error(t, err)
}

func TestIncrementalModeIsIdempotent(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	store := &mockStore{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, store)

	first, err := o.Run("proj", Options{Mode: ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "develop", "feature-x"}, first.BranchesTransferred)

	// Second run with no source changes: every branch already completed.
	second, err := o.Run("proj", Options{Mode: ModeIncremental})
	require.NoError(t, err)
	assert.Empty(t, second.BranchesTransferred)
	assert.Len(t, uploader.uploads, 3)
}

func TestIncrementalModeResumesAfterPartialFailure(t *testing.T) {
	extractor := threeBranchProject()
	extractor.failBranch["develop"] = errors.New("timeout")
	store := &mockStore{}
	o := NewOrchestrator(extractor, &mockEncoder{}, &mockUploader{}, store)

	first, err := o.Run("proj", Options{Mode: ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature-x"}, first.BranchesTransferred)

	// The failed branch is retried on the next run; completed ones are not.
	delete(extractor.failBranch, "develop")
	second, err := o.Run("proj", Options{Mode: ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, []string{"develop"}, second.BranchesTransferred)
}

func TestIncrementalModeAppendsHistory(t *testing.T) {
	extractor := threeBranchProject()
	store := &mockStore{}
	o := NewOrchestrator(extractor, &mockEncoder{}, &mockUploader{}, store)

	_, err := o.Run("proj", Options{Mode: ModeIncremental})
	require.NoError(t, err)

	require.NotNil(t, store.state)
	require.Len(t, store.state.SyncHistory, 1)
	assert.True(t, store.state.SyncHistory[0].Success)
	assert.NotNil(t, store.state.LastSync)
}

func TestStateFailuresDegradeToWarnings(t *testing.T) {
	extractor := threeBranchProject()
	store := &mockStore{
		loadErr: errors.New("corrupt"),
		saveErr: errors.New("disk full"),
	}
	o := NewOrchestrator(extractor, &mockEncoder{}, &mockUploader{}, store)

	result, err := o.Run("proj", Options{Mode: ModeIncremental})

	// State I/O failures compromise resumability but never abort.
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "develop", "feature-x"}, result.BranchesTransferred)
	assert.Len(t, result.Warnings, 2)
}

func TestWaitPollsEveryUpload(t *testing.T) {
	extractor := threeBranchProject()
	uploader := &mockUploader{}
	o := NewOrchestrator(extractor, &mockEncoder{}, uploader, &mockStore{})

	_, err := o.Run("proj", Options{Mode: ModeFull, Wait: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"task-main", "task-develop", "task-feature-x"}, uploader.waited)
}

func TestLinesOfCodeParsing(t *testing.T) {
	testCases := []struct {
		name     string
		measures map[string]string
		want     int
	}{
		{"Numeric value", map[string]string{"ncloc": "1000"}, 1000},
		{"Non-numeric value", map[string]string{"ncloc": "abc"}, 0},
		{"Missing metric", map[string]string{"files": "10"}, 0},
		{"Nil measures", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, linesOfCode(tc.measures))
		})
	}
}

func TestProjectWithoutMainBranch(t *testing.T) {
	extractor := &mockExtractor{branches: []models.Branch{{Name: "develop"}}}
	o := NewOrchestrator(extractor, &mockEncoder{}, &mockUploader{}, &mockStore{})

	_, err := o.Run("proj", Options{Mode: ModeFull})
	require.Error(t, err)
	assert.Equal(t, "project proj has no main branch", fmt.Sprintf("%v", err))
}
