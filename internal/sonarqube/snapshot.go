package sonarqube

import (
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// snapshotMetrics are the measures extracted alongside each branch.
var snapshotMetrics = []string{"ncloc", "files", "functions", "complexity"}

// ExtractSnapshot reads everything the report pipeline needs for one
// branch: component tree, raw sources, issues, hotspots and measures.
// The returned snapshot is immutable once produced.
func (c *Client) ExtractSnapshot(project, branch string, batchSize int) (*models.Snapshot, error) {
	infos, err := c.listBranches(project)
	if err != nil {
		return nil, err
	}

	snapshot := &models.Snapshot{
		ProjectKey: project,
		Branch:     branch,
		Sources:    map[string]string{},
		Measures:   map[string]string{},
	}
	for _, info := range infos {
		if info.Name == branch {
			snapshot.Revision = info.Commit.SHA
			snapshot.AnalysisDate = parseServerTime(info.AnalysisDate)
			break
		}
	}

	components, err := c.ComponentTree(project, branch)
	if err != nil {
		return nil, err
	}
	snapshot.Components = components

	for _, comp := range components {
		if !comp.IsFile() {
			continue
		}
		source, err := c.RawSource(comp.Key, branch)
		if err != nil {
			return nil, err
		}
		snapshot.Sources[comp.Path] = source
	}

	issues, err := c.SearchIssues(project, branch, batchSize)
	if err != nil {
		return nil, err
	}
	snapshot.Issues = issues

	hotspots, err := c.SearchHotspots(project, branch)
	if err != nil {
		return nil, err
	}
	snapshot.Hotspots = hotspots

	measures, err := c.Measures(project, branch, snapshotMetrics)
	if err != nil {
		return nil, err
	}
	snapshot.Measures = measures

	logging.Debug("extracted branch snapshot",
		"project", project,
		"branch", branch,
		"components", len(snapshot.Components),
		"sources", len(snapshot.Sources),
		"issues", len(snapshot.Issues),
		"hotspots", len(snapshot.Hotspots))

	return snapshot, nil
}
