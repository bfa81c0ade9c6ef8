package report

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Node is one component of the report's component tree.
type Node struct {
	Ref       int32
	Type      string // "PROJECT", "DIRECTORY" or "FILE"
	Path      string
	Language  string
	ChildRefs []int32
	Lines     int32
}

// AttachedFinding is a finding bound to the ref of its owning file component.
type AttachedFinding struct {
	Ref     int32
	Kind    string // "ISSUE" or "HOTSPOT"
	Finding models.Finding
}

// Model is the encoder's input: metadata, the component tree and the
// findings attached to it. Built fresh per branch and never persisted.
type Model struct {
	ProjectKey   string
	BranchName   string
	AnalysisDate time.Time
	Revision     string
	RootRef      int32
	Components   []Node
	Findings     []AttachedFinding
}

// Builder converts one branch's snapshot into a report model.
type Builder struct{}

// NewBuilder creates a report model builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the report model for one branch. Directory/file topology
// follows the snapshot's component paths; parents missing from the listing
// are synthesized so every file hangs off the project root. Issues and
// hotspots are attached to their owning file component by path equality.
func (b *Builder) Build(snapshot *models.Snapshot) (*Model, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	model := &Model{
		ProjectKey:   snapshot.ProjectKey,
		BranchName:   snapshot.Branch,
		AnalysisDate: snapshot.AnalysisDate,
		Revision:     snapshot.Revision,
		RootRef:      1,
	}

	model.Components = append(model.Components, Node{
		Ref:  1,
		Type: "PROJECT",
	})
	refByPath := map[string]int{"": 0}
	nextRef := int32(2)

	var ensureDir func(dirPath string) int32
	ensureDir = func(dirPath string) int32 {
		if dirPath == "." || dirPath == "/" {
			dirPath = ""
		}
		if idx, ok := refByPath[dirPath]; ok {
			return model.Components[idx].Ref
		}
		parentRef := ensureDir(path.Dir(dirPath))
		node := Node{
			Ref:  nextRef,
			Type: "DIRECTORY",
			Path: dirPath,
		}
		nextRef++
		model.Components = append(model.Components, node)
		refByPath[dirPath] = len(model.Components) - 1
		b.appendChild(model, parentRef, node.Ref)
		return node.Ref
	}

	for _, c := range snapshot.Components {
		if c.Path == "" {
			continue
		}
		if !c.IsFile() {
			ensureDir(c.Path)
			continue
		}
		if _, ok := refByPath[c.Path]; ok {
			continue
		}
		parentRef := ensureDir(path.Dir(c.Path))
		node := Node{
			Ref:      nextRef,
			Type:     "FILE",
			Path:     c.Path,
			Language: c.Language,
			Lines:    countLines(snapshot.Sources[c.Path]),
		}
		nextRef++
		model.Components = append(model.Components, node)
		refByPath[c.Path] = len(model.Components) - 1
		b.appendChild(model, parentRef, node.Ref)
	}

	attach := func(findings []models.Finding, kind string) {
		for _, f := range findings {
			idx, ok := refByPath[f.Path]
			if !ok || model.Components[idx].Type != "FILE" {
				logging.Debug("dropping finding with no matching file component",
					"finding", f.Key,
					"path", f.Path)
				continue
			}
			model.Findings = append(model.Findings, AttachedFinding{
				Ref:     model.Components[idx].Ref,
				Kind:    kind,
				Finding: f,
			})
		}
	}
	attach(snapshot.Issues, "ISSUE")
	attach(snapshot.Hotspots, "HOTSPOT")

	return model, nil
}

// appendChild records a parent-child edge in the component tree.
func (b *Builder) appendChild(model *Model, parentRef, childRef int32) {
	for i := range model.Components {
		if model.Components[i].Ref == parentRef {
			model.Components[i].ChildRefs = append(model.Components[i].ChildRefs, childRef)
			return
		}
	}
}

// countLines counts the number of lines in a source text.
func countLines(source string) int32 {
	if source == "" {
		return 0
	}
	n := int32(strings.Count(source, "\n"))
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}
