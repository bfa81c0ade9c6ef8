package report

import (
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Pipeline chains the model builder and the encoder into the single
// build-then-encode step the transfer orchestrator runs per branch.
type Pipeline struct {
	builder *Builder
	encoder *Encoder
}

// NewPipeline creates a build-and-encode pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		builder: NewBuilder(),
		encoder: NewEncoder(),
	}
}

// EncodeSnapshot builds the report model for one branch and returns its
// encoded bundle bytes.
func (p *Pipeline) EncodeSnapshot(snapshot *models.Snapshot) ([]byte, error) {
	model, err := p.builder.Build(snapshot)
	if err != nil {
		return nil, err
	}
	return p.encoder.Encode(model)
}
