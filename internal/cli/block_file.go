package cli

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/primary"
)

// blockFile is the YAML form of an escalation block accepted by
// `pulse block apply`. A file may hold several documents separated by ---.
// Documents with an id update that block; the rest create new ones.
type blockFile struct {
	ID                  string            `yaml:"id,omitempty"`
	Project             string            `yaml:"project"`
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description,omitempty"`
	Trigger             string            `yaml:"trigger"`
	DeadlineWarningDays int               `yaml:"deadlineWarningDays,omitempty"`
	OutputThreshold     int               `yaml:"outputThreshold,omitempty"`
	OutputPeriodDays    int               `yaml:"outputPeriodDays,omitempty"`
	Target              blockFileTarget   `yaml:"target"`
	Steps               []escalation.Step `yaml:"steps"`
	Enabled             *bool             `yaml:"enabled,omitempty"`
}

type blockFileTarget struct {
	Type    string `yaml:"type"`
	SquadID string `yaml:"squadId,omitempty"`
	Role    string `yaml:"role,omitempty"`
}

// parseBlockFiles decodes every YAML document in r.
func parseBlockFiles(r io.Reader) ([]blockFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var blocks []blockFile
	for i := 0; ; i++ {
		var b blockFile
		err := dec.Decode(&b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no block definitions found")
	}
	return blocks, nil
}

// request converts the file form to a service request. A target defaults to
// all members and enabled defaults to true.
func (b blockFile) request() primary.BlockRequest {
	target := escalation.Target{Type: b.Target.Type, SquadID: b.Target.SquadID, Role: b.Target.Role}
	if target.Type == "" {
		target.Type = escalation.TargetAll
	}
	enabled := true
	if b.Enabled != nil {
		enabled = *b.Enabled
	}
	return primary.BlockRequest{
		ProjectID:           b.Project,
		Name:                b.Name,
		Description:         b.Description,
		TriggerType:         b.Trigger,
		DeadlineWarningDays: b.DeadlineWarningDays,
		OutputThreshold:     b.OutputThreshold,
		OutputPeriodDays:    b.OutputPeriodDays,
		Target:              target,
		Steps:               b.Steps,
		Enabled:             enabled,
	}
}
