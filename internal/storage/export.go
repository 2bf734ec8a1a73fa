package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
)

type ExportData struct {
	ID      string             `json:"id,omitempty"`
	Model   string             `json:"model"`
	Solver  string             `json:"solver"`
	Params  map[string]float64 `json:"params"`
	Labels  []string           `json:"labels"`
	Times   []float64          `json:"times"`
	States  [][]float64        `json:"states"`
	Summary experiment.Summary `json:"summary"`
}

// ExportJSON writes a stored run with its samples as one JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, traj *dynamo.Trajectory) error {
	data := ExportData{
		ID:      meta.ID,
		Model:   meta.Model,
		Solver:  meta.Solver,
		Params:  meta.Params,
		Labels:  traj.Labels,
		Times:   traj.Times,
		States:  make([][]float64, len(traj.States)),
		Summary: meta.Summary,
	}
	for i, s := range traj.States {
		data.States[i] = s
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
