package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Solver    string             `json:"solver"`
	Duration  float64            `json:"duration"`
	Points    int                `json:"points"`
	Params    map[string]float64 `json:"params"`
	Labels    []string           `json:"labels"`
	Summary   experiment.Summary `json:"summary"`
}

// Save writes metadata.json and states.csv for a finished run and returns its id.
func (s *Store) Save(exp *experiment.Experiment, solver string, traj *dynamo.Trajectory) (string, error) {
	now := s.now()
	runID := fmt.Sprintf("%s_%d", exp.Name(), now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	grid := exp.Grid()
	meta := RunMetadata{
		ID:        runID,
		Name:      exp.Name(),
		Model:     exp.Variant().String(),
		Timestamp: now,
		Solver:    solver,
		Duration:  grid[len(grid)-1] - grid[0],
		Points:    len(grid),
		Params:    exp.Params(),
		Labels:    traj.Labels,
		Summary:   experiment.Report(exp, traj),
	}

	if err := writeFile(filepath.Join(runDir, "metadata.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, "states.csv"), func(w io.Writer) error {
		return WriteCSV(w, traj)
	}); err != nil {
		return "", err
	}
	return runID, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads states.csv back into a labelled trajectory.
func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// Latest returns the id of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: store is empty", ErrNotFound)
	}
	return runs[0].ID, nil
}

// WriteCSV writes a header of "time" plus compartment labels, then one row per sample.
func WriteCSV(w io.Writer, traj *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)

	header := []string{"time"}
	labels := traj.Labels
	if len(labels) == 0 && len(traj.States) > 0 {
		for i := range traj.States[0] {
			labels = append(labels, fmt.Sprintf("x%d", i))
		}
	}
	header = append(header, labels...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, x := range traj.States {
		row := make([]string, 0, len(x)+1)
		row = append(row, strconv.FormatFloat(traj.Times[i], 'g', -1, 64))
		for _, v := range x {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) (*dynamo.Trajectory, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("states.csv: missing header")
	}

	traj := &dynamo.Trajectory{Labels: append([]string(nil), records[0][1:]...)}
	for line, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("states.csv line %d: %w", line+2, err)
		}
		x := make(dynamo.State, len(record)-1)
		for j, field := range record[1:] {
			if x[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("states.csv line %d: %w", line+2, err)
			}
		}
		traj.Times = append(traj.Times, t)
		traj.States = append(traj.States, x)
	}
	return traj, nil
}
