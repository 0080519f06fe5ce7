package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	runIndexFile = "run_index.json"
	runFile      = "run.json"
)

type RunConfig struct {
	RunID             string  `json:"run_id"`
	Scape             string  `json:"scape"`
	Topology          string  `json:"topology"`
	Islands           int     `json:"islands"`
	PopulationSize    int     `json:"population_size"`
	EliteFraction     float64 `json:"elite_fraction"`
	RandomCount       int     `json:"random_count"`
	MigrationInterval int     `json:"migration_interval"`
	MigrationEvents   int     `json:"migration_events"`
	MigrationSigma    float64 `json:"migration_sigma"`
	Ticks             int     `json:"ticks"`
	FitnessGoal       float64 `json:"fitness_goal"`
	Seed              int64   `json:"seed"`
	Workers           int     `json:"workers"`
	Resumed           bool    `json:"resumed"`
	Store             string  `json:"store"`
}

type RunArtifacts struct {
	Config           RunConfig `json:"config"`
	BestByTick       []float64 `json:"best_by_tick"`
	FinalBestFitness float64   `json:"final_best_fitness"`
	BestRecord       string    `json:"best_record,omitempty"`
	TicksCompleted   int       `json:"ticks_completed"`
	Evaluations      int64     `json:"evaluations"`
	Checkpoints      int       `json:"checkpoints"`
	StopReason       string    `json:"stop_reason"`
	StartedAtUTC     string    `json:"started_at_utc"`
	FinishedAtUTC    string    `json:"finished_at_utc"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Topology         string  `json:"topology"`
	Islands          int     `json:"islands"`
	PopulationSize   int     `json:"population_size"`
	TicksCompleted   int     `json:"ticks_completed"`
	Seed             int64   `json:"seed"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes <baseDir>/<run id>/run.json and returns the run
// directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := RunDir(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, runFile), artifacts); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	data, err := os.ReadFile(filepath.Join(RunDir(baseDir, runID), runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunArtifacts{}, false, nil
		}
		return RunArtifacts{}, false, err
	}
	var artifacts RunArtifacts
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return RunArtifacts{}, false, err
	}
	return artifacts, true, nil
}

func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
