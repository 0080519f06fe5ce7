package model

import (
	"fmt"
	"strconv"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Shape is the [out, in] extent of a weight matrix.
type Shape struct {
	Out int `json:"out"`
	In  int `json:"in"`
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d,%d]", s.Out, s.In)
}

// Layer holds one fully connected layer. Weights are row-major [Out][In].
type Layer struct {
	Name    string    `json:"name"`
	Shape   Shape     `json:"shape"`
	Weights []float32 `json:"weights"`
	Bias    []float32 `json:"bias,omitempty"`
}

type Genome struct {
	VersionedRecord
	ID       string  `json:"id"`
	Topology string  `json:"topology"`
	Layers   []Layer `json:"layers"`
}

// LayerSpec describes one layer of a topology.
type LayerSpec struct {
	Name       string `json:"name"`
	Out        int    `json:"out"`
	In         int    `json:"in"`
	Activation string `json:"activation"`
}

func (s LayerSpec) Shape() Shape {
	return Shape{Out: s.Out, In: s.In}
}

// Topology is the fixed network layout shared by every genome of a run.
type Topology struct {
	Name   string      `json:"name"`
	Layers []LayerSpec `json:"layers"`
}

func (t Topology) Inputs() int {
	if len(t.Layers) == 0 {
		return 0
	}
	return t.Layers[0].In
}

func (t Topology) Outputs() int {
	if len(t.Layers) == 0 {
		return 0
	}
	return t.Layers[len(t.Layers)-1].Out
}

type ScoredGenome struct {
	Genome  Genome
	Fitness float64
	Trace   map[string]any
}

// RecordID names a persisted checkpoint as <prefix>_<topology>_<seq>.
type RecordID struct {
	Prefix   string `json:"prefix"`
	Topology string `json:"topology"`
	Seq      int    `json:"seq"`
}

func (r RecordID) String() string {
	return r.Prefix + "_" + r.Topology + "_" + strconv.Itoa(r.Seq)
}

type GenerationDiagnostics struct {
	Tick          int     `json:"tick" csv:"tick"`
	Island        int     `json:"island" csv:"island"`
	BestFitness   float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness" csv:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness" csv:"min_fitness"`
	StdDevFitness float64 `json:"stddev_fitness" csv:"stddev_fitness"`
	Sigma         float64 `json:"sigma" csv:"sigma"`
	MaxAmplitude  float64 `json:"max_amplitude" csv:"max_amplitude"`
	EliteCount    int     `json:"elite_count" csv:"elite_count"`
}
