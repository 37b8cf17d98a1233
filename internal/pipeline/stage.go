// Package pipeline implements the staged processing pipeline every memory
// item passes through: a fixed ordered sequence of named stages, each
// holding swappable named processors chosen by a declarative profile.
package pipeline

import "fmt"

// Stage is one of the six fixed pipeline phases.
type Stage string

const (
	StageAcquisition  Stage = "acquisition"
	StageEncoding     Stage = "encoding"
	StageDerivation   Stage = "derivation"
	StageRetrieval    Stage = "retrieval"
	StageNeuralMemory Stage = "neuralMemory"
	StageUtilization  Stage = "utilization"
)

// StageOrder is the fixed processing order. Items enter at acquisition and
// exit after utilization; the set is closed, profiles cannot add stages.
var StageOrder = []Stage{
	StageAcquisition,
	StageEncoding,
	StageDerivation,
	StageRetrieval,
	StageNeuralMemory,
	StageUtilization,
}

var stageIndex = func() map[Stage]int {
	index := make(map[Stage]int, len(StageOrder))
	for i, stage := range StageOrder {
		index[stage] = i
	}
	return index
}()

// ParseStage validates a stage name from configuration.
func ParseStage(name string) (Stage, error) {
	stage := Stage(name)
	if _, ok := stageIndex[stage]; !ok {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return stage, nil
}

// Before reports whether s comes before other in the fixed order.
func (s Stage) Before(other Stage) bool {
	return stageIndex[s] < stageIndex[other]
}
