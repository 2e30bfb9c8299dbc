package contract

import (
	"context"

	"github.com/sjdu10/quimb/internal/tn"
)

// Network plans and executes the full contraction of a tensor network down
// to the requested output indices. A nil output means the network's open
// indices, in sorted order; a nil planner means the default configuration.
func Network(ctx context.Context, net *tn.TensorNetwork, output []string, planner *Planner, cfg ExecConfig) (*tn.Tensor, *PathInfo, error) {
	if net.NumTensors() == 0 {
		return nil, nil, logicf("cannot contract an empty network")
	}
	if output == nil {
		output = net.OpenInds()
	}
	if planner == nil {
		planner = NewPlanner(PlannerConfig{})
	}

	tensors, inputs, dims := problemOf(net)
	path, info, err := planner.Plan(inputs, output, dims)
	if err != nil {
		return nil, nil, err
	}
	res, err := Execute(ctx, path, tensors, output, cfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Tensor, info, nil
}

// problemOf extracts the planning problem from a network, tensors in tid
// order.
func problemOf(net *tn.TensorNetwork) ([]*tn.Tensor, [][]string, map[string]int) {
	tensors := net.Tensors()
	inputs := make([][]string, len(tensors))
	for i, t := range tensors {
		inputs[i] = t.Inds()
	}
	dims := map[string]int{}
	for _, ind := range net.Registry().Inds() {
		d, _ := net.Registry().Dim(ind)
		dims[ind] = d
	}
	return tensors, inputs, dims
}

// NetworkPartial plans a full path but executes only the first maxSteps
// contractions, returning the reduced network.
func NetworkPartial(ctx context.Context, net *tn.TensorNetwork, output []string, maxSteps int, planner *Planner, cfg ExecConfig) (*tn.TensorNetwork, *PathInfo, error) {
	if maxSteps < 1 {
		return nil, nil, logicf("partial contraction needs at least one step, got %d", maxSteps)
	}
	if net.NumTensors() == 0 {
		return nil, nil, logicf("cannot contract an empty network")
	}
	if maxSteps >= net.NumTensors()-1 {
		return nil, nil, logicf("%d steps would fully contract %d tensors", maxSteps, net.NumTensors())
	}
	if output == nil {
		output = net.OpenInds()
	}
	if planner == nil {
		planner = NewPlanner(PlannerConfig{})
	}

	tensors, inputs, dims := problemOf(net)
	path, info, err := planner.Plan(inputs, output, dims)
	if err != nil {
		return nil, nil, err
	}
	cfg.MaxSteps = maxSteps
	res, err := Execute(ctx, path, tensors, output, cfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Network, info, nil
}
