package training

import (
	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/stats"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/initialize"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/postproc"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// threadState is the set of per-worker objects InitThread builds once and
// RunTasks reuses across every label that worker trains, avoiding
// reallocating the objective/minimizer/initializer/post-processor per
// label.
type threadState struct {
	objective Objective
	minimizer Minimizer
	init      initialize.WeightsInitializer
	post      postproc.PostProcessor
	weights   []xmctypes.Real
}

// TrainingTaskGenerator is the parallel.TaskGenerator that runs the
// five-step per-label training pipeline — update_objective/update_minimizer,
// get_initial_weight, minimize, post-process, set_weights_for_label — over
// one contiguous label range. One task index corresponds to exactly one
// label. Grounded on the per-label loop described for the original
// engine's TrainingTaskGenerator.
type TrainingTaskGenerator struct {
	parallel.BaseTaskGenerator

	Spec        TrainingSpec
	Model       model.Model
	LabelBegin  xmctypes.LabelID
	NumFeatures int64
	Features    *xmctypes.FeatureMatrix

	Gatherer *stats.Gatherer

	threads []threadState
}

// NumTasks returns one task per label the model owns.
func (g *TrainingTaskGenerator) NumTasks() int64 {
	begin, end := g.Model.LabelRange()
	return int64(end - begin)
}

// Prepare allocates one threadState slot per worker; the gatherer is sized
// to match so stats.Gatherer.For(tid) is always valid from RunTasks.
func (g *TrainingTaskGenerator) Prepare(numThreads int, _ int64) {
	g.threads = make([]threadState, numThreads)

	if g.Gatherer == nil {
		g.Gatherer = stats.NewGatherer(numThreads)
	}
}

// InitThread builds this worker's objective/minimizer/initializer/
// post-processor instances exactly once, using the generator's Features
// matrix, which every worker shares (it is not replicated per NUMA node).
func (g *TrainingTaskGenerator) InitThread(thread parallel.ThreadID) {
	objective := g.Spec.MakeObjective()
	minimizer := g.Spec.MakeMinimizer()

	g.threads[thread] = threadState{
		objective: objective,
		minimizer: minimizer,
		init:      g.Spec.MakeInitializer(g.Features),
		post:      g.Spec.MakePostProcessor(objective),
		weights:   make([]xmctypes.Real, objective.NumVariables()),
	}
}

// RunTasks trains tasks [begin, end) on the calling worker thread; task i
// trains label LabelBegin+i.
func (g *TrainingTaskGenerator) RunTasks(begin, end int64, thread parallel.ThreadID) {
	state := &g.threads[thread]
	collection := g.Gatherer.For(int(thread))

	for task := begin; task < end; task++ {
		label := g.LabelBegin + xmctypes.LabelID(task)

		g.Spec.UpdateObjective(state.objective, label)
		g.Spec.UpdateMinimizer(state.minimizer, label)

		state.init.GetInitialWeight(label, state.weights, state.objective)

		result := state.minimizer.Minimize(state.objective, state.weights)

		state.post.Process(label, state.weights, result, collection)

		if err := g.Model.SetWeightsForLabel(label, state.weights); err != nil {
			collection.RecordFailure(int64(label), err)
			continue
		}

		collection.Record(int64(label), "iterations", "", xmctypes.Real(result.Iterations))
		collection.Record(int64(label), "final_loss", "", result.FinalValue)
	}
}
