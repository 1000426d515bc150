// Package predict implements the two prediction task generators: plain
// dense scoring and top-K prediction with streaming confusion-matrix
// accumulation. Grounded on the original engine's
// prediction/{prediction.h,prediction.cpp}.
package predict

import (
	"math"

	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/numa"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// base holds the pieces both prediction task generators share: the
// dataset's feature matrix, replicated per NUMA node, with a thread-local
// handle to the local copy resolved once in InitThread.
type base struct {
	Features *xmctypes.FeatureMatrix
	Model    model.Model
	Topology *numa.Topology
	Logger   *zap.Logger

	replicator  *numa.Replicator[*xmctypes.FeatureMatrix]
	threadLocal []*xmctypes.FeatureMatrix
}

func (b *base) prepare(numThreads int) {
	if b.replicator == nil {
		b.replicator = numa.Replicate(b.Topology, b.Features, func() *xmctypes.FeatureMatrix {
			return b.Features.Clone()
		}, b.Logger)
	}

	b.threadLocal = make([]*xmctypes.FeatureMatrix, numThreads)
}

func (b *base) initThread(thread parallel.ThreadID) {
	b.threadLocal[thread] = b.replicator.Local()
}

func (b *base) localFeatures(thread parallel.ThreadID) *xmctypes.FeatureMatrix {
	return b.threadLocal[thread]
}

// DensePredictionTask scores every example against the model, writing an
// N x L' row-major score matrix.
type DensePredictionTask struct {
	parallel.BaseTaskGenerator

	base

	Predictions []xmctypes.Real // N x L', allocated by Prepare
	numLabels   int
}

// NewDensePredictionTask builds a dense prediction task over features
// scored against model.
func NewDensePredictionTask(features *xmctypes.FeatureMatrix, m model.Model, topo *numa.Topology, logger *zap.Logger) *DensePredictionTask {
	return &DensePredictionTask{base: base{Features: features, Model: m, Topology: topo, Logger: logger}}
}

// NumTasks returns N, one task per example row.
func (t *DensePredictionTask) NumTasks() int64 { return int64(t.Features.Rows()) }

// Prepare allocates the N x L' output matrix and NUMA-replicates features.
func (t *DensePredictionTask) Prepare(numThreads int, _ int64) {
	t.base.prepare(numThreads)

	begin, end := t.Model.LabelRange()
	t.numLabels = int(end - begin)
	t.Predictions = make([]xmctypes.Real, t.Features.Rows()*t.numLabels)
}

// InitThread resolves this worker's NUMA-local feature matrix handle.
func (t *DensePredictionTask) InitThread(thread parallel.ThreadID) { t.base.initThread(thread) }

// RunTasks scores examples [begin, end) into the shared output matrix;
// disjoint row ranges make this safe without locking.
func (t *DensePredictionTask) RunTasks(begin, end int64, thread parallel.ThreadID) {
	features := t.localFeatures(thread)

	out := t.Predictions[int(begin)*t.numLabels : int(end)*t.numLabels]

	_ = t.Model.PredictScores(features, int(begin), int(end), out)
}

// Confusion matrix slot indices, matching the original engine's
// TRUE_POSITIVES/FALSE_POSITIVES/TRUE_NEGATIVES/FALSE_NEGATIVES constants.
const (
	TruePositives = iota
	FalsePositives
	TrueNegatives
	FalseNegatives
)

// topKScratch is the per-thread working set for one chunk of the top-K
// task: a chunk x numLabels score buffer, a chunk x K value/index
// buffer, and a local confusion-matrix accumulator.
type topKScratch struct {
	values  []xmctypes.Real // chunkCap x K
	indices []int64         // chunkCap x K
	scores  []xmctypes.Real // chunkCap x numLabels, reused per RunTasks call
	chunkCap int

	confusion [4]int64
}

// TopKPredictionTask maintains the global top-K values/indices matrices
// across (potentially several, label-range-disjoint) models and a running
// confusion matrix, following the five-step chunk algorithm: load global
// top-K into thread scratch, score the chunk, accumulate confusion counts,
// insertion-merge the new scores into the sorted top-K prefix, commit back.
type TopKPredictionTask struct {
	parallel.BaseTaskGenerator

	base

	K int

	TopKValues  []xmctypes.Real // N x K, −∞ where unfilled
	TopKIndices []int64         // N x K, valid where TopKValues > −∞

	groundTruth [][]xmctypes.LabelID

	scratch     []topKScratch
	confusion   [4]int64
}

// NewTopKPredictionTask builds a top-K prediction task. groundTruth is the
// per-example list of true label ids (dataset.Dataset.GroundTruth()),
// used only for confusion-matrix accounting.
func NewTopKPredictionTask(features *xmctypes.FeatureMatrix, m model.Model, topo *numa.Topology, k int, groundTruth [][]xmctypes.LabelID, logger *zap.Logger) *TopKPredictionTask {
	return &TopKPredictionTask{
		base:        base{Features: features, Model: m, Topology: topo, Logger: logger},
		K:           k,
		groundTruth: groundTruth,
	}
}

// NumTasks returns N.
func (t *TopKPredictionTask) NumTasks() int64 { return int64(t.Features.Rows()) }

// Prepare allocates the global top-K matrices (once) and per-thread
// scratch sized to chunkSize.
func (t *TopKPredictionTask) Prepare(numThreads int, chunkSize int64) {
	t.base.prepare(numThreads)

	n := t.Features.Rows()

	if t.TopKValues == nil {
		t.TopKValues = make([]xmctypes.Real, n*t.K)
		t.TopKIndices = make([]int64, n*t.K)

		for i := range t.TopKValues {
			t.TopKValues[i] = negInf
		}
	}

	t.scratch = make([]topKScratch, numThreads)

	begin, end := t.Model.LabelRange()
	numLabels := int(end - begin)

	for i := range t.scratch {
		t.scratch[i] = topKScratch{
			values:   make([]xmctypes.Real, int(chunkSize)*t.K),
			indices:  make([]int64, int(chunkSize)*t.K),
			scores:   make([]xmctypes.Real, int(chunkSize)*numLabels),
			chunkCap: int(chunkSize),
		}
	}
}

// InitThread resolves this worker's NUMA-local feature matrix handle.
func (t *TopKPredictionTask) InitThread(thread parallel.ThreadID) { t.base.initThread(thread) }

var negInf = xmctypes.Real(math.Inf(-1))

// UpdateModel swaps in a new model covering a different (typically
// label-disjoint) range, for multi-shard inference over several trained
// models against the same examples.
func (t *TopKPredictionTask) UpdateModel(m model.Model) { t.Model = m }

// RunTasks implements the five-step chunk algorithm for examples
// [begin, end).
func (t *TopKPredictionTask) RunTasks(begin, end int64, thread parallel.ThreadID) {
	scr := &t.scratch[thread]
	chunk := int(end - begin)

	labelBegin, labelEnd := t.Model.LabelRange()
	numLabels := int(labelEnd - labelBegin)

	// Step 1: load the current global top-K into thread-local scratch.
	for i := 0; i < chunk; i++ {
		row := int(begin) + i
		copy(scr.values[i*t.K:(i+1)*t.K], t.TopKValues[row*t.K:(row+1)*t.K])
		copy(scr.indices[i*t.K:(i+1)*t.K], t.TopKIndices[row*t.K:(row+1)*t.K])
	}

	// Step 2: score the chunk against this model's label range.
	features := t.localFeatures(thread)
	scores := scr.scores[:chunk*numLabels]
	_ = t.Model.PredictScores(features, int(begin), int(end), scores)

	// Step 3: confusion counters over this chunk.
	var pGT, pPred, tp int64

	for i := 0; i < chunk; i++ {
		row := int(begin) + i

		var truthSet map[xmctypes.LabelID]struct{}

		if row < len(t.groundTruth) {
			rowTruth := t.groundTruth[row]
			truthSet = make(map[xmctypes.LabelID]struct{}, len(rowTruth))

			for _, l := range rowTruth {
				truthSet[l] = struct{}{}
			}
		}

		for j := 0; j < numLabels; j++ {
			label := labelBegin + xmctypes.LabelID(j)

			_, isGT := truthSet[label]
			if isGT {
				pGT++
			}

			score := scores[i*numLabels+j]
			if score > 0 {
				pPred++

				if isGT {
					tp++
				}
			}
		}
	}

	total := int64(chunk) * int64(numLabels)
	scr.confusion[TruePositives] += tp
	scr.confusion[TrueNegatives] += total - pPred - pGT + tp
	scr.confusion[FalseNegatives] += pGT - tp
	scr.confusion[FalsePositives] += pPred - tp

	// Step 4: insertion-merge this model's scores into the sorted top-K
	// prefix, per example.
	for i := 0; i < chunk; i++ {
		rowVals := scr.values[i*t.K : (i+1)*t.K]
		rowIdx := scr.indices[i*t.K : (i+1)*t.K]

		threshold := rowVals[t.K-1]

		for j := 0; j < numLabels; j++ {
			v := scores[i*numLabels+j]
			if v < threshold {
				continue
			}

			idx := int64(labelBegin) + int64(j)

			pos := t.K - 1
			for pos > 0 && rowVals[pos-1] < v {
				rowVals[pos] = rowVals[pos-1]
				rowIdx[pos] = rowIdx[pos-1]
				pos--
			}

			rowVals[pos] = v
			rowIdx[pos] = idx

			threshold = rowVals[t.K-1]
		}
	}

	// Step 5: commit scratch back to the global top-K rows.
	for i := 0; i < chunk; i++ {
		row := int(begin) + i
		copy(t.TopKValues[row*t.K:(row+1)*t.K], scr.values[i*t.K:(i+1)*t.K])
		copy(t.TopKIndices[row*t.K:(row+1)*t.K], scr.indices[i*t.K:(i+1)*t.K])
	}
}

// Finalize sums every thread's confusion-matrix accumulator into the
// global total.
func (t *TopKPredictionTask) Finalize() {
	for _, s := range t.scratch {
		t.confusion[TruePositives] += s.confusion[TruePositives]
		t.confusion[FalsePositives] += s.confusion[FalsePositives]
		t.confusion[TrueNegatives] += s.confusion[TrueNegatives]
		t.confusion[FalseNegatives] += s.confusion[FalseNegatives]
	}

	for i := range t.scratch {
		t.scratch[i].confusion = [4]int64{}
	}
}

// ConfusionMatrix returns the accumulated [TP, FP, TN, FN] totals.
func (t *TopKPredictionTask) ConfusionMatrix() [4]int64 { return t.confusion }
