package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/dataset"
	"github.com/xmc-aalto/dismecpp-sub001/internal/ioformat/text"
	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/numa"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/predict"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

type predictFlags struct {
	modelPath string
	input     string
	output    string
	topK      int
	threads   int
	chunk     int64
	labels    string
}

func newPredictCommand(global *globalFlags) *cobra.Command {
	flags := &predictFlags{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score examples against a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.modelPath, "model", "", "model file prefix (required)")
	cmd.Flags().StringVar(&flags.input, "input", "", "feature matrix file (required)")
	cmd.Flags().StringVar(&flags.output, "output", "", "prediction output file (required)")
	cmd.Flags().IntVar(&flags.topK, "topk", 0, "if > 0, write only the top-K scores per example")
	cmd.Flags().IntVar(&flags.threads, "threads", 0, "worker thread count (0 = hardware concurrency)")
	cmd.Flags().Int64Var(&flags.chunk, "chunk", 64, "examples per dynamically-claimed chunk")
	cmd.Flags().StringVar(&flags.labels, "labels", "", "optional ground-truth label file, enables confusion-matrix reporting with --topk")

	for _, required := range []string{"model", "input", "output"} {
		_ = cmd.MarkFlagRequired(required)
	}

	return cmd
}

func runPredict(cmd *cobra.Command, global *globalFlags, flags *predictFlags) error {
	logger := global.logger()
	defer func() { _ = logger.Sync() }()

	m, err := model.Load(flags.modelPath)
	if err != nil {
		return err
	}

	features, err := dataset.LoadFeatures(flags.input)
	if err != nil {
		return err
	}

	var topo *numa.Topology
	if global.numaEnabled(cmd) {
		topo = numa.Discover(logger)
	}

	runner := parallel.NewRunner(flags.threads, flags.chunk)
	runner.Logger = logger
	runner.Topology = topo

	if flags.topK <= 0 {
		task := predict.NewDensePredictionTask(features, m, topo, logger)

		result := runner.Run(task, 0)
		logger.Info("dense prediction complete", zap.Duration("wall_time", result.WallTime))

		begin, end := m.LabelRange()

		return text.WriteDenseMatrixFile(flags.output, task.Predictions, int64(features.Rows()), int64(end-begin))
	}

	var groundTruth [][]xmctypes.LabelID

	if flags.labels != "" {
		incidence, numLabels, _, err := dataset.LoadLabels(flags.labels)
		if err != nil {
			return err
		}

		ds := dataset.New(features, incidence, numLabels)
		groundTruth = ds.GroundTruth()
	}

	task := predict.NewTopKPredictionTask(features, m, topo, flags.topK, groundTruth, logger)

	result := runner.Run(task, 0)
	logger.Info("top-k prediction complete", zap.Duration("wall_time", result.WallTime))

	if flags.labels != "" {
		cm := task.ConfusionMatrix()
		fmt.Printf("confusion matrix: TP=%d FP=%d TN=%d FN=%d\n",
			cm[predict.TruePositives], cm[predict.FalsePositives], cm[predict.TrueNegatives], cm[predict.FalseNegatives])
	}

	return writeTopKPredictions(flags.output, task)
}

func writeTopKPredictions(path string, task *predict.TopKPredictionTask) error {
	f, err := os.Create(path)
	if err != nil {
		return xmcerr.NewIOError("creating prediction output file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	n := len(task.TopKIndices) / task.K

	if _, err := fmt.Fprintf(w, "%d %d\n", n, task.K); err != nil {
		return xmcerr.NewIOError("writing prediction header", err)
	}

	for i := 0; i < n; i++ {
		row := task.TopKValues[i*task.K : (i+1)*task.K]
		idx := task.TopKIndices[i*task.K : (i+1)*task.K]

		for j := 0; j < task.K; j++ {
			if j > 0 {
				if err := w.WriteByte(' '); err != nil {
					return xmcerr.NewIOError("writing prediction row", err)
				}
			}

			if _, err := fmt.Fprintf(w, "%d:%g", idx[j], row[j]); err != nil {
				return xmcerr.NewIOError("writing prediction row", err)
			}
		}

		if err := w.WriteByte('\n'); err != nil {
			return xmcerr.NewIOError("writing prediction row terminator", err)
		}
	}

	return nil
}
