package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/dataset"
	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/numa"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/initialize"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/postproc"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

type trainFlags struct {
	input      string
	labels     string
	modelOut   string
	threads    int
	chunk      int64
	timeLimit  float64
	labelRange string
	epsilon    float64
	weightInit string
	post       string
	initModel  string
	reg        float64
	bias       bool
	sparse     bool
}

func newTrainCommand(global *globalFlags) *cobra.Command {
	flags := &trainFlags{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train per-label linear classifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.input, "input", "", "feature matrix file (required)")
	cmd.Flags().StringVar(&flags.labels, "labels", "", "sparse binary label matrix file (required)")
	cmd.Flags().StringVar(&flags.modelOut, "model-out", "", "output model file prefix (required)")
	cmd.Flags().IntVar(&flags.threads, "threads", 0, "worker thread count (0 = hardware concurrency)")
	cmd.Flags().Int64Var(&flags.chunk, "chunk", 16, "labels per dynamically-claimed chunk")
	cmd.Flags().Float64Var(&flags.timeLimit, "time-limit", 0, "wall-clock budget in seconds (0 = no limit)")
	cmd.Flags().StringVar(&flags.labelRange, "label-range", "", "restrict training to label range \"a:b\"")
	cmd.Flags().Float64Var(&flags.epsilon, "epsilon", 0.01, "base convergence tolerance, scaled per label")
	cmd.Flags().StringVar(&flags.weightInit, "weights-init", "zero", "weight initializer: zero, const, pretrained, mean")
	cmd.Flags().StringVar(&flags.post, "post", "", "post-processor: cull:eps, sparsify:tol, reorder, or a comma-separated list")
	cmd.Flags().StringVar(&flags.initModel, "init-model", "", "model prefix to read warm-start weights from (weights-init=pretrained)")
	cmd.Flags().Float64Var(&flags.reg, "reg", 1.0, "L2 regularization strength")
	cmd.Flags().BoolVar(&flags.bias, "bias", true, "append an intercept feature")
	cmd.Flags().BoolVar(&flags.sparse, "sparse-model", false, "store the trained model in sparse row format")

	for _, required := range []string{"input", "labels", "model-out"} {
		_ = cmd.MarkFlagRequired(required)
	}

	return cmd
}

func runTrain(cmd *cobra.Command, global *globalFlags, flags *trainFlags) error {
	logger := global.logger()
	defer func() { _ = logger.Sync() }()

	data, err := dataset.NewFromFiles(flags.input, flags.labels)
	if err != nil {
		return err
	}

	labelBegin, labelEnd := xmctypes.LabelID(0), xmctypes.LabelID(data.NumLabels())

	if flags.labelRange != "" {
		labelBegin, labelEnd, err = parseLabelRange(flags.labelRange)
		if err != nil {
			return err
		}

		data, err = data.SelectLabels(labelBegin, labelEnd)
		if err != nil {
			return err
		}
	}

	if flags.epsilon <= 0 {
		return xmcerr.NewConfigError("epsilon must be > 0, got %g", flags.epsilon)
	}

	spec := training.NewDismecSpec(data, xmctypes.Real(flags.reg), flags.bias)
	spec.EpsilonBase = xmctypes.Real(flags.epsilon)
	spec.UseSparse = flags.sparse

	initStrategy, err := buildInitStrategy(flags, data)
	if err != nil {
		return err
	}

	spec.Init = initStrategy

	postFactory, err := buildPostFactory(flags.post)
	if err != nil {
		return err
	}

	spec.PostProc = postFactory

	m := spec.MakeModel(data.NumFeatures(), labelBegin, labelEnd)

	task := &training.TrainingTaskGenerator{
		Spec:        spec,
		Model:       m,
		LabelBegin:  labelBegin,
		NumFeatures: data.NumFeatures(),
		Features:    data.Features,
	}

	runner := parallel.NewRunner(flags.threads, flags.chunk)
	runner.Logger = logger

	if global.numaEnabled(cmd) {
		runner.Topology = numa.Discover(logger)
	}

	if flags.timeLimit > 0 {
		runner.TimeLimit = time.Duration(flags.timeLimit * float64(time.Second))
	}

	result := runner.Run(task, 0)

	if err := model.Save(flags.modelOut, m); err != nil {
		return err
	}

	report := task.Gatherer.Finalize()

	logger.Info("training run complete",
		zap.Bool("finished", result.Finished),
		zap.Int64("next_task", result.NextTask),
		zap.Duration("wall_time", result.WallTime),
		zap.Int("failed_labels", len(report.FailedLabels)))

	if len(report.FailedLabels) > 0 {
		fmt.Printf("training finished with %d failed labels (see model metadata for label range)\n", len(report.FailedLabels))

		for _, fl := range report.FailedLabels {
			fmt.Printf("  label %d: %s\n", fl.Label, fl.Error)
		}
	}

	if !result.Finished {
		fmt.Printf("time limit reached: trained labels up to %d, resume from there\n", result.NextTask)
	}

	return nil
}

func parseLabelRange(s string) (xmctypes.LabelID, xmctypes.LabelID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, xmcerr.NewConfigError("label-range must be \"a:b\", got %q", s)
	}

	a, err1 := strconv.ParseInt(parts[0], 10, 64)
	b, err2 := strconv.ParseInt(parts[1], 10, 64)

	if err1 != nil || err2 != nil || a < 0 || b <= a {
		return 0, 0, xmcerr.NewConfigError("invalid label-range %q", s)
	}

	return xmctypes.LabelID(a), xmctypes.LabelID(b), nil
}

func buildInitStrategy(flags *trainFlags, data *dataset.Dataset) (initialize.WeightInitializationStrategy, error) {
	switch flags.weightInit {
	case "", "zero":
		return initialize.NewZeroStrategy(), nil
	case "const":
		cols := int(data.NumFeatures())
		if flags.bias {
			cols++
		}

		return initialize.NewConstantStrategy(make([]xmctypes.Real, cols)), nil
	case "mean":
		return initialize.NewFeatureMeanStrategy(data, 1, -2, flags.bias), nil
	case "pretrained":
		if flags.initModel == "" {
			return nil, xmcerr.NewConfigError("weights-init=pretrained requires --init-model")
		}

		prior, err := model.Load(flags.initModel)
		if err != nil {
			return nil, err
		}

		source, ok := prior.(initialize.WeightRowSource)
		if !ok {
			return nil, xmcerr.NewConfigError("model at %s does not support row-based warm start", flags.initModel)
		}

		return initialize.NewPretrainedStrategy(source), nil
	default:
		return nil, xmcerr.NewConfigError("unknown weights-init %q", flags.weightInit)
	}
}

func buildPostFactory(spec string) (postproc.Factory, error) {
	if spec == "" {
		return postproc.NewIdentityFactory(), nil
	}

	var factories []postproc.Factory

	for _, part := range strings.Split(spec, ",") {
		factory, err := buildSinglePostFactory(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}

		factories = append(factories, factory)
	}

	if len(factories) == 1 {
		return factories[0], nil
	}

	return postproc.NewCombinedFactory(factories), nil
}

func buildSinglePostFactory(part string) (postproc.Factory, error) {
	name, arg, _ := strings.Cut(part, ":")

	switch name {
	case "cull":
		eps, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, xmcerr.NewConfigError("invalid cull epsilon %q", arg)
		}

		return postproc.NewCullingFactory(xmctypes.Real(eps)), nil
	case "sparsify":
		tol, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, xmcerr.NewConfigError("invalid sparsify tolerance %q", arg)
		}

		return postproc.NewSparsifyFactory(xmctypes.Real(tol)), nil
	case "reorder":
		return nil, xmcerr.NewConfigError("reorder post-processor requires a permutation, not available from the CLI")
	default:
		return nil, xmcerr.NewConfigError("unknown post-processor %q", name)
	}
}
