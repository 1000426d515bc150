package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xmc-aalto/dismecpp-sub001/internal/ioformat/numpy"
	"github.com/xmc-aalto/dismecpp-sub001/internal/ioformat/text"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// Metadata is the small JSON sidecar persisted alongside a model's weight
// data: everything PredictScores needs to reconstruct a Model that it
// cannot infer from the weight file alone.
type Metadata struct {
	LabelBegin  xmctypes.LabelID `json:"label_begin"`
	LabelEnd    xmctypes.LabelID `json:"label_end"`
	NumFeatures int64            `json:"num_features"`
	Bias        bool             `json:"bias"`
	Sparse      bool             `json:"sparse"`
	Threshold   xmctypes.Real    `json:"threshold,omitempty"`
}

func metaPath(prefix string) string   { return prefix + ".meta.json" }
func weightsNpyPath(prefix string) string  { return prefix + ".weights.npy" }
func weightsTextPath(prefix string) string { return prefix + ".weights.txt" }

// Save persists m at prefix: prefix.meta.json plus either
// prefix.weights.npy (dense model) or prefix.weights.txt (sparse model, in
// the sparse text format).
func Save(prefix string, m Model) error {
	begin, end := m.LabelRange()

	meta := Metadata{LabelBegin: begin, LabelEnd: end, NumFeatures: m.NumFeatures(), Bias: m.HasBias()}

	switch mm := m.(type) {
	case *DenseModel:
		rows := int(end - begin)
		cols := int(numWeights(mm.numFeatures, mm.bias))

		flat := make([]float64, rows*cols)
		for r := 0; r < rows; r++ {
			copy(flat[r*cols:(r+1)*cols], mm.weights.RawRowView(r))
		}

		if err := numpy.SaveMatrixFile(weightsNpyPath(prefix), flat, int64(rows), int64(cols)); err != nil {
			return err
		}
	case *SparseModel:
		meta.Sparse = true
		meta.Threshold = mm.threshold

		cols := numWeights(mm.numFeatures, mm.bias)

		var rows []text.SparseRow

		for _, r := range mm.rows {
			row := text.SparseRow{Index: make([]int32, len(r)), Value: make([]xmctypes.Real, len(r))}
			for i, e := range r {
				row.Index[i] = e.Index
				row.Value[i] = e.Value
			}

			rows = append(rows, row)
		}

		f, err := os.Create(weightsTextPath(prefix))
		if err != nil {
			return xmcerr.NewIOError("creating sparse weights file", err)
		}
		defer f.Close()

		if err := text.WriteSparseMatrix(f, cols, rows); err != nil {
			return err
		}
	default:
		return fmt.Errorf("model: unsupported model type %T for persistence", m)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("model: marshaling metadata: %w", err)
	}

	if err := os.WriteFile(metaPath(prefix), data, 0o644); err != nil {
		return xmcerr.NewIOError("writing model metadata", err)
	}

	return nil
}

// Load reads a model persisted by Save.
func Load(prefix string) (Model, error) {
	data, err := os.ReadFile(metaPath(prefix))
	if err != nil {
		return nil, xmcerr.NewIOError("reading model metadata", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("model: parsing metadata: %w", err)
	}

	if meta.Sparse {
		return loadSparse(prefix, meta)
	}

	return loadDense(prefix, meta)
}

func loadDense(prefix string, meta Metadata) (Model, error) {
	flat, header, err := numpy.LoadMatrixFile(weightsNpyPath(prefix))
	if err != nil {
		return nil, err
	}

	m := NewDenseModel(meta.LabelBegin, meta.LabelEnd, meta.NumFeatures, meta.Bias)

	cols := int(numWeights(meta.NumFeatures, meta.Bias))
	if header.Cols != 0 && int64(cols) != header.Cols {
		return nil, xmcerr.NewShapeError(int64(meta.LabelBegin), "weight matrix has %d columns, expected %d", header.Cols, cols)
	}

	for r := 0; r < int(meta.LabelEnd-meta.LabelBegin); r++ {
		label := meta.LabelBegin + xmctypes.LabelID(r)
		if err := m.SetWeightsForLabel(label, flat[r*cols:(r+1)*cols]); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func loadSparse(prefix string, meta Metadata) (Model, error) {
	f, err := os.Open(weightsTextPath(prefix))
	if err != nil {
		return nil, xmcerr.NewIOError("opening sparse weights file", err)
	}
	defer f.Close()

	file, err := text.ReadSparseMatrix(f)
	if err != nil {
		return nil, err
	}

	m := NewSparseModel(meta.LabelBegin, meta.LabelEnd, meta.NumFeatures, meta.Bias, meta.Threshold)

	for i, row := range file.Rows {
		label := meta.LabelBegin + xmctypes.LabelID(i)

		entries := make([]SparseEntry, len(row.Index))
		for j, idx := range row.Index {
			entries[j] = SparseEntry{Index: idx, Value: row.Value[j]}
		}

		m.rows[label-m.begin] = entries
	}

	return m, nil
}
