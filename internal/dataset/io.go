package dataset

import (
	"bufio"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/ioformat/numpy"
	"github.com/xmc-aalto/dismecpp-sub001/internal/ioformat/text"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// LoadFeatures reads a feature matrix from path, auto-detecting the
// format: npy magic bytes select the binary reader; otherwise the text
// header is read and the first data line decides dense vs sparse (a
// colon in the line means index:value sparse rows).
func LoadFeatures(path string) (*xmctypes.FeatureMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xmcerr.NewIOError("opening feature file", err)
	}
	defer f.Close()

	isNpy, err := numpy.IsNpy(f)
	if err != nil {
		return nil, xmcerr.NewIOError("probing feature file format", err)
	}

	if isNpy {
		flat, header, err := numpy.LoadMatrix(f)
		if err != nil {
			return nil, err
		}

		cols := header.Cols
		if cols == 0 {
			cols = 1
		}

		return xmctypes.NewDenseFeatureMatrix(mat.NewDense(int(header.Rows), int(cols), flat)), nil
	}

	return loadTextFeatures(f)
}

func loadTextFeatures(f *os.File) (*xmctypes.FeatureMatrix, error) {
	reader := bufio.NewReader(f)

	headerLine, err := reader.ReadString('\n')
	if err != nil && headerLine == "" {
		return nil, xmcerr.NewIOError("reading feature file header", err)
	}

	header, err := text.ParseHeader(strings.TrimRight(headerLine, "\r\n"))
	if err != nil {
		return nil, err
	}

	peeked, err := reader.Peek(4096)
	if err != nil && len(peeked) == 0 {
		return nil, xmcerr.NewParseError("", 0, "feature file has a header but no data rows")
	}

	if strings.ContainsRune(string(peeked), ':') {
		return loadSparseTextFeatures(reader, header)
	}

	return loadDenseTextFeatures(reader, header)
}

func loadSparseTextFeatures(reader *bufio.Reader, header text.MatrixHeader) (*xmctypes.FeatureMatrix, error) {
	rowStart := make([]int32, 0, header.Rows+1)
	colIndex := make([]int32, 0, header.Rows*4)
	values := make([]xmctypes.Real, 0, header.Rows*4)

	rowStart = append(rowStart, 0)

	example := int64(0)

	for {
		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			break
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" || trimmed[0] == '#' {
			if err != nil {
				break
			}

			continue
		}

		if example >= header.Rows {
			return nil, xmcerr.NewParseError("", 0, "encountered row %d but header declared only %d rows", example, header.Rows)
		}

		parseErr := text.ParseSparseVector(trimmed, func(index int64, value xmctypes.Real) error {
			if index < 0 || index >= header.Cols {
				return xmcerr.NewParseError("", 0, "index %d out of range for %d columns", index, header.Cols)
			}

			colIndex = append(colIndex, int32(index))
			values = append(values, value)

			return nil
		})
		if parseErr != nil {
			return nil, parseErr
		}

		rowStart = append(rowStart, int32(len(colIndex)))
		example++

		if err != nil {
			break
		}
	}

	sparse := xmctypes.NewSparseMatrix(int(header.Rows), int(header.Cols), rowStart, colIndex, values)

	return xmctypes.NewSparseFeatureMatrix(sparse), nil
}

func loadDenseTextFeatures(reader *bufio.Reader, header text.MatrixHeader) (*xmctypes.FeatureMatrix, error) {
	data := make([]xmctypes.Real, header.Rows*header.Cols)

	if err := text.ReadDenseVector(reader, data); err != nil {
		return nil, err
	}

	return xmctypes.NewDenseFeatureMatrix(mat.NewDense(int(header.Rows), int(header.Cols), data)), nil
}

// LoadLabels reads the sparse binary label incidence file at path.
func LoadLabels(path string) (Incidence, int64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, xmcerr.NewIOError("opening label file", err)
	}
	defer f.Close()

	numLabels, numExamples, incidence, err := text.ReadBinarySparseLabels(f)
	if err != nil {
		return nil, 0, 0, err
	}

	return Incidence(incidence), int64(numLabels), numExamples, nil
}

// NewFromFiles loads features and labels from disk and builds a Dataset,
// reconciling the label file's declared example count against the
// feature matrix's row count.
func NewFromFiles(featuresPath, labelsPath string) (*Dataset, error) {
	features, err := LoadFeatures(featuresPath)
	if err != nil {
		return nil, err
	}

	incidence, numLabels, numExamples, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	if int64(features.Rows()) != numExamples {
		return nil, xmcerr.NewShapeError(-1, "feature file has %d rows, label file declares %d examples", features.Rows(), numExamples)
	}

	return New(features, incidence, numLabels), nil
}
