// Package text implements the plain-text matrix and vector formats: a
// whitespace-delimited "rows cols" header line, sparse index:value rows
// for feature/label matrices, and space-separated dense rows for weight
// and prediction dumps. Grounded on the original engine's
// io/{common.h,common.cpp}.
package text

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// MatrixHeader is the parsed "rows cols" header line of a text matrix
// file.
type MatrixHeader struct {
	Rows int64
	Cols int64
}

// ParseHeader parses a header line containing exactly two positive
// integers, rejecting trailing garbage. Trailing whitespace (including a
// trailing newline already stripped by the caller) is tolerated.
func ParseHeader(line string) (MatrixHeader, error) {
	fields := strings.Fields(line)

	if len(fields) < 2 {
		return MatrixHeader{}, xmcerr.NewParseError("", 0, "header %q does not contain two integers", line)
	}

	if len(fields) > 2 {
		return MatrixHeader{}, xmcerr.NewParseError("", 0, "found additional text %q in header %q", strings.Join(fields[2:], " "), line)
	}

	rows, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || rows <= 0 {
		return MatrixHeader{}, xmcerr.NewParseError("", 0, "invalid number of rows in header %q", line)
	}

	cols, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || cols <= 0 {
		return MatrixHeader{}, xmcerr.NewParseError("", 0, "invalid number of cols in header %q", line)
	}

	return MatrixHeader{Rows: rows, Cols: cols}, nil
}

// ParseSparseVector scans index:value pairs from part, calling callback
// for each. Lines with trailing whitespace after the last pair are
// tolerated; any other leftover content is an error.
func ParseSparseVector(part string, callback func(index int64, value xmctypes.Real) error) error {
	for len(part) > 0 {
		part = strings.TrimLeft(part, " \t")
		if part == "" {
			break
		}

		colon := strings.IndexByte(part, ':')
		if colon < 0 {
			return xmcerr.NewParseError("", 0, "missing ':' while parsing feature in %q", part)
		}

		indexStr := part[:colon]

		index, err := strconv.ParseInt(strings.TrimSpace(indexStr), 10, 64)
		if err != nil {
			return xmcerr.NewParseError("", 0, "invalid feature index %q", indexStr)
		}

		rest := part[colon+1:]

		end := strings.IndexAny(rest, " \t")
		var valueStr string

		if end < 0 {
			valueStr = rest
			rest = ""
		} else {
			valueStr = rest[:end]
			rest = rest[end:]
		}

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return xmcerr.NewParseError("", 0, "invalid feature value %q at index %d", valueStr, index)
		}

		if err := callback(index, xmctypes.Real(value)); err != nil {
			return err
		}

		part = rest
	}

	return nil
}

// WriteDenseVector writes data as space-separated numbers with no
// trailing space, matching write_vector_as_text.
func WriteDenseVector(w io.Writer, data []xmctypes.Real) error {
	if len(data) == 0 {
		return nil
	}

	var b strings.Builder

	for i := 0; i < len(data)-1; i++ {
		fmt.Fprintf(&b, "%g ", data[i])
	}

	fmt.Fprintf(&b, "%g", data[len(data)-1])

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return xmcerr.NewIOError("writing dense text vector", err)
	}

	return nil
}

// ReadDenseVector reads len(out) whitespace-separated numbers into out.
func ReadDenseVector(r io.Reader, out []xmctypes.Real) error {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for i := range out {
		if !scanner.Scan() {
			return xmcerr.NewParseError("", 0, "expected %d values, got %d", len(out), i)
		}

		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return xmcerr.NewParseError("", 0, "invalid dense vector element %q", scanner.Text())
		}

		out[i] = xmctypes.Real(v)
	}

	return nil
}

// SparseRow is one parsed row of a sparse text matrix: column indices and
// their (always 1.0 for label matrices) values.
type SparseRow struct {
	Index []int32
	Value []xmctypes.Real
}

// SparseMatrixFile is the full contents of a parsed sparse text matrix
// file: the declared shape and one SparseRow per example.
type SparseMatrixFile struct {
	Header MatrixHeader
	Rows   []SparseRow
}

// ReadSparseMatrix reads a sparse text matrix: a header line, then one
// line per row in index:value format. Blank lines and lines starting
// with '#' are skipped without consuming a row slot.
func ReadSparseMatrix(r io.Reader) (*SparseMatrixFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !scanner.Scan() {
		return nil, xmcerr.NewParseError("", 0, "empty sparse matrix file")
	}

	header, err := ParseHeader(scanner.Text())
	if err != nil {
		return nil, err
	}

	result := &SparseMatrixFile{Header: header, Rows: make([]SparseRow, 0, header.Rows)}

	example := int64(0)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		if example >= header.Rows {
			return nil, xmcerr.NewParseError("", 0, "encountered row %d but header declared only %d rows", example, header.Rows)
		}

		var row SparseRow

		parseErr := ParseSparseVector(line, func(index int64, value xmctypes.Real) error {
			if index < 0 || index >= header.Cols {
				return xmcerr.NewParseError("", 0, "index %d out of range for %d columns", index, header.Cols)
			}

			row.Index = append(row.Index, int32(index))
			row.Value = append(row.Value, value)

			return nil
		})
		if parseErr != nil {
			return nil, parseErr
		}

		result.Rows = append(result.Rows, row)
		example++
	}

	if err := scanner.Err(); err != nil {
		return nil, xmcerr.NewIOError("scanning sparse matrix file", err)
	}

	return result, nil
}

// ReadBinarySparseLabels reads a sparse 0/1 label matrix in the
// index:1.0 text format, verifying every value equals 1. Returns the
// per-label sorted positive-example lists ready for dataset.Incidence.
func ReadBinarySparseLabels(r io.Reader) (xmctypes.LabelID, int64, map[xmctypes.LabelID][]int32, error) {
	file, err := ReadSparseMatrix(r)
	if err != nil {
		return 0, 0, nil, err
	}

	incidence := make(map[xmctypes.LabelID][]int32, file.Header.Cols)

	for example, row := range file.Rows {
		for i, idx := range row.Index {
			if row.Value[i] != 1 {
				return 0, 0, nil, xmcerr.NewParseError("", 0, "encountered value %v at index %d, expected 1", row.Value[i], idx)
			}

			label := xmctypes.LabelID(idx)
			incidence[label] = append(incidence[label], int32(example))
		}
	}

	return xmctypes.LabelID(file.Header.Cols), file.Header.Rows, incidence, nil
}

// WriteSparseMatrix writes rows (already column-sorted) in header +
// index:value-per-line format.
func WriteSparseMatrix(w io.Writer, cols int64, rows []SparseRow) error {
	if _, err := fmt.Fprintf(w, "%d %d\n", len(rows), cols); err != nil {
		return xmcerr.NewIOError("writing sparse matrix header", err)
	}

	for _, row := range rows {
		var b strings.Builder

		for i, idx := range row.Index {
			if i > 0 {
				b.WriteByte(' ')
			}

			fmt.Fprintf(&b, "%d:%g", idx, row.Value[i])
		}

		b.WriteByte('\n')

		if _, err := io.WriteString(w, b.String()); err != nil {
			return xmcerr.NewIOError("writing sparse matrix row", err)
		}
	}

	return nil
}

// ReadDenseMatrixFile opens path, parses the header and reads rows*cols
// whitespace-separated values in row-major order.
func ReadDenseMatrixFile(path string) ([]xmctypes.Real, MatrixHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, MatrixHeader{}, xmcerr.NewIOError("opening dense text matrix file", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, MatrixHeader{}, xmcerr.NewParseError("", 0, "empty dense matrix file %s", path)
	}

	header, err := ParseHeader(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return nil, MatrixHeader{}, err
	}

	data := make([]xmctypes.Real, header.Rows*header.Cols)

	if err := ReadDenseVector(reader, data); err != nil {
		return nil, MatrixHeader{}, err
	}

	return data, header, nil
}

// WriteDenseMatrixFile creates (or truncates) path and writes a header
// followed by one space-separated row per line.
func WriteDenseMatrixFile(path string, data []xmctypes.Real, rows, cols int64) error {
	f, err := os.Create(path)
	if err != nil {
		return xmcerr.NewIOError("creating dense text matrix file", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d %d\n", rows, cols); err != nil {
		return xmcerr.NewIOError("writing dense matrix header", err)
	}

	for i := int64(0); i < rows; i++ {
		if err := WriteDenseVector(f, data[i*cols:(i+1)*cols]); err != nil {
			return err
		}

		if _, err := io.WriteString(f, "\n"); err != nil {
			return xmcerr.NewIOError("writing dense matrix row terminator", err)
		}
	}

	return nil
}
