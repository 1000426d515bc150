// Package numpy implements bit-exact reading and writing of the .npy
// array format (versions 1, 2 and 3) for row-major real-valued matrices
// and vectors, the format used for dense model weight files and dense
// feature matrices. Grounded on the original engine's
// io/{numpy.h,numpy.cpp}.
package numpy

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
)

var magic = [6]byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// Header describes the shape and dtype of an at-most-2-dimensional npy
// array, mirroring the original engine's NpyHeaderData.
type Header struct {
	DataType     string
	ColumnMajor  bool
	Rows, Cols   int64 // Cols is 0 for a 1-D array
}

const npyPadding = 64

// IsNpy peeks at the first 6 bytes of a seekable reader to check for the
// npy magic string, restoring the read position afterward.
func IsNpy(r io.ReadSeeker) (bool, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}

	var buf [6]byte

	n, err := io.ReadFull(r, buf[:])

	if _, seekErr := r.Seek(pos, io.SeekStart); seekErr != nil {
		return false, seekErr
	}

	if err != nil || n != 6 {
		return false, nil
	}

	return buf == magic, nil
}

// WriteHeader writes the magic bytes, a version-3 header length field,
// description, space padding to 64-byte alignment, and a terminating
// newline, matching the original engine's io/numpy.cpp, which always
// writes version 3 with a 4-byte header length.
func WriteHeader(w io.Writer, description string) error {
	if _, err := w.Write(magic[:]); err != nil {
		return xmcerr.NewIOError("writing npy magic bytes", err)
	}

	if _, err := w.Write([]byte{3, 0}); err != nil {
		return xmcerr.NewIOError("writing npy version", err)
	}

	totalLenSoFar := len(magic) + 2 + 4 + len(description) + 1
	padding := npyPadding - totalLenSoFar%npyPadding
	if padding == npyPadding {
		padding = 0
	}

	headerLen := uint32(len(description) + padding + 1)

	if err := binary.Write(w, binary.LittleEndian, headerLen); err != nil {
		return xmcerr.NewIOError("writing npy header length", err)
	}

	if _, err := io.WriteString(w, description); err != nil {
		return xmcerr.NewIOError("writing npy description", err)
	}

	if _, err := io.WriteString(w, strings.Repeat(" ", padding)+"\n"); err != nil {
		return xmcerr.NewIOError("writing npy header padding", err)
	}

	return nil
}

// MakeDescription builds the python-dict-literal description string for a
// 1-D array of size elements.
func MakeDescription(dtype string, columnMajor bool, size int64) string {
	return fmt.Sprintf(`{"descr": "%s", "fortran_order": %s, "shape": (%d,)}`, dtype, pyBool(columnMajor), size)
}

// MakeDescription2D builds the description string for a rows x cols matrix.
func MakeDescription2D(dtype string, columnMajor bool, rows, cols int64) string {
	return fmt.Sprintf(`{"descr": "%s", "fortran_order": %s, "shape": (%d, %d)}`, dtype, pyBool(columnMajor), rows, cols)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}

	return "False"
}

// ParseHeader reads and parses the header of an npy stream, positioning r
// at the start of the data section.
func ParseHeader(r io.Reader) (Header, error) {
	br := r

	var buf [6]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return Header{}, xmcerr.NewParseError("", 0, "reading npy magic bytes: %v", err)
	}

	if buf != magic {
		return Header{}, xmcerr.NewParseError("", 0, "npy magic bytes mismatch")
	}

	var version [2]byte
	if _, err := io.ReadFull(br, version[:]); err != nil {
		return Header{}, xmcerr.NewParseError("", 0, "reading npy version: %v", err)
	}

	var headerLen uint32

	switch version[0] {
	case 1:
		var short uint16

		if err := binary.Read(br, binary.LittleEndian, &short); err != nil {
			return Header{}, xmcerr.NewParseError("", 0, "reading v1 header length: %v", err)
		}

		headerLen = uint32(short)
	case 2, 3:
		if err := binary.Read(br, binary.LittleEndian, &headerLen); err != nil {
			return Header{}, xmcerr.NewParseError("", 0, "reading v2/v3 header length: %v", err)
		}
	default:
		return Header{}, xmcerr.NewParseError("", 0, "unknown npy version %d.%d", version[0], version[1])
	}

	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(br, headerBuf); err != nil {
		return Header{}, xmcerr.NewParseError("", 0, "reading npy header body: %v", err)
	}

	header, err := parseDescription(string(headerBuf))
	if err != nil {
		return Header{}, err
	}

	return header, nil
}

// parseDescription parses the python-dict-literal header body. Trailing
// whitespace and the terminating newline are tolerated; a restricted,
// non-nested key set (descr, fortran_order, shape) is supported, which
// matches every file this engine itself writes.
func parseDescription(body string) (Header, error) {
	trimmed := strings.TrimRight(body, " \n\t\r")

	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")

	var header Header

	var hasDescr, hasOrder, hasShape bool

	for _, part := range splitTopLevel(trimmed) {
		key, value, err := splitKeyValue(part)
		if err != nil {
			return Header{}, err
		}

		switch key {
		case "descr":
			header.DataType = strings.Trim(value, `'"`)
			hasDescr = true
		case "fortran_order":
			switch value {
			case "False", "0":
				header.ColumnMajor = false
			case "True", "1":
				header.ColumnMajor = true
			default:
				return Header{}, xmcerr.NewParseError("", 0, "unexpected fortran_order value %q", value)
			}

			hasOrder = true
		case "shape":
			rows, cols, err := parseShape(value)
			if err != nil {
				return Header{}, err
			}

			header.Rows, header.Cols = rows, cols
			hasShape = true
		default:
			return Header{}, xmcerr.NewParseError("", 0, "unexpected npy header key %q", key)
		}
	}

	if !hasDescr || !hasOrder || !hasShape {
		return Header{}, xmcerr.NewParseError("", 0, "npy header missing one of descr/fortran_order/shape")
	}

	return header, nil
}

func splitTopLevel(s string) []string {
	var parts []string

	depth := 0
	start := 0

	for i, c := range s {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, s[start:])
	}

	return parts
}

func splitKeyValue(part string) (key, value string, err error) {
	idx := strings.Index(part, ":")
	if idx < 0 {
		return "", "", xmcerr.NewParseError("", 0, "missing ':' in header entry %q", part)
	}

	key = strings.Trim(strings.TrimSpace(part[:idx]), `'"`)
	value = strings.TrimSpace(part[idx+1:])

	return key, value, nil
}

func parseShape(value string) (rows, cols int64, err error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "(")
	value = strings.TrimSuffix(value, ")")

	fields := strings.Split(value, ",")

	var nums []int64

	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		n, convErr := strconv.ParseInt(f, 10, 64)
		if convErr != nil {
			return 0, 0, xmcerr.NewParseError("", 0, "invalid shape component %q: %v", f, convErr)
		}

		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		return nums[0], 0, nil
	case 2:
		return nums[0], nums[1], nil
	default:
		return 0, 0, xmcerr.NewParseError("", 0, "unsupported shape arity %d", len(nums))
	}
}

// LoadMatrix reads a row-major float64 matrix (or vector, as an Nx1
// matrix with Cols()==0 recorded in the returned Header) from r.
func LoadMatrix(r io.Reader) ([]float64, Header, error) {
	header, err := ParseHeader(r)
	if err != nil {
		return nil, Header{}, err
	}

	if header.ColumnMajor {
		return nil, Header{}, xmcerr.NewParseError("", 0, "only row-major npy files can be read")
	}

	rows := header.Rows
	cols := header.Cols
	if cols == 0 {
		cols = 1
	}

	n := rows * cols
	data := make([]float64, n)

	if err := readElements(r, header.DataType, data); err != nil {
		return nil, Header{}, err
	}

	return data, header, nil
}

func readElements(r io.Reader, dtype string, out []float64) error {
	switch dtype {
	case "<f8":
		raw := make([]byte, 8*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <f8 npy data", err)
		}

		for i := range out {
			bits := binary.LittleEndian.Uint64(raw[i*8:])
			out[i] = math.Float64frombits(bits)
		}
	case "<f4":
		raw := make([]byte, 4*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <f4 npy data", err)
		}

		for i := range out {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			out[i] = float64(math.Float32frombits(bits))
		}
	case "<i4":
		raw := make([]byte, 4*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <i4 npy data", err)
		}

		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case "<i8":
		raw := make([]byte, 8*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <i8 npy data", err)
		}

		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case "<u4":
		raw := make([]byte, 4*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <u4 npy data", err)
		}

		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "<u8":
		raw := make([]byte, 8*len(out))
		if _, err := io.ReadFull(r, raw); err != nil {
			return xmcerr.NewIOError("reading <u8 npy data", err)
		}

		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	default:
		return xmcerr.NewParseError("", 0, "unsupported npy dtype %q", dtype)
	}

	return nil
}

// SaveMatrix writes data (row-major, rows x cols) as a float64 npy array.
// cols == 0 writes a 1-D array of length rows.
func SaveMatrix(w io.Writer, data []float64, rows, cols int64) error {
	var description string
	if cols == 0 {
		description = MakeDescription("<f8", false, rows)
	} else {
		description = MakeDescription2D("<f8", false, rows, cols)
	}

	if err := WriteHeader(w, description); err != nil {
		return err
	}

	raw := make([]byte, 8*len(data))

	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	if _, err := w.Write(raw); err != nil {
		return xmcerr.NewIOError("writing npy data", err)
	}

	return nil
}

// LoadMatrixFile opens path and loads a matrix from it.
func LoadMatrixFile(path string) ([]float64, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, xmcerr.NewIOError("opening npy file", err)
	}
	defer f.Close()

	return LoadMatrix(f)
}

// SaveMatrixFile creates (or truncates) path and writes a matrix to it.
func SaveMatrixFile(path string, data []float64, rows, cols int64) error {
	f, err := os.Create(path)
	if err != nil {
		return xmcerr.NewIOError("creating npy file", err)
	}
	defer f.Close()

	return SaveMatrix(f, data, rows, cols)
}
