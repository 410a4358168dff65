package cache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Embedding matrices are stored in the NumPy .npy format so snapshots stay
// readable by numpy.load. Rows are written as a C-ordered [N, D] float64 array;
// float32 files written by numpy.save load as well.

// WriteMatrix writes rows as a [len(rows), dim] .npy file.
func WriteMatrix(path string, rows [][]float32, dim int) error {
	var buf bytes.Buffer
	if err := encodeMatrix(&buf, rows, dim); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// ReadMatrix reads a 2-D float32 or float64 .npy file.
func ReadMatrix(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return decodeMatrix(bufio.NewReader(f))
}

func encodeMatrix(w io.Writer, rows [][]float32, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("matrix dimension must be positive, got %d", dim)
	}
	if len(rows) == 0 {
		// gonum has no zero-row matrices; an empty 1-D array stands in for [0, dim].
		return npyio.Write(w, []float64{})
	}

	data := make([]float64, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("row %d has dimension %d, expected %d", i, len(row), dim)
		}
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	if err := npyio.Write(w, mat.NewDense(len(rows), dim, data)); err != nil {
		return fmt.Errorf("failed to encode npy matrix: %w", err)
	}
	return nil
}

func decodeMatrix(r io.Reader) ([][]float32, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}
	descr := npy.Header.Descr
	if descr.Fortran {
		return nil, errors.New("fortran-ordered npy arrays are not supported")
	}

	var rows, cols int
	switch {
	case len(descr.Shape) == 2:
		rows, cols = descr.Shape[0], descr.Shape[1]
	case len(descr.Shape) == 1 && descr.Shape[0] == 0:
		return [][]float32{}, nil
	default:
		return nil, fmt.Errorf("expected a 2-D npy array, got shape %v", descr.Shape)
	}

	flat := make([]float32, 0, rows*cols)
	switch descr.Type {
	case "<f4":
		var data []float32
		if err := npy.Read(&data); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		flat = append(flat, data...)
	case "<f8":
		var data []float64
		if err := npy.Read(&data); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		for _, v := range data {
			flat = append(flat, float32(v))
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %s", descr.Type)
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("npy data holds %d values, shape (%d, %d) needs %d", len(flat), rows, cols, rows*cols)
	}

	out := make([][]float32, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}
