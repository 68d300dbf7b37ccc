// Package well translates between sequential barcode slots and the
// row/column labels of 96 and 384 well plates.
//
// A slot index i is 0-based. Under RowMajor order the index walks along the
// columns of a row before moving to the next row (A1, A2, ..., A12, B1, ...);
// under ColumnMajor order it walks down the rows of a column first (A1, B1,
// ..., H1, A2, ...).
package well

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Order is the traversal order of sequential slots over a plate.
type Order int

const (
	// RowMajor fills a row before moving to the next one.
	RowMajor Order = iota
	// ColumnMajor fills a column before moving to the next one.
	ColumnMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

const (
	plateSize = 96
	plateRows = 8
	plateCols = 12

	// MaxSlots is the largest supported index set, four 96 well plates.
	MaxSlots = 384
)

// Dims returns the plate geometry for an index set of n entries. Only 96
// and 384 entry sets have a plate layout.
func Dims(n int) (rows, cols int, err error) {
	switch n {
	case 96:
		return 8, 12, nil
	case 384:
		return 16, 24, nil
	}
	return 0, 0, errors.Errorf("%d indices in index set, but only 96 or 384 are supported when converting to well IDs", n)
}

func checkDims(rows, cols int) error {
	if (rows == 8 && cols == 12) || (rows == 16 && cols == 24) {
		return nil
	}
	return errors.Errorf("unsupported plate geometry %dx%d: rows*cols must describe a 96 or 384 well plate", rows, cols)
}

// padWidth is the number of digits in the slot count of the plate, so 96
// well labels pad to A01 and 384 well labels to A001.
func padWidth(n int) int {
	return len(strconv.Itoa(n))
}

func label(row, col int, zeroPad bool, width int) string {
	if zeroPad {
		return fmt.Sprintf("%c%0*d", 'A'+row, width, col+1)
	}
	return fmt.Sprintf("%c%d", 'A'+row, col+1)
}

func rowCol(i int, order Order, rows, cols int) (row, col int) {
	if order == RowMajor {
		return i / cols, i % cols
	}
	return i % rows, i / rows
}

// ID converts the 0-based slot i into a well label such as "A1" or "H12".
// rows*cols must be 96 or 384.
func ID(i int, order Order, rows, cols int, zeroPad bool) (string, error) {
	if err := checkDims(rows, cols); err != nil {
		return "", err
	}
	n := rows * cols
	if i < 0 || i >= n {
		return "", errors.Errorf("well index %d out of range [0,%d)", i, n)
	}
	row, col := rowCol(i, order, rows, cols)
	return label(row, col, zeroPad, padWidth(n)), nil
}

// ParseID is the inverse of ID. Both padded and unpadded column numbers are
// accepted.
func ParseID(id string, order Order, rows, cols int) (int, error) {
	if err := checkDims(rows, cols); err != nil {
		return 0, err
	}
	if len(id) < 2 {
		return 0, errors.Errorf("malformed well id %q", id)
	}
	row := int(id[0]) - 'A'
	col, err := strconv.Atoi(id[1:])
	if err != nil || row < 0 || row >= rows || col < 1 || col > cols {
		return 0, errors.Errorf("malformed well id %q for a %dx%d plate", id, rows, cols)
	}
	col--
	if order == RowMajor {
		return row*cols + col, nil
	}
	return col*rows + row, nil
}

// PlateID converts a slot in [0,384) into a label on one of four 96 well
// plates, e.g. "P2-C07".
func PlateID(i int, order Order, zeroPad bool) (string, error) {
	if i < 0 || i >= MaxSlots {
		return "", errors.Errorf("well index %d out of range [0,%d)", i, MaxSlots)
	}
	plate := i / plateSize
	row, col := rowCol(i%plateSize, order, plateRows, plateCols)
	return fmt.Sprintf("P%d-%s", plate+1, label(row, col, zeroPad, 2)), nil
}

// ParsePlateID is the inverse of PlateID.
func ParsePlateID(id string, order Order) (int, error) {
	var plate int
	var well string
	if _, err := fmt.Sscanf(id, "P%d-%s", &plate, &well); err != nil {
		return 0, errors.Wrapf(err, "malformed plate well id %q", id)
	}
	if plate < 1 || plate > MaxSlots/plateSize {
		return 0, errors.Errorf("plate %d out of range in %q", plate, id)
	}
	i, err := ParseID(well, order, plateRows, plateCols)
	if err != nil {
		return 0, err
	}
	return (plate-1)*plateSize + i, nil
}

// Labels returns the zero padded label of every slot of an n entry index
// set in the given order.
func Labels(n int, order Order) ([]string, error) {
	rows, cols, err := Dims(n)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		row, col := rowCol(i, order, rows, cols)
		out[i] = label(row, col, true, padWidth(n))
	}
	return out, nil
}

// PairLabel names the well produced by combining row-ordered i7 index i7
// with column-ordered i5 index i5 on an n well plate. The well coordinate
// takes its row from the i5 position within its column and its column from
// the i7 position within its row; the originating i7 and i5 plate wells
// are appended, e.g. "B01-rowA01-colB01".
func PairLabel(i7, i5, n int) (string, error) {
	rows, cols, err := Dims(n)
	if err != nil {
		return "", err
	}
	if i7 < 0 || i7 >= n || i5 < 0 || i5 >= n {
		return "", errors.Errorf("index pair (%d,%d) out of range [0,%d)", i7, i5, n)
	}
	w := padWidth(n)
	r, _ := rowCol(i5, ColumnMajor, rows, cols)
	_, c := rowCol(i7, RowMajor, rows, cols)
	r7, c7 := rowCol(i7, RowMajor, rows, cols)
	r5, c5 := rowCol(i5, ColumnMajor, rows, cols)
	return fmt.Sprintf("%s-row%s-col%s", label(r, c, true, w), label(r7, c7, true, w), label(r5, c5, true, w)), nil
}
