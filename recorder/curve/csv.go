// Package curve persists recorded dyno curves and loads them back for
// export.
//
// Every recorded engine is a pair of files in the engines directory:
// <name>.csv holds one row per recorded point, <name>.engine holds the grid
// and the engine's static properties. Both are written only after a sweep
// completes.
package curve

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// csvHeader is the first line of every <name>.csv.
var csvHeader = []string{"rpm", "throttle", "power_hp", "torque_nm"}

// Row is one recorded point of a persisted curve.
type Row struct {
	RPM      int
	Throttle int
	Power    float64
	Torque   float64
}

// Round3 rounds to three decimals, ties to even, the precision curves are
// persisted at.
func Round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(Round3(v), 'f', -1, 64)
}

// WriteCSV writes the header and rows in the order given.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.RPM),
			strconv.Itoa(r.Throttle),
			formatFloat(r.Power),
			formatFloat(r.Torque),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a curve file. The header row is required; the error of a
// malformed row names the line it was found on.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header: %w", ErrTruncated)
	}
	if err != nil {
		return nil, err
	}
	if strings.Join(header, ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(record []string) (Row, error) {
	var row Row
	var err error
	if row.RPM, err = strconv.Atoi(record[0]); err != nil {
		return row, fmt.Errorf("rpm: %w", err)
	}
	if row.Throttle, err = strconv.Atoi(record[1]); err != nil {
		return row, fmt.Errorf("throttle: %w", err)
	}
	if row.Power, err = strconv.ParseFloat(record[2], 64); err != nil {
		return row, fmt.Errorf("power: %w", err)
	}
	if row.Torque, err = strconv.ParseFloat(record[3], 64); err != nil {
		return row, fmt.Errorf("torque: %w", err)
	}
	return row, nil
}
