package fsc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/campusops/gradeport/internal/grades"
)

// Columns is the fixed, versioned header of the registrar CSV contract.
// Order and names must not vary.
var Columns = []string{"Student Number", "Name", "Percent Grade"}

// Row is one registrar CSV record. Grade is a whole number; cells are
// emitted without a decimal point.
type Row struct {
	StudentNumber string
	Name          string
	Grade         int
}

// FormatError reports an output-schema violation detected before writing.
// It is fatal and aborts before any partial file exists.
type FormatError struct {
	Row    int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("fsc: row %d violates the output contract: %s", e.Row, e.Reason)
}

// ToSubmissionTable projects final grades into registrar rows. Grades with
// no resolvable value are omitted entirely, never emitted with a
// placeholder. Calling this twice on the same input yields identical rows.
func ToSubmissionTable(finalGrades []grades.FinalGrade) []Row {
	rows := make([]Row, 0, len(finalGrades))
	for _, g := range finalGrades {
		if !g.Resolvable() {
			continue
		}
		number := g.SISID
		if number == "" {
			number = g.StudentID
		}
		rows = append(rows, Row{
			StudentNumber: number,
			Name:          g.Name(),
			Grade:         *g.Rounded,
		})
	}
	return rows
}

// Validate checks every row against the contract: a student identifier, a
// name, and a grade within [0, maxGrade].
func Validate(rows []Row, maxGrade int) error {
	for i, row := range rows {
		if row.StudentNumber == "" {
			return &FormatError{Row: i, Reason: "empty student identifier"}
		}
		if row.Name == "" {
			return &FormatError{Row: i, Reason: "empty student name"}
		}
		if row.Grade < 0 || row.Grade > maxGrade {
			return &FormatError{Row: i, Reason: fmt.Sprintf("grade %d outside [0, %d]", row.Grade, maxGrade)}
		}
	}
	return nil
}

// WriteCSV emits the fixed-header, comma-delimited, newline-terminated
// contract with no trailing blank row. The output is byte-identical across
// calls with the same rows.
func WriteCSV(w io.Writer, rows []Row, maxGrade int) error {
	if err := Validate(rows, maxGrade); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("fsc: write header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.StudentNumber, row.Name, strconv.Itoa(row.Grade)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("fsc: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("fsc: flush: %w", err)
	}
	return nil
}

// SaveCSV validates first and only then creates the file, so a contract
// violation never leaves a partial file behind.
func SaveCSV(path string, rows []Row, maxGrade int) error {
	if err := Validate(rows, maxGrade); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fsc: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteCSV(f, rows, maxGrade); err != nil {
		return err
	}
	return f.Close()
}
