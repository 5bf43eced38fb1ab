package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/converter"
	"github.com/KennyKvn001/PipelineSummatives/ml"
)

// LabelColumn is the required label header of uploaded CSVs
const LabelColumn = "dropout_status"

// RequiredColumns is every header an uploaded CSV must contain. Extra columns
// are ignored.
func RequiredColumns() []string {
	cols := append([]string(nil), ml.NumericFeatures...)
	cols = append(cols, ml.CategoricalFeatures...)
	return append(cols, LabelColumn)
}

// ValidationError reports a rejected upload; when the schema is wrong it
// carries the full set of missing column names.
type ValidationError struct {
	Message        string
	MissingColumns []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.MissingColumns, ", "))
	}
	return e.Message
}

// ParseCSV decodes an uploaded training CSV into records flagged unprocessed.
// Validation is all-or-nothing: a missing required column or an unparseable
// cell rejects the whole upload and zero rows are returned.
func ParseCSV(r io.Reader, uploadedAt time.Time) ([]config.TrainingRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ValidationError{Message: "failed to read CSV header"}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range RequiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ValidationError{Message: "missing required columns", MissingColumns: missing}
	}

	var records []config.TrainingRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("malformed CSV at line %d", line)}
		}

		rec, err := parseRow(row, index, uploadedAt)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("line %d: %v", line, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, index map[string]int, uploadedAt time.Time) (config.TrainingRecord, error) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	approved, err := parseNumeric(cell("Curricular_units_2nd_sem_approved"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Curricular_units_2nd_sem_approved: %w", err)
	}
	grade, err := parseNumeric(cell("Curricular_units_2nd_sem_grade"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Curricular_units_2nd_sem_grade: %w", err)
	}
	age, err := parseNumeric(cell("Age_at_enrollment"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Age_at_enrollment: %w", err)
	}

	scholarship, err := parseFlag(cell("Scholarship_holder"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Scholarship_holder: %w", err)
	}
	tuition, err := parseFlag(cell("Tuition_fees_up_to_date"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Tuition_fees_up_to_date: %w", err)
	}
	debtor, err := parseFlag(cell("Debtor"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Debtor: %w", err)
	}

	gender, err := converter.GenderValue(cell("Gender"))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("Gender: %w", err)
	}

	label, err := parseLabel(cell(LabelColumn))
	if err != nil {
		return config.TrainingRecord{}, fmt.Errorf("%s: %w", LabelColumn, err)
	}

	return config.TrainingRecord{
		CurricularApproved:  approved,
		CurricularGrade:     grade,
		AgeAtEnrollment:     age,
		ScholarshipHolder:   scholarship,
		TuitionFeesUpToDate: tuition,
		Debtor:              debtor,
		Gender:              gender,
		DropoutStatus:       label,
		Processed:           false,
		UploadedAt:          uploadedAt,
	}, nil
}

// parseNumeric returns nil for an empty or NA cell; the preprocessor fills
// those with the column mean at fit time.
func parseNumeric(v string) (*float64, error) {
	switch strings.ToLower(v) {
	case "", "na", "n/a", "nan", "null":
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	return &parsed, nil
}

// parseFlag coerces the encodings seen in uploads (0/1, true/false, yes/no)
// into the canonical "1"/"0" categorical form.
func parseFlag(v string) (string, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "t":
		return "1", nil
	case "0", "false", "no", "f":
		return "0", nil
	}
	return "", fmt.Errorf("invalid boolean value %q", v)
}

func parseLabel(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "dropout":
		return true, nil
	case "0", "false", "no", "graduate", "enrolled":
		return false, nil
	}
	return false, fmt.Errorf("invalid label value %q", v)
}
