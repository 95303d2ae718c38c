package jobs

import "fmt"

// Field names a canonical job attribute that templates can extract.
type Field string

// Canonical field names.
const (
	FieldTitle            Field = "title"
	FieldDepartment       Field = "department"
	FieldLocation         Field = "location"
	FieldQualification    Field = "qualification"
	FieldDeadline         Field = "deadline"
	FieldApplyLink        Field = "apply_link"
	FieldPostedOn         Field = "posted_on"
	FieldSalary           Field = "salary"
	FieldAgeLimit         Field = "age_limit"
	FieldApplicationFee   Field = "application_fee"
	FieldDescription      Field = "description"
	FieldSelectionProcess Field = "selection_process"
	FieldPositions        Field = "positions"
)

// AllFields lists every canonical field in extraction order.
var AllFields = []Field{
	FieldTitle,
	FieldDepartment,
	FieldLocation,
	FieldQualification,
	FieldDeadline,
	FieldApplyLink,
	FieldPostedOn,
	FieldSalary,
	FieldAgeLimit,
	FieldApplicationFee,
	FieldDescription,
	FieldSelectionProcess,
	FieldPositions,
}

// ParseField converts a string into a Field, rejecting unknown names.
func ParseField(s string) (Field, error) {
	for _, f := range AllFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}
