package models

// StudentRecord is one row of the getActiveStudents.htm payload. That
// endpoint serves snake_case keys; nullable fields are pointers so absent and
// empty values stay distinguishable.
type StudentRecord struct {
	CreatedDate  *string     `json:"created_date"`
	SchoolName   *string     `json:"school_name"`
	Status       *string     `json:"status"`
	GradeName    *string     `json:"grade_name"`
	StudentName  *string     `json:"student_name"`
	StudentID    *FlexString `json:"student_id"`
	Gender       *string     `json:"gender"`
	DivisionName *string     `json:"division_name"`
}

// NormalizedStudent is the canonical roster row. It is built once per fetch
// cycle and never mutated after handoff to the store.
type NormalizedStudent struct {
	CreatedDate  *string
	SchoolName   string
	Status       *string
	GradeName    *string
	StudentName  *string
	StudentID    string
	Gender       *string
	DivisionName *string
	AcademicYear string
	UniqueKey    string
}
