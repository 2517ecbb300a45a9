package models

// AssessmentRecord is one row of the getAssessmentMarks.htm /
// getSchoolExamMarks.htm payloads. These endpoints serve camelCase keys; the
// tags do the renaming the legacy pipeline performed at runtime.
type AssessmentRecord struct {
	StudentID           *FlexString `json:"studentId"`
	StudentName         *string     `json:"studentName"`
	Gender              *string     `json:"gender"`
	SchoolName          *string     `json:"schoolName"`
	SubjectName         *string     `json:"subjectName"`
	GradeName           *string     `json:"gradeName"`
	CourseName          *string     `json:"courseName"`
	DivisionName        *string     `json:"divisionName"`
	CompetencyName      *string     `json:"competencyName"`
	CompetencyLevelName *string     `json:"competencyLevelName"`
	AssessmentDate      *string     `json:"assessmentDate"`
	ObtainedMarks       *FlexFloat  `json:"obtainedMarks"`
	MaxMarks            *FlexFloat  `json:"maxMarks"`
	Percentage          *FlexFloat  `json:"percentage"`
	Description         *string     `json:"description"`
	QuestionName        *string     `json:"questionName"`
	PresentAbsent       *string     `json:"presentAbsent"`
	AssessmentID        *FlexString `json:"assessmentId"`
}

// NormalizedAssessment is the canonical mark row, keyed by GeneratedID.
// AcademicYear, AssessmentType and AssessmentCategory come from the fetch
// combination, not from the payload.
type NormalizedAssessment struct {
	StudentID           string
	StudentName         *string
	Gender              *string
	SchoolName          *string
	SubjectName         *string
	AssessmentType      string
	AcademicYear        string
	GradeName           *string
	CourseName          *string
	DivisionName        *string
	CompetencyName      *string
	CompetencyLevelName *string
	AssessmentCategory  string
	AssessmentDate      *string
	ObtainedMarks       *float64
	MaxMarks            *float64
	Percentage          *float64
	Description         *string
	QuestionName        *string
	PresentAbsent       *string
	AssessmentID        *string
	GeneratedID         string
}
