package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_AbsorbsNumbersAndStrings(t *testing.T) {
	var rec struct {
		ID *FlexString `json:"studentId"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"studentId": 12345}`), &rec))
	require.NotNil(t, rec.ID)
	assert.Equal(t, FlexString("12345"), *rec.ID)

	rec.ID = nil
	require.NoError(t, json.Unmarshal([]byte(`{"studentId": "STU-9"}`), &rec))
	require.NotNil(t, rec.ID)
	assert.Equal(t, FlexString("STU-9"), *rec.ID)

	rec.ID = nil
	require.NoError(t, json.Unmarshal([]byte(`{"studentId": null}`), &rec))
	assert.Nil(t, rec.ID)
}

func TestFlexFloat_AbsorbsInconsistentNumerics(t *testing.T) {
	var rec struct {
		Marks *FlexFloat `json:"obtainedMarks"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"obtainedMarks": 42.5}`), &rec))
	require.NotNil(t, rec.Marks)
	assert.True(t, rec.Marks.Valid)
	assert.Equal(t, 42.5, rec.Marks.Value)

	rec.Marks = nil
	require.NoError(t, json.Unmarshal([]byte(`{"obtainedMarks": "17"}`), &rec))
	require.NotNil(t, rec.Marks)
	assert.True(t, rec.Marks.Valid)
	assert.Equal(t, 17.0, rec.Marks.Value)

	// Unparseable and empty values degrade to invalid, never an error.
	rec.Marks = nil
	require.NoError(t, json.Unmarshal([]byte(`{"obtainedMarks": "AB"}`), &rec))
	require.NotNil(t, rec.Marks)
	assert.False(t, rec.Marks.Valid)
	assert.Nil(t, rec.Marks.Ptr())

	rec.Marks = nil
	require.NoError(t, json.Unmarshal([]byte(`{"obtainedMarks": ""}`), &rec))
	require.NotNil(t, rec.Marks)
	assert.False(t, rec.Marks.Valid)
}

func TestAssessmentRecord_DecodesCamelCasePayload(t *testing.T) {
	payload := `{
		"studentId": 881,
		"studentName": "  meena   patil ",
		"gender": "Girl",
		"schoolName": "ABMPS",
		"subjectName": "Maths",
		"gradeName": "Grade III",
		"divisionName": "Class 3 - B",
		"competencyName": "Number Sense",
		"assessmentDate": "25/12/2023",
		"obtainedMarks": "8.5",
		"maxMarks": 10,
		"questionName": "Counting objects correctly"
	}`

	var rec AssessmentRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	require.NotNil(t, rec.StudentID)
	assert.Equal(t, FlexString("881"), *rec.StudentID)
	require.NotNil(t, rec.ObtainedMarks)
	assert.Equal(t, 8.5, rec.ObtainedMarks.Value)
	require.NotNil(t, rec.MaxMarks)
	assert.Equal(t, 10.0, rec.MaxMarks.Value)
	assert.Nil(t, rec.CompetencyLevelName)
}

func TestStudentRecord_DecodesSnakeCasePayload(t *testing.T) {
	payload := `{
		"student_id": "ST-100",
		"student_name": "ram kumar",
		"school_name": "ABMPS",
		"grade_name": "Jr.KG",
		"gender": "MALE",
		"division_name": "A",
		"status": "Active",
		"created_date": "01/06/2025"
	}`

	var rec StudentRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	require.NotNil(t, rec.StudentID)
	assert.Equal(t, FlexString("ST-100"), *rec.StudentID)
	require.NotNil(t, rec.GradeName)
	assert.Equal(t, "Jr.KG", *rec.GradeName)
}
