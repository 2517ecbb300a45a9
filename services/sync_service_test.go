package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/models"
	"github.com/edustems/data-sync/utils"
)

// fixedNow pins every test run to mid academic year 2025-2026.
var fixedNow = time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	students    []models.StudentRecord
	studentsErr error
	marksFn     func(school, academicYear, assessmentType, category string) ([]models.AssessmentRecord, error)
	combos      []string
}

func (f *fakeFetcher) FetchActiveStudents(ctx context.Context) ([]models.StudentRecord, error) {
	return f.students, f.studentsErr
}

func (f *fakeFetcher) FetchAssessmentMarks(ctx context.Context, school, academicYear, assessmentType, category string) ([]models.AssessmentRecord, error) {
	f.combos = append(f.combos, fmt.Sprintf("%s|%s|%s|%s", school, academicYear, assessmentType, category))
	if f.marksFn == nil {
		return nil, nil
	}
	return f.marksFn(school, academicYear, assessmentType, category)
}

type fakeStore struct {
	students     []models.NormalizedStudent
	studentErrOn string
	batches      [][]models.NormalizedAssessment
}

func (s *fakeStore) UpsertStudent(ctx context.Context, rec *models.NormalizedStudent) (int64, error) {
	if s.studentErrOn != "" && rec.StudentID == s.studentErrOn {
		return 0, errors.New("duplicate entry")
	}
	s.students = append(s.students, *rec)
	return 1, nil
}

func (s *fakeStore) UpsertAssessments(ctx context.Context, recs []models.NormalizedAssessment) (int64, error) {
	s.batches = append(s.batches, recs)
	return int64(len(recs)), nil
}

func newTestService(cfg *config.Config, fetcher *fakeFetcher, store *fakeStore) *SyncService {
	svc := NewSyncService(cfg, fetcher, store, testLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func baseTestConfig() *config.Config {
	return &config.Config{
		CutoverMonth: time.June,
		RequestPause: 0,
	}
}

func flexID(s string) *models.FlexString {
	v := models.FlexString(s)
	return &v
}

func TestSyncRoster_NormalizesAndDerivesKey(t *testing.T) {
	fetcher := &fakeFetcher{students: []models.StudentRecord{{
		StudentID:    flexID("881"),
		StudentName:  utils.StrPtr("  meena   patil "),
		SchoolName:   utils.StrPtr("ABMPS"),
		GradeName:    utils.StrPtr("Grade III"),
		Gender:       utils.StrPtr("Girl"),
		DivisionName: utils.StrPtr("Class 3 - B"),
		Status:       utils.StrPtr("Active"),
		CreatedDate:  utils.StrPtr("01/06/2025"),
	}}}
	store := &fakeStore{}

	total, err := newTestService(baseTestConfig(), fetcher, store).SyncRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, store.students, 1)

	got := store.students[0]
	assert.Equal(t, "881", got.StudentID)
	assert.Equal(t, "ABMPS", got.SchoolName)
	require.NotNil(t, got.StudentName)
	assert.Equal(t, "Meena Patil", *got.StudentName)
	require.NotNil(t, got.GradeName)
	assert.Equal(t, "GRADE 3", *got.GradeName)
	require.NotNil(t, got.Gender)
	assert.Equal(t, "F", *got.Gender)
	require.NotNil(t, got.DivisionName)
	assert.Equal(t, "B", *got.DivisionName)
	require.NotNil(t, got.CreatedDate)
	assert.Equal(t, "2025-06-01", *got.CreatedDate)
	assert.Equal(t, "2025-2026", got.AcademicYear)
	assert.Equal(t, "ABMPS_881_2025-2026_GRADE 3", got.UniqueKey)
}

func TestSyncRoster_AnomaliesDegradeToNull(t *testing.T) {
	fetcher := &fakeFetcher{students: []models.StudentRecord{{
		StudentID:   flexID("102"),
		Gender:      utils.StrPtr("unknown"),
		CreatedDate: utils.StrPtr("not a date"),
	}}}
	store := &fakeStore{}

	_, err := newTestService(baseTestConfig(), fetcher, store).SyncRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, store.students, 1)

	got := store.students[0]
	assert.Nil(t, got.Gender)
	assert.Nil(t, got.CreatedDate)
	assert.Nil(t, got.GradeName)
	// The record is written regardless, with empty key segments.
	assert.Equal(t, "_102_2025-2026_", got.UniqueKey)
}

func TestSyncRoster_FetchErrorSurfaces(t *testing.T) {
	fetcher := &fakeFetcher{studentsErr: errors.New("HTTP 500")}
	_, err := newTestService(baseTestConfig(), fetcher, &fakeStore{}).SyncRoster(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no roster data fetched")
}

func TestSyncRoster_UpsertErrorDoesNotStopTheRun(t *testing.T) {
	fetcher := &fakeFetcher{students: []models.StudentRecord{
		{StudentID: flexID("1")},
		{StudentID: flexID("2")},
		{StudentID: flexID("3")},
	}}
	store := &fakeStore{studentErrOn: "2"}

	total, err := newTestService(baseTestConfig(), fetcher, store).SyncRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, store.students, 2)
	assert.Equal(t, "1", store.students[0].StudentID)
	assert.Equal(t, "3", store.students[1].StudentID)
}

func TestSyncAssessments_IteratesAllCombinations(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &fakeStore{}
	svc := newTestService(baseTestConfig(), fetcher, store)

	_, err := svc.SyncAssessments(context.Background(), AssessmentSyncOptions{
		Category:  CategoryStandardized,
		Types:     []string{"BOY", "EOY"},
		Schools:   []string{"ABMPS", "DNMPS"},
		StartYear: 2023,
	})
	require.NoError(t, err)

	// 3 academic years (2023 through 2025) x 2 schools x 2 types.
	assert.Len(t, fetcher.combos, 12)
	assert.Contains(t, fetcher.combos, "ABMPS|2023-2024|BOY|Standardized")
	assert.Contains(t, fetcher.combos, "DNMPS|2025-2026|EOY|Standardized")
	assert.Empty(t, store.batches)
}

func TestSyncAssessments_ZeroStartYearMeansCurrentYearOnly(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := newTestService(baseTestConfig(), fetcher, &fakeStore{})

	_, err := svc.SyncAssessments(context.Background(), AssessmentSyncOptions{
		Category: CategoryNonStandardized,
		Types:    []string{"UNIT 1"},
		Schools:  []string{"ABMPS"},
	})
	require.NoError(t, err)
	require.Len(t, fetcher.combos, 1)
	assert.Equal(t, "ABMPS|2025-2026|UNIT 1|Non-Standardized", fetcher.combos[0])
}

func TestSyncAssessments_FetchErrorSkipsCombination(t *testing.T) {
	fetcher := &fakeFetcher{marksFn: func(school, _, _, _ string) ([]models.AssessmentRecord, error) {
		if school == "DNMPS" {
			return nil, errors.New("HTTP 503")
		}
		return []models.AssessmentRecord{{StudentID: flexID("7")}}, nil
	}}
	store := &fakeStore{}
	svc := newTestService(baseTestConfig(), fetcher, store)

	total, err := svc.SyncAssessments(context.Background(), AssessmentSyncOptions{
		Category: CategoryStandardized,
		Types:    []string{"BOY"},
		Schools:  []string{"ABMPS", "DNMPS", "MEMS"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, store.batches, 2)
}

func TestSyncAssessments_WindowFilter(t *testing.T) {
	fetcher := &fakeFetcher{marksFn: func(_, _, _, _ string) ([]models.AssessmentRecord, error) {
		return []models.AssessmentRecord{
			{StudentID: flexID("1"), AssessmentDate: utils.StrPtr("01/07/2025")},
			{StudentID: flexID("2"), AssessmentDate: utils.StrPtr("01/01/2025")},
			{StudentID: flexID("3"), AssessmentDate: utils.StrPtr("garbage")},
			{StudentID: flexID("4")},
		}, nil
	}}
	store := &fakeStore{}
	svc := newTestService(baseTestConfig(), fetcher, store)

	total, err := svc.SyncAssessments(context.Background(), AssessmentSyncOptions{
		Category:   CategoryStandardized,
		Types:      []string{"BOY"},
		Schools:    []string{"ABMPS"},
		WindowDays: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 1)
	assert.Equal(t, "1", store.batches[0][0].StudentID)
}

func TestBackfillAssessments_CoversBothCategories(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BackfillSchools = []string{"ABMPS"}
	cfg.AssessmentTypes = []string{"BOY", "UNIT 1"}
	cfg.BackfillStartYear = 2024

	fetcher := &fakeFetcher{}
	svc := newTestService(cfg, fetcher, &fakeStore{})

	_, err := svc.BackfillAssessments(context.Background())
	require.NoError(t, err)

	// 2 years x 1 school x 2 types x 2 categories.
	assert.Len(t, fetcher.combos, 8)
	assert.Contains(t, fetcher.combos, "ABMPS|2024-2025|UNIT 1|Standardized")
	assert.Contains(t, fetcher.combos, "ABMPS|2025-2026|BOY|Non-Standardized")
}

func TestUpdateAssessments_SplitsTypeListsByCategory(t *testing.T) {
	cfg := baseTestConfig()
	cfg.UpdateSchools = []string{"ABMPS"}
	cfg.StandardizedTypes = []string{"BOY"}
	cfg.NonStandardizedTypes = []string{"UNIT 1", "Weekly 1"}
	cfg.UpdateWindowDays = 60

	fetcher := &fakeFetcher{}
	svc := newTestService(cfg, fetcher, &fakeStore{})

	_, err := svc.UpdateAssessments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ABMPS|2025-2026|BOY|Standardized",
		"ABMPS|2025-2026|UNIT 1|Non-Standardized",
		"ABMPS|2025-2026|Weekly 1|Non-Standardized",
	}, fetcher.combos)
}

func TestSyncAssessments_CancelledContextStopsEarly(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := newTestService(baseTestConfig(), fetcher, &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SyncAssessments(ctx, AssessmentSyncOptions{
		Category: CategoryStandardized,
		Types:    []string{"BOY"},
		Schools:  []string{"ABMPS"},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.combos)
}

func TestNormalizeAssessment_DerivesGeneratedID(t *testing.T) {
	svc := newTestService(baseTestConfig(), &fakeFetcher{}, &fakeStore{})

	rec := &models.AssessmentRecord{
		StudentID:      flexID("881"),
		StudentName:    utils.StrPtr("  meena patil "),
		Gender:         utils.StrPtr("Girl"),
		SchoolName:     utils.StrPtr("ABMPS"),
		SubjectName:    utils.StrPtr("maths"),
		GradeName:      utils.StrPtr("Grade III"),
		DivisionName:   utils.StrPtr("Class 3 - B"),
		CompetencyName: utils.StrPtr("Number Sense"),
		AssessmentDate: utils.StrPtr("25/12/2023"),
		QuestionName:   utils.StrPtr("Counting objects correctly"),
		ObtainedMarks:  &models.FlexFloat{Value: 8.5, Valid: true},
		MaxMarks:       &models.FlexFloat{Value: 10, Valid: true},
	}

	got := svc.normalizeAssessment(rec, "2023-2024", "Weekly 1", CategoryNonStandardized)

	assert.Equal(t, "881_WEE_231225_MAT_NS_COUNTING_OBJECTS", got.GeneratedID)
	assert.Equal(t, "2023-2024", got.AcademicYear)
	assert.Equal(t, "Weekly 1", got.AssessmentType)
	assert.Equal(t, CategoryNonStandardized, got.AssessmentCategory)
	require.NotNil(t, got.AssessmentDate)
	assert.Equal(t, "2023-12-25", *got.AssessmentDate)
	assert.Equal(t, utils.FloatPtr(8.5), got.ObtainedMarks)
	assert.Equal(t, utils.FloatPtr(10), got.MaxMarks)
	assert.Nil(t, got.Percentage)

	// Reprocessing the normalized output yields the same key.
	again := svc.normalizeAssessment(rec, "2023-2024", "Weekly 1", CategoryNonStandardized)
	assert.Equal(t, got.GeneratedID, again.GeneratedID)
}

func TestNormalizeAssessment_UnparseableDateKeepsRawKeyToken(t *testing.T) {
	svc := newTestService(baseTestConfig(), &fakeFetcher{}, &fakeStore{})

	rec := &models.AssessmentRecord{
		StudentID:      flexID("881"),
		SubjectName:    utils.StrPtr("maths"),
		CompetencyName: utils.StrPtr("Number Sense"),
		AssessmentDate: utils.StrPtr("Term2-2023"),
		QuestionName:   utils.StrPtr("Counting objects correctly"),
	}

	got := svc.normalizeAssessment(rec, "2023-2024", "BOY", CategoryStandardized)

	// The stored column degrades to NULL, but the key keeps the first six
	// raw characters so such records still reconcile on rewrite.
	assert.Nil(t, got.AssessmentDate)
	assert.Equal(t, "881_BOY_TERM2-_MAT_NS_COUNTING_OBJECTS", got.GeneratedID)

	rec.AssessmentDate = nil
	noDate := svc.normalizeAssessment(rec, "2023-2024", "BOY", CategoryStandardized)
	assert.Equal(t, "881_BOY_MAT_NS_COUNTING_OBJECTS", noDate.GeneratedID)
	assert.NotEqual(t, got.GeneratedID, noDate.GeneratedID)
}

func TestNormalizeAssessment_CompetencyLevelFallsBackToDescription(t *testing.T) {
	svc := newTestService(baseTestConfig(), &fakeFetcher{}, &fakeStore{})

	rec := &models.AssessmentRecord{
		StudentID:   flexID("7"),
		Description: utils.StrPtr("reading fluently"),
	}

	nonStd := svc.normalizeAssessment(rec, "2024-2025", "UNIT 1", CategoryNonStandardized)
	require.NotNil(t, nonStd.CompetencyLevelName)
	assert.Equal(t, "Reading Fluently", *nonStd.CompetencyLevelName)

	std := svc.normalizeAssessment(rec, "2024-2025", "BOY", CategoryStandardized)
	assert.Nil(t, std.CompetencyLevelName)
}
