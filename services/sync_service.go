package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/models"
	"github.com/edustems/data-sync/normalize"
	"github.com/edustems/data-sync/utils"
)

// RecordFetcher is the slice of EdustemsClient the orchestrator needs.
type RecordFetcher interface {
	FetchActiveStudents(ctx context.Context) ([]models.StudentRecord, error)
	FetchAssessmentMarks(ctx context.Context, school, academicYear, assessmentType, category string) ([]models.AssessmentRecord, error)
}

// RecordStore is the slice of Store the orchestrator needs.
type RecordStore interface {
	UpsertStudent(ctx context.Context, rec *models.NormalizedStudent) (int64, error)
	UpsertAssessments(ctx context.Context, recs []models.NormalizedAssessment) (int64, error)
}

// SyncService runs the fetch -> normalize -> derive -> upsert pipeline over
// the configured school/year/type combinations, one combination at a time.
// Failures below a combination are logged and contained; only a cancelled
// context or a failed roster fetch surfaces as an error.
type SyncService struct {
	cfg     *config.Config
	fetcher RecordFetcher
	store   RecordStore
	log     *logrus.Logger
	now     func() time.Time
}

func NewSyncService(cfg *config.Config, fetcher RecordFetcher, store RecordStore, log *logrus.Logger) *SyncService {
	return &SyncService{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		log:     log,
		now:     time.Now,
	}
}

// SyncRoster pulls the full active-student roster and upserts it row by row.
// Returns the aggregate affected-row count.
func (s *SyncService) SyncRoster(ctx context.Context) (int64, error) {
	s.log.Info("==== Starting active student sync ====")

	records, err := s.fetcher.FetchActiveStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("no roster data fetched: %w", err)
	}
	if len(records) == 0 {
		s.log.Error("API returned empty student data.")
		return 0, nil
	}
	s.log.Infof("Processing %d roster records.", len(records))

	academicYear := normalize.AcademicYear(s.now(), s.cfg.CutoverMonth)

	var total int64
	for i := range records {
		rec := s.normalizeStudent(&records[i], academicYear)
		affected, err := s.store.UpsertStudent(ctx, rec)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"student_id": rec.StudentID,
				"school":     rec.SchoolName,
			}).Errorf("MySQL insert/update error: %v", err)
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			continue
		}
		total += affected
	}

	s.log.Infof("==== Active student sync complete. Rows affected: %d ====", total)
	return total, nil
}

// normalizeStudent builds the canonical roster row. Field-level anomalies
// degrade to NULL; the record is written regardless, so the derived key may
// contain empty segments.
func (s *SyncService) normalizeStudent(rec *models.StudentRecord, academicYear string) *models.NormalizedStudent {
	grade := normalize.Grade(derefString(rec.GradeName))
	school := derefString(rec.SchoolName)
	studentID := ""
	if rec.StudentID != nil {
		studentID = string(*rec.StudentID)
	}

	out := &models.NormalizedStudent{
		SchoolName:   school,
		Status:       normalize.Clean(rec.Status),
		GradeName:    strPtrOrNil(grade),
		StudentName:  normalize.CleanTitle(rec.StudentName),
		StudentID:    studentID,
		Gender:       strPtrOrNil(normalize.Gender(derefString(rec.Gender))),
		DivisionName: strPtrOrNil(normalize.Division(derefString(rec.DivisionName))),
		AcademicYear: academicYear,
		UniqueKey:    normalize.StudentKey(school, studentID, academicYear, grade),
	}

	if rec.CreatedDate != nil {
		out.CreatedDate = normalize.ISODate(*rec.CreatedDate)
		if out.CreatedDate == nil {
			s.log.Warnf("Invalid date format: %s", *rec.CreatedDate)
		}
	}
	return out
}

// AssessmentSyncOptions parameterize one assessment run. StartYear zero means
// current academic year only; WindowDays zero disables the rolling filter.
type AssessmentSyncOptions struct {
	Category   string
	Types      []string
	Schools    []string
	StartYear  int
	WindowDays int
}

// SyncAssessments iterates years x schools x assessment types for one
// category, fetching and upserting each combination. Per-combination errors
// are logged and skipped; the run only stops early when the context is done.
func (s *SyncService) SyncAssessments(ctx context.Context, opts AssessmentSyncOptions) (int64, error) {
	now := s.now()
	latestStartYear := now.Year()
	if now.Month() < s.cfg.CutoverMonth {
		latestStartYear--
	}

	startYear := opts.StartYear
	if startYear == 0 {
		startYear = latestStartYear
	}

	var windowStart time.Time
	if opts.WindowDays > 0 {
		windowStart = now.AddDate(0, 0, -opts.WindowDays)
	}

	var total int64
	for year := startYear; year <= latestStartYear; year++ {
		academicYear := fmt.Sprintf("%d-%d", year, year+1)

		for _, school := range opts.Schools {
			for _, assessmentType := range opts.Types {
				if ctx.Err() != nil {
					return total, ctx.Err()
				}

				entry := s.log.WithFields(logrus.Fields{
					"school":        school,
					"academic_year": academicYear,
					"type":          assessmentType,
					"category":      opts.Category,
				})
				entry.Info("Processing combination")

				records, err := s.fetcher.FetchAssessmentMarks(ctx, school, academicYear, assessmentType, opts.Category)
				if err != nil {
					if ctx.Err() != nil {
						return total, ctx.Err()
					}
					entry.Errorf("Fetch failed: %v", err)
					continue
				}
				if len(records) == 0 {
					entry.Info("No data")
					continue
				}

				batch := make([]models.NormalizedAssessment, 0, len(records))
				for i := range records {
					norm := s.normalizeAssessment(&records[i], academicYear, assessmentType, opts.Category)
					if opts.WindowDays > 0 && !insideWindow(norm.AssessmentDate, windowStart) {
						continue
					}
					batch = append(batch, *norm)
				}
				if len(batch) == 0 {
					entry.Infof("No data within the last %d days", opts.WindowDays)
					continue
				}

				affected, err := s.store.UpsertAssessments(ctx, batch)
				total += affected
				if err != nil {
					entry.Errorf("Upsert failed: %v", err)
					if ctx.Err() != nil {
						return total, ctx.Err()
					}
					continue
				}
				entry.Infof("Completed combination. Records affected: %d", affected)

				if err := s.pause(ctx); err != nil {
					return total, err
				}
			}
		}
	}

	return total, nil
}

// BackfillAssessments runs the full historical sync: both categories over the
// combined type taxonomy, from the configured start year, no window filter.
func (s *SyncService) BackfillAssessments(ctx context.Context) (int64, error) {
	var total int64
	for _, category := range []string{CategoryStandardized, CategoryNonStandardized} {
		n, err := s.SyncAssessments(ctx, AssessmentSyncOptions{
			Category:  category,
			Types:     s.cfg.AssessmentTypes,
			Schools:   s.cfg.BackfillSchools,
			StartYear: s.cfg.BackfillStartYear,
		})
		total += n
		if err != nil {
			return total, err
		}
	}
	s.log.Infof("Total assessment records inserted/updated: %d", total)
	return total, nil
}

// UpdateAssessments runs the everyday sync: current academic year only,
// category-specific type lists, restricted to the rolling date window so late
// entries are captured without reprocessing history.
func (s *SyncService) UpdateAssessments(ctx context.Context) (int64, error) {
	var total int64
	runs := []struct {
		category string
		types    []string
	}{
		{CategoryStandardized, s.cfg.StandardizedTypes},
		{CategoryNonStandardized, s.cfg.NonStandardizedTypes},
	}
	for _, run := range runs {
		n, err := s.SyncAssessments(ctx, AssessmentSyncOptions{
			Category:   run.category,
			Types:      run.types,
			Schools:    s.cfg.UpdateSchools,
			WindowDays: s.cfg.UpdateWindowDays,
		})
		total += n
		if err != nil {
			return total, err
		}
	}
	s.log.Infof("Total assessment records affected: %d", total)
	return total, nil
}

func (s *SyncService) normalizeAssessment(rec *models.AssessmentRecord, academicYear, assessmentType, category string) *models.NormalizedAssessment {
	studentID := ""
	if rec.StudentID != nil {
		studentID = string(*rec.StudentID)
	}

	out := &models.NormalizedAssessment{
		StudentID:           studentID,
		StudentName:         normalize.CleanTitle(rec.StudentName),
		Gender:              strPtrOrNil(normalize.Gender(derefString(rec.Gender))),
		SchoolName:          normalize.Clean(rec.SchoolName),
		SubjectName:         normalize.CleanTitle(rec.SubjectName),
		AssessmentType:      assessmentType,
		AcademicYear:        academicYear,
		GradeName:           strPtrOrNil(normalize.Grade(derefString(rec.GradeName))),
		CourseName:          normalize.Clean(rec.CourseName),
		DivisionName:        strPtrOrNil(normalize.Division(derefString(rec.DivisionName))),
		CompetencyName:      normalize.Clean(rec.CompetencyName),
		CompetencyLevelName: normalize.CleanTitle(rec.CompetencyLevelName),
		AssessmentCategory:  category,
		ObtainedMarks:       rec.ObtainedMarks.Ptr(),
		MaxMarks:            rec.MaxMarks.Ptr(),
		Percentage:          rec.Percentage.Ptr(),
		Description:         normalize.CleanTitle(rec.Description),
		QuestionName:        normalize.CleanTitle(rec.QuestionName),
		PresentAbsent:       normalize.Clean(rec.PresentAbsent),
	}

	if rec.AssessmentID != nil {
		id := string(*rec.AssessmentID)
		out.AssessmentID = strPtrOrNil(id)
	}

	// The key derivation still needs a date token when normalization fails,
	// so the raw text is carried alongside the nulled column.
	keyDate := ""
	if rec.AssessmentDate != nil {
		keyDate = *rec.AssessmentDate
		out.AssessmentDate = normalize.ISODate(*rec.AssessmentDate)
		if out.AssessmentDate == nil {
			s.log.Warnf("Invalid date format: %s", *rec.AssessmentDate)
		} else {
			keyDate = *out.AssessmentDate
		}
	}

	// Non-standardized feeds often leave the competency level blank and put
	// the level text in the description.
	if category == CategoryNonStandardized && out.CompetencyLevelName == nil {
		out.CompetencyLevelName = out.Description
	}

	out.GeneratedID = normalize.AssessmentID(normalize.AssessmentKeyInput{
		StudentID:      studentID,
		AssessmentType: assessmentType,
		AssessmentDate: keyDate,
		SubjectName:    utils.GetStringOrEmpty(out.SubjectName),
		CompetencyName: utils.GetStringOrEmpty(out.CompetencyName),
		QuestionName:   utils.GetStringOrEmpty(out.QuestionName),
	})
	return out
}

// pause is the fixed courtesy delay between combinations, bounding the
// request rate against the source API.
func (s *SyncService) pause(ctx context.Context) error {
	if s.cfg.RequestPause <= 0 {
		return nil
	}
	select {
	case <-time.After(s.cfg.RequestPause):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func insideWindow(isoDate *string, windowStart time.Time) bool {
	if isoDate == nil {
		return false
	}
	t, err := time.Parse("2006-01-02", *isoDate)
	if err != nil {
		return false
	}
	return !t.Before(windowStart)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
