package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/models"
)

const createStudentTable = `
CREATE TABLE IF NOT EXISTS active_student_data (
	id INT AUTO_INCREMENT PRIMARY KEY,
	created_date DATE,
	school_name VARCHAR(255) NOT NULL,
	status VARCHAR(50),
	grade_name VARCHAR(50),
	student_name VARCHAR(500),
	student_id VARCHAR(50) NOT NULL,
	gender CHAR(1),
	division_name VARCHAR(10),
	academic_year VARCHAR(10) NOT NULL,
	unique_key VARCHAR(255) NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_school_grade (school_name, grade_name),
	INDEX idx_student (student_id),
	INDEX idx_academic_year (academic_year),
	UNIQUE INDEX idx_unique_key (unique_key)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

const createAssessmentTable = `
CREATE TABLE IF NOT EXISTS student_full_assessment_data (
	id INT(11) NOT NULL AUTO_INCREMENT,
	student_id VARCHAR(100),
	student_name VARCHAR(255),
	gender VARCHAR(1),
	school_name VARCHAR(100),
	subject_name VARCHAR(100),
	assessment_type VARCHAR(100),
	academic_year VARCHAR(20),
	grade_name VARCHAR(50),
	course_name VARCHAR(100),
	division_name VARCHAR(10),
	competency_level_name TEXT,
	assessment_category VARCHAR(50),
	assessment_date DATE,
	obtained_marks FLOAT,
	max_marks FLOAT,
	percentage FLOAT,
	description TEXT,
	question_name TEXT,
	present_absent VARCHAR(1),
	assessment_id VARCHAR(255),
	assessment_id_generated VARCHAR(255),
	created_at DATETIME,
	last_updated_at DATETIME,
	PRIMARY KEY (id),
	UNIQUE KEY uniq_assessment_generated (assessment_id_generated(191)),
	KEY idx_full_dashboard_filters (
		assessment_type,
		academic_year,
		subject_name,
		school_name,
		grade_name,
		division_name
	),
	KEY idx_full_competency_level (competency_level_name(191))
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

var studentColumns = []string{
	"created_date", "school_name", "status", "grade_name", "student_name",
	"student_id", "gender", "division_name", "academic_year", "unique_key",
	"timestamp",
}

// Columns overwritten when the roster key collides. The key itself, the
// school and the external student id stay as first written.
var studentUpdateColumns = []string{
	"created_date", "status", "grade_name", "student_name", "gender",
	"division_name", "academic_year", "timestamp",
}

var assessmentColumns = []string{
	"student_id", "student_name", "gender", "school_name", "subject_name",
	"assessment_type", "academic_year", "grade_name", "course_name",
	"division_name", "competency_level_name", "assessment_category",
	"assessment_date", "obtained_marks", "max_marks", "percentage",
	"description", "question_name", "present_absent", "assessment_id",
	"assessment_id_generated", "created_at", "last_updated_at",
}

// Everything except the generated key and created_at is refreshed on
// collision; last_updated_at moves to the write time.
var assessmentUpdateColumns = []string{
	"student_id", "student_name", "gender", "school_name", "subject_name",
	"assessment_type", "academic_year", "grade_name", "course_name",
	"division_name", "competency_level_name", "assessment_category",
	"assessment_date", "obtained_marks", "max_marks", "percentage",
	"description", "question_name", "present_absent", "assessment_id",
}

// Batches are chunked so one statement never exceeds sane packet limits.
const assessmentUpsertChunk = 500

// Store wraps the single shared MySQL connection pool a run writes through.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// ConnectStore opens the database, trying the configured auth strategies in
// order until one answers a ping. The caller treats failure as a fatal
// precondition.
func ConnectStore(cfg *config.Config, log *logrus.Logger) (*Store, error) {
	var lastErr error
	for _, plugin := range cfg.DBAuthPlugins {
		db, err := openWithAuth(cfg, plugin)
		if err != nil {
			log.Warnf("MySQL connection with auth strategy %q failed: %v", plugin, err)
			lastErr = err
			continue
		}
		log.Infof("Connected to MySQL (%s@%s:%d/%s)", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return &Store{db: db, log: log}, nil
	}
	return nil, fmt.Errorf("mysql connection failed for all auth strategies: %w", lastErr)
}

func openWithAuth(cfg *config.Config, plugin string) (*sql.DB, error) {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.Params = map[string]string{"charset": "utf8mb4"}
	mc.AllowNativePasswords = plugin != "caching_sha2"

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates both tables and their indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStudentTable); err != nil {
		return fmt.Errorf("error creating active_student_data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createAssessmentTable); err != nil {
		return fmt.Errorf("error creating student_full_assessment_data: %w", err)
	}
	s.log.Info("Tables and indexes ensured.")
	return nil
}

func buildStudentUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(studentColumns)), ", ")
	sets := make([]string, 0, len(studentUpdateColumns))
	for _, col := range studentUpdateColumns {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	return fmt.Sprintf(
		"INSERT INTO active_student_data (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		strings.Join(studentColumns, ", "), placeholders, strings.Join(sets, ", "),
	)
}

// UpsertStudent writes one roster row. MySQL reports 1 affected row for a
// fresh insert and 2 for a key-collision update; the count is only ever used
// for logging.
func (s *Store) UpsertStudent(ctx context.Context, rec *models.NormalizedStudent) (int64, error) {
	res, err := s.db.ExecContext(ctx, buildStudentUpsert(),
		rec.CreatedDate,
		rec.SchoolName,
		rec.Status,
		rec.GradeName,
		rec.StudentName,
		rec.StudentID,
		rec.Gender,
		rec.DivisionName,
		rec.AcademicYear,
		rec.UniqueKey,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert failed for key %s: %w", rec.UniqueKey, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows for key %s: %w", rec.UniqueKey, err)
	}
	switch affected {
	case 1:
		s.log.Infof("[INSERT] Student ID: %s | Key: %s", rec.StudentID, rec.UniqueKey)
	case 2:
		s.log.Infof("[UPDATE] Student ID: %s | Key: %s", rec.StudentID, rec.UniqueKey)
	}
	return affected, nil
}

func buildAssessmentUpsert(rows int) string {
	oneRow := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(assessmentColumns)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = oneRow
	}
	sets := make([]string, 0, len(assessmentUpdateColumns)+1)
	for _, col := range assessmentUpdateColumns {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	sets = append(sets, "last_updated_at = NOW()")
	return fmt.Sprintf(
		"INSERT INTO student_full_assessment_data (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		strings.Join(assessmentColumns, ", "), strings.Join(values, ", "), strings.Join(sets, ", "),
	)
}

// UpsertAssessments writes one batch of normalized marks. Each chunk runs in
// its own transaction; a failed chunk rolls back alone and fails the batch.
// The returned count conflates inserts and updates.
func (s *Store) UpsertAssessments(ctx context.Context, recs []models.NormalizedAssessment) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	var total int64

	for start := 0; start < len(recs); start += assessmentUpsertChunk {
		end := start + assessmentUpsertChunk
		if end > len(recs) {
			end = len(recs)
		}
		chunk := recs[start:end]

		args := make([]any, 0, len(chunk)*len(assessmentColumns))
		for i := range chunk {
			r := &chunk[i]
			args = append(args,
				r.StudentID, r.StudentName, r.Gender, r.SchoolName, r.SubjectName,
				r.AssessmentType, r.AcademicYear, r.GradeName, r.CourseName,
				r.DivisionName, r.CompetencyLevelName, r.AssessmentCategory,
				r.AssessmentDate, r.ObtainedMarks, r.MaxMarks, r.Percentage,
				r.Description, r.QuestionName, r.PresentAbsent, r.AssessmentID,
				r.GeneratedID, now, now,
			)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return total, fmt.Errorf("error starting upsert transaction: %w", err)
		}
		res, err := tx.ExecContext(ctx, buildAssessmentUpsert(len(chunk)), args...)
		if err != nil {
			tx.Rollback()
			return total, fmt.Errorf("upsert failed for chunk of %d records: %w", len(chunk), err)
		}
		if err := tx.Commit(); err != nil {
			return total, fmt.Errorf("error committing upsert: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			total += affected
		}
	}

	return total, nil
}
