// ============================================================================
// backend/internal/shared/models.go
// Shared data models for grade records, enrollments, and change notifications
// ============================================================================

package shared

import (
	"fmt"
	"math"
	"time"
)

// ============================================================================
// Grade Record Models
// ============================================================================

// GradeRecord represents one scored assessment instance for one student.
// A nil Score means "not yet graded" and must be excluded from averages,
// never treated as zero.
type GradeRecord struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	SubjectName    string    `json:"subject_name"`
	Score          *float64  `json:"score,omitempty"`
	MaxScore       float64   `json:"max_score"`
	AssessmentKind string    `json:"assessment_kind"` // assignment, quiz, midexam, finalexam, generic
	Feedback       string    `json:"feedback,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// IsExamKind reports whether the record counts toward the exam portion of the
// weighted overall. Everything that is not a mid/final exam counts as
// assignment work.
func (r *GradeRecord) IsExamKind() bool {
	return r.AssessmentKind == KindMidExam || r.AssessmentKind == KindFinalExam
}

// IsGraded reports whether the record carries a usable score.
func (r *GradeRecord) IsGraded() bool {
	if r.Score == nil {
		return false
	}
	return !math.IsNaN(*r.Score) && !math.IsInf(*r.Score, 0)
}

// Percent returns the record's score as a percentage of MaxScore.
// The second return value is false when the record has no usable score or the
// ratio would not be a finite number.
func (r *GradeRecord) Percent() (float64, bool) {
	if !r.IsGraded() || r.MaxScore <= 0 {
		return 0, false
	}
	pct := (*r.Score / r.MaxScore) * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, false
	}
	return pct, true
}

// ============================================================================
// Enrollment Models
// ============================================================================

// TeacherRef identifies the teacher attached to an enrollment.
type TeacherRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubjectEnrollment represents a student's registration in one subject taught
// by one teacher. OverallScore is derived from the student's GradeRecords by
// the aggregation engine; nil means the student has no graded work yet.
type SubjectEnrollment struct {
	EnrollmentID string     `json:"enrollment_id,omitempty"`
	StudentID    string     `json:"student_id"`
	StudentName  string     `json:"student_name,omitempty"`
	SubjectName  string     `json:"subject_name"`
	GradeLevel   string     `json:"grade_level"`
	Stream       string     `json:"stream,omitempty"`
	Teacher      TeacherRef `json:"teacher"`
	EnrolledAt   time.Time  `json:"enrolled_at"`

	// Derived fields
	OverallScore      *float64 `json:"overall_score,omitempty"`
	AssignmentAverage *float64 `json:"assignment_average,omitempty"`
	Trend             string   `json:"trend,omitempty"` // up, down, stable
	TrendValue        *float64 `json:"trend_value,omitempty"`
}

// DedupeKey returns the identity used to coalesce duplicate enrollment rows.
// An explicit enrollment id wins; otherwise the composite business key is used.
func (e *SubjectEnrollment) DedupeKey() string {
	if e.EnrollmentID != "" {
		return "id:" + e.EnrollmentID
	}
	return fmt.Sprintf("key:%s|%s|%s|%s", e.StudentID, e.SubjectName, e.GradeLevel, e.Stream)
}

// ============================================================================
// Change Feed Models
// ============================================================================

// ChangeNotification describes one grade mutation. It is transient: published
// on the sync bus, consumed at most once per subscriber per emission, and
// never stored.
type ChangeNotification struct {
	StudentID   string    `json:"student_id"`
	TeacherID   string    `json:"teacher_id"`
	SubjectName string    `json:"subject_name"`
	Action      string    `json:"action"` // create, update, delete
	OccurredAt  time.Time `json:"occurred_at"`
}

// IsValidAction checks a change-feed action string.
func IsValidAction(action string) bool {
	return action == ActionCreate || action == ActionUpdate || action == ActionDelete
}

// ============================================================================
// Aggregate Models (derived, never persisted)
// ============================================================================

// GradeBandCounts holds the number of scores falling in each grade band.
type GradeBandCounts struct {
	Excellent        int `json:"excellent"`         // >= 90
	Good             int `json:"good"`              // 80-89
	Satisfactory     int `json:"satisfactory"`      // 70-79
	NeedsImprovement int `json:"needs_improvement"` // < 70
	Total            int `json:"total"`             // scores actually counted
}

// SubjectStats holds per-subject rollup statistics.
type SubjectStats struct {
	SubjectName  string  `json:"subject_name"`
	Average      float64 `json:"average"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	StudentCount int     `json:"student_count"`
}

// StudentStanding is one entry in a ranked list (top performers or students
// needing support).
type StudentStanding struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name,omitempty"`
	Average     float64 `json:"average"`
}

// AggregateSnapshot is an ephemeral, view-specific rollup derived from raw
// grade records. It lives only in memory for the lifetime of a view.
type AggregateSnapshot struct {
	CohortAverage float64           `json:"cohort_average"`
	GradedCount   int               `json:"graded_count"`
	Distribution  GradeBandCounts   `json:"distribution"`
	Subjects      []SubjectStats    `json:"subjects"`
	TopPerformers []StudentStanding `json:"top_performers"`
	NeedsSupport  []StudentStanding `json:"needs_support"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// ============================================================================
// Mutation Models
// ============================================================================

// ScoreSubmission is the payload for saving one score+feedback upstream.
// Score bounds are validated locally before any network call.
type ScoreSubmission struct {
	RecordID    string  `json:"record_id" validate:"required"`
	StudentID   string  `json:"student_id" validate:"required"`
	TeacherID   string  `json:"teacher_id" validate:"required"`
	SubjectName string  `json:"subject_name" validate:"required"`
	Score       float64 `json:"score" validate:"min=0"`
	MaxScore    float64 `json:"max_score" validate:"gt=0"`
	Feedback    string  `json:"feedback,omitempty"`
}

// ============================================================================
// Constants
// ============================================================================

const (
	// Assessment kinds
	KindAssignment = "assignment"
	KindQuiz       = "quiz"
	KindMidExam    = "midexam"
	KindFinalExam  = "finalexam"
	KindGeneric    = "generic"

	// Change-feed actions
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	// Grade band cutoffs (scores outside [0,100] are excluded, never clamped)
	BandExcellentMin    = 90.0
	BandGoodMin         = 80.0
	BandSatisfactoryMin = 70.0

	// Ranked lists keep the top/bottom N students
	DefaultRankSize = 5
)

// ============================================================================
// Tolerant Value Coercion Helpers
// ============================================================================
//
// The enrollment analytics endpoint returns loosely typed nested JSON; these
// helpers convert interface{} values without ever failing the whole payload.

// GetString converts a JSON value to a string.
func GetString(value interface{}) (string, error) {
	if str, ok := value.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("cannot convert %T to string", value)
}

// GetFloat64 converts a JSON value to a float64. Integers decoded as float64
// by encoding/json pass through; NaN and infinities are rejected.
func GetFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite float value")
		}
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// GetBool converts a JSON value to a bool.
func GetBool(value interface{}) (bool, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", value)
}

// GetTime converts a JSON value to a time.Time. Accepts RFC 3339 strings and
// plain dates ("2006-01-02").
func GetTime(value interface{}) (time.Time, error) {
	str, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot convert %T to time", value)
	}
	if t, err := time.Parse(time.RFC3339, str); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", str); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", str)
}

// GetMap converts a JSON value to an object.
func GetMap(value interface{}) (map[string]interface{}, error) {
	if m, ok := value.(map[string]interface{}); ok {
		return m, nil
	}
	return nil, fmt.Errorf("cannot convert %T to object", value)
}

// GetSlice converts a JSON value to an array.
func GetSlice(value interface{}) ([]interface{}, error) {
	if s, ok := value.([]interface{}); ok {
		return s, nil
	}
	return nil, fmt.Errorf("cannot convert %T to array", value)
}
