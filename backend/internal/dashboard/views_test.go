package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradepulse/backend/internal/api"
	"gradepulse/backend/internal/shared"
)

type fakeFetcher struct {
	records     []shared.GradeRecord
	enrollments []shared.SubjectEnrollment
	recordsErr  error
	lastFilter  api.RecordFilter
}

func (f *fakeFetcher) ListGradeRecords(ctx context.Context, filter api.RecordFilter) ([]shared.GradeRecord, error) {
	f.lastFilter = filter
	return f.records, f.recordsErr
}

func (f *fakeFetcher) EnrollmentAnalytics(ctx context.Context) ([]shared.SubjectEnrollment, error) {
	return f.enrollments, nil
}

func ptr(v float64) *float64 { return &v }

func record(id, student, subject, kind string, score *float64) shared.GradeRecord {
	return shared.GradeRecord{
		ID:             id,
		StudentID:      student,
		SubjectName:    subject,
		Score:          score,
		MaxScore:       100,
		AssessmentKind: kind,
	}
}

func TestRefreshGradebook(t *testing.T) {
	fetcher := &fakeFetcher{records: []shared.GradeRecord{
		record("r1", "s1", "Math", shared.KindAssignment, ptr(80)),
		record("r2", "s1", "Math", shared.KindFinalExam, ptr(90)),
		record("r3", "s2", "Math", shared.KindAssignment, ptr(70)),
		record("r4", "s2", "Math", shared.KindQuiz, nil), // pending
		record("r5", "s3", "Math", shared.KindMidExam, nil),
	}}

	state, err := refreshGradebook(fetcher, "t1", "Math")(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "t1", fetcher.lastFilter.TeacherID)
	assert.Equal(t, "Math", fetcher.lastFilter.SubjectName)
	assert.Equal(t, "Math", state.SubjectName)
	require.Len(t, state.Rows, 3)

	// s1: 0.4*80 + 0.6*90 = 86
	require.NotNil(t, state.Rows[0].Overall)
	assert.Equal(t, 86.00, *state.Rows[0].Overall)
	assert.Equal(t, 2, state.Rows[0].GradedCount)
	assert.Equal(t, 0, state.Rows[0].PendingCount)

	// s2: assignments only, overall is that average
	require.NotNil(t, state.Rows[1].Overall)
	assert.Equal(t, 70.00, *state.Rows[1].Overall)
	assert.Equal(t, 1, state.Rows[1].GradedCount)
	assert.Equal(t, 1, state.Rows[1].PendingCount)

	// s3: nothing graded yet, no overall
	assert.Nil(t, state.Rows[2].Overall)
	assert.Equal(t, 1, state.Rows[2].PendingCount)

	// Class average over the two present overalls: (86+70)/2
	assert.Equal(t, 78.00, state.ClassAverage)
	assert.Equal(t, 1, state.Distribution.Good)
	assert.Equal(t, 1, state.Distribution.Satisfactory)
}

func TestRefreshGradebookFetchError(t *testing.T) {
	fetcher := &fakeFetcher{recordsErr: errors.New("upstream down")}

	_, err := refreshGradebook(fetcher, "t1", "Math")(context.Background())
	assert.Error(t, err)
}

func TestRefreshStudentGradebook(t *testing.T) {
	fetcher := &fakeFetcher{records: []shared.GradeRecord{
		record("r1", "s1", "Math", shared.KindAssignment, ptr(80)),
		record("r2", "s1", "Math", shared.KindFinalExam, ptr(90)),
		record("r3", "s1", "Science", shared.KindQuiz, nil),
	}}

	state, err := refreshStudentGradebook(fetcher, "s1")(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "s1", fetcher.lastFilter.StudentID)
	require.Len(t, state.Subjects, 2)

	assert.Equal(t, "Math", state.Subjects[0].SubjectName)
	require.NotNil(t, state.Subjects[0].Overall)
	assert.Equal(t, 86.00, *state.Subjects[0].Overall)
	assert.Equal(t, 2, state.Subjects[0].RecordCount)

	assert.Equal(t, "Science", state.Subjects[1].SubjectName)
	assert.Nil(t, state.Subjects[1].Overall)
	assert.Equal(t, 1, state.Subjects[1].RecordCount)
}

func TestRefreshParent(t *testing.T) {
	fetcher := &fakeFetcher{
		records: []shared.GradeRecord{
			record("r1", "s1", "Math", shared.KindAssignment, ptr(80)),
			record("r2", "s1", "Math", shared.KindFinalExam, ptr(90)),
		},
		enrollments: []shared.SubjectEnrollment{
			{EnrollmentID: "e1", StudentID: "s1", StudentName: "Amina", SubjectName: "Math"},
			{EnrollmentID: "e1", StudentID: "s1", StudentName: "Amina", SubjectName: "Math"}, // duplicate row
			{EnrollmentID: "e2", StudentID: "s2", StudentName: "Ben", SubjectName: "Science"},
			{EnrollmentID: "e3", StudentID: "s9", StudentName: "Other", SubjectName: "Math"},
		},
	}

	state, err := refreshParent(fetcher, []string{"s1", "s2"})(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Children, 2, "dedupe plus filter keep one row per enrollment, wanted children only")

	amina := state.Children[0]
	assert.Equal(t, "s1", amina.StudentID)
	require.Len(t, amina.Enrollments, 1)
	require.NotNil(t, amina.Enrollments[0].OverallScore)
	assert.Equal(t, 86.00, *amina.Enrollments[0].OverallScore)

	ben := state.Children[1]
	assert.Equal(t, "s2", ben.StudentID)
	require.Len(t, ben.Enrollments, 1)
	assert.Nil(t, ben.Enrollments[0].OverallScore, "no grade records leaves the overall unset")
}

func TestRefreshParentKeepsAllChildrenWithoutFilter(t *testing.T) {
	fetcher := &fakeFetcher{
		enrollments: []shared.SubjectEnrollment{
			{EnrollmentID: "e1", StudentID: "s1", SubjectName: "Math"},
			{EnrollmentID: "e2", StudentID: "s2", SubjectName: "Science"},
		},
	}

	state, err := refreshParent(fetcher, nil)(context.Background())
	require.NoError(t, err)
	assert.Len(t, state.Children, 2)
}

func TestRefreshAnalytics(t *testing.T) {
	fetcher := &fakeFetcher{
		records: []shared.GradeRecord{
			record("r1", "s1", "Math", shared.KindAssignment, ptr(95)),
			record("r2", "s2", "Math", shared.KindAssignment, ptr(72)),
		},
		enrollments: []shared.SubjectEnrollment{
			{EnrollmentID: "e1", StudentID: "s1", StudentName: "Amina", SubjectName: "Math"},
		},
	}

	snap, err := refreshAnalytics(fetcher)(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.GradedCount)
	require.Len(t, snap.TopPerformers, 2)
	assert.Equal(t, "Amina", snap.TopPerformers[0].StudentName, "names come from the deduped enrollment rows")
}
