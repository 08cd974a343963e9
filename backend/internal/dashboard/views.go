package dashboard

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"gradepulse/backend/internal/aggregate"
	"gradepulse/backend/internal/api"
	"gradepulse/backend/internal/shared"
)

// Fetcher is the slice of the upstream API client the views need.
type Fetcher interface {
	ListGradeRecords(ctx context.Context, filter api.RecordFilter) ([]shared.GradeRecord, error)
	EnrollmentAnalytics(ctx context.Context) ([]shared.SubjectEnrollment, error)
}

// ============================================================================
// View state types
// ============================================================================

// GradebookRow is one student line in a teacher's gradebook view.
type GradebookRow struct {
	StudentID    string   `json:"student_id"`
	Overall      *float64 `json:"overall,omitempty"`
	GradedCount  int      `json:"graded_count"`
	PendingCount int      `json:"pending_count"`
}

// GradebookState is the derived state of one teacher/subject gradebook.
type GradebookState struct {
	TeacherID    string                 `json:"teacher_id"`
	SubjectName  string                 `json:"subject_name"`
	Rows         []GradebookRow         `json:"rows"`
	ClassAverage float64                `json:"class_average"`
	Distribution shared.GradeBandCounts `json:"distribution"`
}

// SubjectOverall is one subject line in a student's own gradebook.
type SubjectOverall struct {
	SubjectName string   `json:"subject_name"`
	Overall     *float64 `json:"overall,omitempty"`
	RecordCount int      `json:"record_count"`
}

// StudentGradebookState is the derived state of one student's gradebook.
type StudentGradebookState struct {
	StudentID string           `json:"student_id"`
	Subjects  []SubjectOverall `json:"subjects"`
}

// ChildSummary groups one enrolled student's subjects for the parent view.
type ChildSummary struct {
	StudentID   string                     `json:"student_id"`
	StudentName string                     `json:"student_name,omitempty"`
	Enrollments []shared.SubjectEnrollment `json:"enrollments"`
}

// ParentState is the derived state of a parent dashboard: deduped enrollments
// with weighted overall scores, grouped per child.
type ParentState struct {
	Children []ChildSummary `json:"children"`
}

// ============================================================================
// Refresh cycles
// ============================================================================

// refreshAnalytics builds the admin analytics snapshot: bulk records and the
// enrollment analytics fetched concurrently, then one pure aggregation pass.
func refreshAnalytics(fetcher Fetcher) RefreshFunc[shared.AggregateSnapshot] {
	return func(ctx context.Context) (shared.AggregateSnapshot, error) {
		var (
			records     []shared.GradeRecord
			enrollments []shared.SubjectEnrollment
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			records, err = fetcher.ListGradeRecords(gctx, api.RecordFilter{})
			return err
		})
		g.Go(func() error {
			var err error
			enrollments, err = fetcher.EnrollmentAnalytics(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return shared.AggregateSnapshot{}, err
		}

		names := make(map[string]string)
		for _, e := range aggregate.DedupeEnrollments(enrollments) {
			if e.StudentName != "" {
				names[e.StudentID] = e.StudentName
			}
		}

		return aggregate.BuildSnapshot(records, names, shared.DefaultRankSize), nil
	}
}

// refreshGradebook builds one teacher/subject gradebook: per-student weighted
// overalls plus a class average and band distribution.
func refreshGradebook(fetcher Fetcher, teacherID, subjectName string) RefreshFunc[GradebookState] {
	return func(ctx context.Context) (GradebookState, error) {
		records, err := fetcher.ListGradeRecords(ctx, api.RecordFilter{
			TeacherID:   teacherID,
			SubjectName: subjectName,
		})
		if err != nil {
			return GradebookState{}, err
		}

		byStudent := make(map[string][]shared.GradeRecord)
		for i := range records {
			byStudent[records[i].StudentID] = append(byStudent[records[i].StudentID], records[i])
		}

		studentIDs := make([]string, 0, len(byStudent))
		for id := range byStudent {
			studentIDs = append(studentIDs, id)
		}
		sort.Strings(studentIDs)

		state := GradebookState{
			TeacherID:   teacherID,
			SubjectName: subjectName,
		}

		var overalls []float64
		for _, id := range studentIDs {
			recs := byStudent[id]
			row := GradebookRow{StudentID: id}
			for i := range recs {
				if recs[i].IsGraded() {
					row.GradedCount++
				} else {
					row.PendingCount++
				}
			}
			if overall, ok := aggregate.WeightedOverall(recs); ok {
				v := overall
				row.Overall = &v
				overalls = append(overalls, overall)
			}
			state.Rows = append(state.Rows, row)
		}

		state.ClassAverage = aggregate.CohortAverage(overalls)
		state.Distribution = aggregate.Distribution(overalls)
		return state, nil
	}
}

// refreshStudentGradebook builds one student's per-subject overalls.
func refreshStudentGradebook(fetcher Fetcher, studentID string) RefreshFunc[StudentGradebookState] {
	return func(ctx context.Context) (StudentGradebookState, error) {
		records, err := fetcher.ListGradeRecords(ctx, api.RecordFilter{StudentID: studentID})
		if err != nil {
			return StudentGradebookState{}, err
		}

		bySubject := make(map[string][]shared.GradeRecord)
		for i := range records {
			bySubject[records[i].SubjectName] = append(bySubject[records[i].SubjectName], records[i])
		}

		subjects := make([]string, 0, len(bySubject))
		for name := range bySubject {
			subjects = append(subjects, name)
		}
		sort.Strings(subjects)

		state := StudentGradebookState{StudentID: studentID}
		for _, name := range subjects {
			recs := bySubject[name]
			entry := SubjectOverall{SubjectName: name, RecordCount: len(recs)}
			if overall, ok := aggregate.WeightedOverall(recs); ok {
				v := overall
				entry.Overall = &v
			}
			state.Subjects = append(state.Subjects, entry)
		}
		return state, nil
	}
}

// refreshParent builds the parent dashboard for a set of children: enrollment
// rows and raw records fetched concurrently, rows deduped exactly-once, then
// overall scores derived per enrollment. An empty studentIDs set keeps every
// student in the payload.
func refreshParent(fetcher Fetcher, studentIDs []string) RefreshFunc[ParentState] {
	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}

	return func(ctx context.Context) (ParentState, error) {
		var (
			records     []shared.GradeRecord
			enrollments []shared.SubjectEnrollment
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			records, err = fetcher.ListGradeRecords(gctx, api.RecordFilter{})
			return err
		})
		g.Go(func() error {
			var err error
			enrollments, err = fetcher.EnrollmentAnalytics(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return ParentState{}, err
		}

		deduped := aggregate.DedupeEnrollments(enrollments)
		if len(wanted) > 0 {
			kept := deduped[:0]
			for i := range deduped {
				if wanted[deduped[i].StudentID] {
					kept = append(kept, deduped[i])
				}
			}
			deduped = kept
		}

		aggregate.ApplyOverallScores(deduped, records)

		byChild := make(map[string]*ChildSummary)
		var order []string
		for i := range deduped {
			id := deduped[i].StudentID
			if byChild[id] == nil {
				byChild[id] = &ChildSummary{
					StudentID:   id,
					StudentName: deduped[i].StudentName,
				}
				order = append(order, id)
			}
			byChild[id].Enrollments = append(byChild[id].Enrollments, deduped[i])
		}
		sort.Strings(order)

		state := ParentState{}
		for _, id := range order {
			state.Children = append(state.Children, *byChild[id])
		}
		return state, nil
	}
}
