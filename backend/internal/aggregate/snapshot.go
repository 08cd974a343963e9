package aggregate

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"gradepulse/backend/internal/shared"
)

// BuildSnapshot derives the full analytics rollup from a batch of raw grade
// records: cohort-wide average, grade-band distribution, per-subject
// min/max/average/studentCount, and ranked top/bottom lists truncated to
// topN. studentNames is an optional id-to-display-name map used to label the
// ranked lists; unknown ids keep an empty name.
//
// The snapshot is ephemeral and rebuilt from a full re-fetch on every
// refresh; nothing here is persisted.
func BuildSnapshot(records []shared.GradeRecord, studentNames map[string]string, topN int) shared.AggregateSnapshot {
	var allScores []float64
	subjectScores := make(map[string][]float64)
	subjectStudents := make(map[string]map[string]bool)
	studentRecords := make(map[string][]shared.GradeRecord)

	for i := range records {
		rec := records[i]
		studentRecords[rec.StudentID] = append(studentRecords[rec.StudentID], rec)

		pct, graded := rec.Percent()
		if !graded {
			continue
		}
		allScores = append(allScores, pct)
		subjectScores[rec.SubjectName] = append(subjectScores[rec.SubjectName], pct)
		if subjectStudents[rec.SubjectName] == nil {
			subjectStudents[rec.SubjectName] = make(map[string]bool)
		}
		subjectStudents[rec.SubjectName][rec.StudentID] = true
	}

	snapshot := shared.AggregateSnapshot{
		CohortAverage: CohortAverage(allScores),
		GradedCount:   len(filterValidScores(allScores)),
		Distribution:  Distribution(allScores),
		GeneratedAt:   time.Now().UTC(),
	}

	// Per-subject statistics, in deterministic subject-name order.
	subjects := make([]string, 0, len(subjectScores))
	for name := range subjectScores {
		subjects = append(subjects, name)
	}
	sort.Strings(subjects)

	for _, name := range subjects {
		valid := filterValidScores(subjectScores[name])
		if len(valid) == 0 {
			continue
		}
		mean, _ := stats.Mean(valid)
		min, _ := stats.Min(valid)
		max, _ := stats.Max(valid)
		snapshot.Subjects = append(snapshot.Subjects, shared.SubjectStats{
			SubjectName:  name,
			Average:      Round2(mean),
			Min:          Round2(min),
			Max:          Round2(max),
			StudentCount: len(subjectStudents[name]),
		})
	}

	// Per-student standings, ordered by student id before ranking so that
	// ties break deterministically across rebuilds.
	studentIDs := make([]string, 0, len(studentRecords))
	for id := range studentRecords {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	var standings []shared.StudentStanding
	for _, id := range studentIDs {
		avg, ok := studentAverage(studentRecords[id])
		if !ok {
			continue
		}
		standings = append(standings, shared.StudentStanding{
			StudentID:   id,
			StudentName: studentNames[id],
			Average:     avg,
		})
	}

	snapshot.TopPerformers, snapshot.NeedsSupport = RankTopAndBottom(standings, topN)
	return snapshot
}

// studentAverage is the plain mean of one student's valid percentage scores
// across all subjects, used for cohort ranking. ok is false when the student
// has no graded work.
func studentAverage(records []shared.GradeRecord) (float64, bool) {
	var scores []float64
	for i := range records {
		if pct, graded := records[i].Percent(); graded {
			scores = append(scores, pct)
		}
	}
	valid := filterValidScores(scores)
	if len(valid) == 0 {
		return 0, false
	}
	mean, _ := stats.Mean(valid)
	return Round2(mean), true
}
