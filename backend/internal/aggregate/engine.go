// ============================================================================
// backend/internal/aggregate/engine.go
// Pure grade aggregation: weighted overalls, distributions, cohort averages,
// ranked standings, and enrollment deduplication.
// ============================================================================

package aggregate

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"gradepulse/backend/internal/shared"
)

// Weighting policy for the blended overall score. These are fixed policy
// constants, not configuration: 40% assignment-kind average, 60% exam-kind
// average.
const (
	AssignmentWeight = 0.4
	ExamWeight       = 0.6
)

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// filterValidScores keeps only finite percentage scores in the closed
// interval [0,100]. Out-of-range and non-numeric values are excluded, never
// clamped. This is an explicit, named filtering step so malformed data is
// excluded intentionally rather than as a side effect of float arithmetic.
func filterValidScores(scores []float64) []float64 {
	valid := make([]float64, 0, len(scores))
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		if s < 0 || s > 100 {
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

// WeightedOverall computes the blended overall percentage for one
// student/subject's records: mean of assignment-kind percentages weighted
// AssignmentWeight plus mean of exam-kind percentages weighted ExamWeight.
// When only one category has graded records, that category's mean is returned
// unweighted. When neither has graded records, ok is false: there is no
// grade, which is distinct from a grade of zero.
func WeightedOverall(records []shared.GradeRecord) (overall float64, ok bool) {
	var assignment, exam []float64
	for i := range records {
		pct, graded := records[i].Percent()
		if !graded {
			continue
		}
		if records[i].IsExamKind() {
			exam = append(exam, pct)
		} else {
			assignment = append(assignment, pct)
		}
	}

	switch {
	case len(assignment) > 0 && len(exam) > 0:
		aMean, _ := stats.Mean(assignment)
		eMean, _ := stats.Mean(exam)
		return Round2(aMean*AssignmentWeight + eMean*ExamWeight), true
	case len(assignment) > 0:
		aMean, _ := stats.Mean(assignment)
		return Round2(aMean), true
	case len(exam) > 0:
		eMean, _ := stats.Mean(exam)
		return Round2(eMean), true
	default:
		return 0, false
	}
}

// AssignmentAverage computes the mean of just the assignment-kind
// percentages. ok is false when no assignment-kind record is graded.
func AssignmentAverage(records []shared.GradeRecord) (avg float64, ok bool) {
	var assignment []float64
	for i := range records {
		if records[i].IsExamKind() {
			continue
		}
		if pct, graded := records[i].Percent(); graded {
			assignment = append(assignment, pct)
		}
	}
	if len(assignment) == 0 {
		return 0, false
	}
	mean, _ := stats.Mean(assignment)
	return Round2(mean), true
}

// Distribution buckets percentage scores into the four grade bands. Scores
// outside [0,100] and non-finite values are excluded from both the counts and
// the total.
func Distribution(scores []float64) shared.GradeBandCounts {
	var dist shared.GradeBandCounts
	for _, s := range filterValidScores(scores) {
		switch {
		case s >= shared.BandExcellentMin:
			dist.Excellent++
		case s >= shared.BandGoodMin:
			dist.Good++
		case s >= shared.BandSatisfactoryMin:
			dist.Satisfactory++
		default:
			dist.NeedsImprovement++
		}
		dist.Total++
	}
	return dist
}

// BandPercent returns count as a percentage of total, rounded to 2 decimals.
// A zero total yields 0, never NaN.
func BandPercent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(count) / float64(total) * 100)
}

// CohortAverage computes the arithmetic mean of the valid scores in the
// input. An empty or fully invalid input yields 0; callers that need to
// distinguish "no data" from "average of zero" must check the input length,
// not the returned value.
func CohortAverage(scores []float64) float64 {
	valid := filterValidScores(scores)
	if len(valid) == 0 {
		return 0
	}
	mean, _ := stats.Mean(valid)
	return Round2(mean)
}

// RankTopAndBottom sorts per-student averages descending for the top list and
// ascending for the bottom list, truncating both to n. The sort is stable, so
// ties keep the input's iteration order; callers needing deterministic output
// across calls must order the input by a secondary key (such as student id)
// first.
func RankTopAndBottom(standings []shared.StudentStanding, n int) (top, bottom []shared.StudentStanding) {
	if n <= 0 || len(standings) == 0 {
		return nil, nil
	}

	top = make([]shared.StudentStanding, len(standings))
	copy(top, standings)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Average > top[j].Average })

	bottom = make([]shared.StudentStanding, len(standings))
	copy(bottom, standings)
	sort.SliceStable(bottom, func(i, j int) bool { return bottom[i].Average < bottom[j].Average })

	if len(top) > n {
		top = top[:n]
	}
	if len(bottom) > n {
		bottom = bottom[:n]
	}
	return top, bottom
}

// DedupeEnrollments collapses duplicate enrollment rows into one entry per
// unique key (explicit enrollment id when present, otherwise the composite
// student/subject/gradeLevel/stream key). The first-seen row for a key wins;
// later duplicates are dropped, not merged; downstream statistics assume
// exactly-once counting per enrollment.
func DedupeEnrollments(rows []shared.SubjectEnrollment) []shared.SubjectEnrollment {
	seen := make(map[string]bool, len(rows))
	out := make([]shared.SubjectEnrollment, 0, len(rows))
	for i := range rows {
		key := rows[i].DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rows[i])
	}
	return out
}

// ApplyOverallScores fills each enrollment's derived OverallScore and
// AssignmentAverage from the grade records belonging to the same
// student/subject pair. Enrollments with no graded records keep nil derived
// fields.
func ApplyOverallScores(enrollments []shared.SubjectEnrollment, records []shared.GradeRecord) {
	bySubject := make(map[[2]string][]shared.GradeRecord)
	for i := range records {
		key := [2]string{records[i].StudentID, records[i].SubjectName}
		bySubject[key] = append(bySubject[key], records[i])
	}

	for i := range enrollments {
		key := [2]string{enrollments[i].StudentID, enrollments[i].SubjectName}
		recs := bySubject[key]
		if overall, ok := WeightedOverall(recs); ok {
			v := overall
			enrollments[i].OverallScore = &v
		}
		if avg, ok := AssignmentAverage(recs); ok {
			v := avg
			enrollments[i].AssignmentAverage = &v
		}
	}
}
