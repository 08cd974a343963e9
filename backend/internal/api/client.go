// ============================================================================
// backend/internal/api/client.go
// HTTP client for the school platform REST API.
// ============================================================================

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
)

// Client wraps the upstream REST API. The upstream owns and persists grade
// records and enrollments; the client only ever holds read-through results,
// rebuilt on every fetch.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	validate *validator.Validate
	log      *zap.Logger
}

// RecordFilter narrows a bulk grade-record fetch.
type RecordFilter struct {
	StudentID   string
	SubjectName string
	TeacherID   string
}

// NewClient creates an upstream API client from configuration.
func NewClient(cfg shared.UpstreamConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New()
	v.RegisterStructValidation(validateScoreBounds, shared.ScoreSubmission{})
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.APIToken,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		validate: v,
		log:      log,
	}
}

// validateScoreBounds enforces 0 <= score <= maxScore on submissions.
func validateScoreBounds(sl validator.StructLevel) {
	sub := sl.Current().Interface().(shared.ScoreSubmission)
	if sub.MaxScore > 0 && sub.Score > sub.MaxScore {
		sl.ReportError(sub.Score, "Score", "score", "lte", "max_score")
	}
}

// ============================================================================
// Reads
// ============================================================================

// ListGradeRecords fetches grade records in bulk, optionally filtered by
// student, subject, or teacher. The upstream returns either a bare JSON array
// or an envelope {"data": [...]}; both are accepted.
func (c *Client) ListGradeRecords(ctx context.Context, filter RecordFilter) ([]shared.GradeRecord, error) {
	q := url.Values{}
	if filter.StudentID != "" {
		q.Set("student_id", filter.StudentID)
	}
	if filter.SubjectName != "" {
		q.Set("subject", filter.SubjectName)
	}
	if filter.TeacherID != "" {
		q.Set("teacher_id", filter.TeacherID)
	}

	body, reqURL, err := c.get(ctx, "/api/grades/records", q)
	if err != nil {
		return nil, err
	}

	var records []shared.GradeRecord
	if err := decodeArrayOrEnvelope(body, &records); err != nil {
		return nil, &FetchFailure{URL: reqURL, Err: fmt.Errorf("malformed records payload: %w", err)}
	}
	return records, nil
}

// FetchChanges fetches change notifications accumulated since the last poll.
// Entries with unknown actions are dropped, not fatal.
func (c *Client) FetchChanges(ctx context.Context) ([]shared.ChangeNotification, error) {
	body, reqURL, err := c.get(ctx, "/api/grades/changes", nil)
	if err != nil {
		return nil, err
	}

	var raw []shared.ChangeNotification
	if err := decodeArrayOrEnvelope(body, &raw); err != nil {
		return nil, &FetchFailure{URL: reqURL, Err: fmt.Errorf("malformed change feed payload: %w", err)}
	}

	notes := raw[:0]
	for _, n := range raw {
		if !shared.IsValidAction(n.Action) {
			c.log.Debug("dropping change notification with unknown action", zap.String("action", n.Action))
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// EnrollmentAnalytics fetches the nested family/student/subject analytics
// payload and flattens it into enrollment rows. Optional fields (stream,
// trend_value) may be missing and individual malformed rows are skipped with
// a diagnostic log, never treated as errors. The returned rows are raw: the
// caller dedupes them through the aggregation engine.
func (c *Client) EnrollmentAnalytics(ctx context.Context) ([]shared.SubjectEnrollment, error) {
	body, reqURL, err := c.get(ctx, "/api/enrollments/analytics", nil)
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchFailure{URL: reqURL, Err: fmt.Errorf("malformed analytics payload: %w", err)}
	}

	return c.flattenFamilies(payload), nil
}

// flattenFamilies walks families -> students -> subjects using the tolerant
// coercion helpers. Anything that does not coerce is skipped at that level.
func (c *Client) flattenFamilies(payload map[string]interface{}) []shared.SubjectEnrollment {
	var rows []shared.SubjectEnrollment

	families, err := shared.GetSlice(payload["families"])
	if err != nil {
		c.log.Debug("analytics payload has no families array")
		return rows
	}

	for _, rawFamily := range families {
		family, err := shared.GetMap(rawFamily)
		if err != nil {
			continue
		}
		students, err := shared.GetSlice(family["students"])
		if err != nil {
			continue
		}

		for _, rawStudent := range students {
			student, err := shared.GetMap(rawStudent)
			if err != nil {
				continue
			}
			studentID, err := shared.GetString(student["student_id"])
			if err != nil || studentID == "" {
				c.log.Debug("skipping analytics student row without student_id")
				continue
			}
			studentName, _ := shared.GetString(student["student_name"])

			subjects, err := shared.GetSlice(student["subjects"])
			if err != nil {
				continue
			}
			for _, rawSubject := range subjects {
				subject, err := shared.GetMap(rawSubject)
				if err != nil {
					continue
				}
				row, ok := flattenSubjectRow(subject, studentID, studentName)
				if !ok {
					c.log.Debug("skipping malformed analytics subject row",
						zap.String("student_id", studentID))
					continue
				}
				rows = append(rows, row)
			}
		}
	}

	return rows
}

func flattenSubjectRow(subject map[string]interface{}, studentID, studentName string) (shared.SubjectEnrollment, bool) {
	subjectName, err := shared.GetString(subject["subject"])
	if err != nil || subjectName == "" {
		return shared.SubjectEnrollment{}, false
	}

	row := shared.SubjectEnrollment{
		StudentID:   studentID,
		StudentName: studentName,
		SubjectName: subjectName,
	}

	// Optional fields: absence is not an error.
	row.EnrollmentID, _ = shared.GetString(subject["id"])
	row.GradeLevel, _ = shared.GetString(subject["grade_level"])
	row.Stream, _ = shared.GetString(subject["stream"])
	row.Trend, _ = shared.GetString(subject["trend"])

	if teacher, err := shared.GetMap(subject["teacher"]); err == nil {
		row.Teacher.ID, _ = shared.GetString(teacher["id"])
		row.Teacher.Name, _ = shared.GetString(teacher["name"])
	} else if name, err := shared.GetString(subject["teacher"]); err == nil {
		row.Teacher.Name = name
	}

	if enrolled, err := shared.GetTime(subject["enrolled_date"]); err == nil {
		row.EnrolledAt = enrolled
	}
	if v, err := shared.GetFloat64(subject["assignment_average"]); err == nil {
		row.AssignmentAverage = &v
	}
	if v, err := shared.GetFloat64(subject["overall_grade"]); err == nil {
		row.OverallScore = &v
	}
	if v, err := shared.GetFloat64(subject["trend_value"]); err == nil {
		row.TrendValue = &v
	}

	return row, true
}

// ============================================================================
// Mutations
// ============================================================================

// SubmitScore saves one score+feedback upstream. The submission is validated
// locally first; an out-of-bounds score is returned as a ValidationFailure
// without any network I/O. On success the caller is expected to publish a
// ChangeNotification on the sync bus fan-out channels.
func (c *Client) SubmitScore(ctx context.Context, sub shared.ScoreSubmission) error {
	if err := c.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationFailure{
				Field:   verrs[0].Field(),
				Message: validationMessage(verrs[0], sub),
			}
		}
		return &ValidationFailure{Field: "submission", Message: err.Error()}
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}

	reqURL := c.baseURL + "/api/grades/records/" + url.PathEscape(sub.RecordID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchFailure{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchFailure{URL: reqURL, StatusCode: resp.StatusCode}
	}
	return nil
}

func validationMessage(fe validator.FieldError, sub shared.ScoreSubmission) string {
	switch fe.Field() {
	case "Score":
		return fmt.Sprintf("score must be between 0 and %g", sub.MaxScore)
	case "MaxScore":
		return "max score must be positive"
	default:
		return fmt.Sprintf("%s is required", fe.Field())
	}
}

// ============================================================================
// Transport helpers
// ============================================================================

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// get issues a GET and returns the response body, mapping every transport or
// status failure to a FetchFailure.
func (c *Client) get(ctx context.Context, path string, query url.Values) (body []byte, reqURL string, err error) {
	reqURL = c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, reqURL, &FetchFailure{URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, reqURL, &FetchFailure{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, reqURL, &FetchFailure{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, reqURL, &FetchFailure{URL: reqURL, Err: err}
	}
	return body, reqURL, nil
}

// decodeArrayOrEnvelope decodes either a bare JSON array or {"data": [...]}
// into out.
func decodeArrayOrEnvelope(body []byte, out interface{}) error {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	if envelope.Data == nil {
		return fmt.Errorf("response has neither array body nor data field")
	}
	return json.Unmarshal(envelope.Data, out)
}
