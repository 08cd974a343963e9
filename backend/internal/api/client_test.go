package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradepulse/backend/internal/shared"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(shared.UpstreamConfig{
		BaseURL:        srv.URL,
		APIToken:       "test-token",
		RequestTimeout: 5 * time.Second,
	}, nil)
	return client, srv
}

func TestListGradeRecordsBareArray(t *testing.T) {
	var gotQuery string
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"r1","student_id":"s1","subject_name":"Math","score":88,"max_score":100,"assessment_kind":"assignment"},
			{"id":"r2","student_id":"s1","subject_name":"Math","max_score":100,"assessment_kind":"finalexam"}
		]`))
	}))

	records, err := client.ListGradeRecords(context.Background(), RecordFilter{StudentID: "s1", SubjectName: "Math"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Contains(t, gotQuery, "student_id=s1")
	assert.Contains(t, gotQuery, "subject=Math")

	require.NotNil(t, records[0].Score)
	assert.Equal(t, 88.0, *records[0].Score)
	assert.Nil(t, records[1].Score, "ungraded record keeps a nil score")
}

func TestListGradeRecordsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[{"id":"r1","student_id":"s1","subject_name":"Math","score":70,"max_score":100}]}`))
	}))

	records, err := client.ListGradeRecords(context.Background(), RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
}

func TestListGradeRecordsUpstreamFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListGradeRecords(context.Background(), RecordFilter{})
	require.Error(t, err)

	var ff *FetchFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, http.StatusInternalServerError, ff.StatusCode)
}

func TestFetchChangesDropsUnknownActions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"student_id":"s1","subject_name":"Math","action":"update"},
			{"student_id":"s2","subject_name":"Science","action":"upsert"},
			{"student_id":"s3","subject_name":"English","action":"delete"}
		]`))
	}))

	notes, err := client.FetchChanges(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "s1", notes[0].StudentID)
	assert.Equal(t, "s3", notes[1].StudentID)
}

func TestEnrollmentAnalyticsFlattening(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"families": [
				{
					"family_name": "Okafor",
					"students": [
						{
							"student_id": "s1",
							"student_name": "Amina Okafor",
							"subjects": [
								{
									"id": "e1",
									"subject": "Math",
									"grade_level": "Grade 8",
									"stream": "A",
									"teacher": {"id": "t1", "name": "Mr. Cruz"},
									"overall_grade": 86.5,
									"trend": "up",
									"trend_value": 2.5
								},
								{
									"subject": "Science",
									"teacher": "Ms. Reyes"
								},
								{
									"grade_level": "Grade 8"
								}
							]
						},
						{
							"student_name": "row without id is skipped",
							"subjects": [{"subject": "Math"}]
						}
					]
				}
			]
		}`))
	}))

	rows, err := client.EnrollmentAnalytics(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2, "malformed subject row and id-less student are skipped")

	full := rows[0]
	assert.Equal(t, "e1", full.EnrollmentID)
	assert.Equal(t, "s1", full.StudentID)
	assert.Equal(t, "Amina Okafor", full.StudentName)
	assert.Equal(t, "Math", full.SubjectName)
	assert.Equal(t, "t1", full.Teacher.ID)
	assert.Equal(t, "Mr. Cruz", full.Teacher.Name)
	require.NotNil(t, full.OverallScore)
	assert.Equal(t, 86.5, *full.OverallScore)
	require.NotNil(t, full.TrendValue)
	assert.Equal(t, 2.5, *full.TrendValue)

	sparse := rows[1]
	assert.Equal(t, "Science", sparse.SubjectName)
	assert.Equal(t, "Ms. Reyes", sparse.Teacher.Name, "plain string teacher is accepted")
	assert.Empty(t, sparse.Teacher.ID)
	assert.Nil(t, sparse.OverallScore)
	assert.Nil(t, sparse.TrendValue)
}

func TestEnrollmentAnalyticsEmptyPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	rows, err := client.EnrollmentAnalytics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func validSubmission() shared.ScoreSubmission {
	return shared.ScoreSubmission{
		RecordID:    "r1",
		StudentID:   "s1",
		TeacherID:   "t1",
		SubjectName: "Math",
		Score:       85,
		MaxScore:    100,
		Feedback:    "solid work",
	}
}

func TestSubmitScoreValidatesBeforeNetwork(t *testing.T) {
	hits := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	sub := validSubmission()
	sub.Score = 120 // above max_score

	err := client.SubmitScore(context.Background(), sub)
	require.Error(t, err)

	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, "Score", vf.Field)
	assert.Equal(t, 0, hits, "invalid submission must not reach the network")
}

func TestSubmitScoreRequiredFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))

	sub := validSubmission()
	sub.RecordID = ""

	err := client.SubmitScore(context.Background(), sub)
	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, "RecordID", vf.Field)
}

func TestSubmitScorePatchesRecord(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody shared.ScoreSubmission
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))

	err := client.SubmitScore(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/grades/records/r1", gotPath)
	assert.Equal(t, 85.0, gotBody.Score)
	assert.Equal(t, "solid work", gotBody.Feedback)
}

func TestSubmitScoreUpstreamRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	err := client.SubmitScore(context.Background(), validSubmission())
	var ff *FetchFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, http.StatusNotFound, ff.StatusCode)
}
