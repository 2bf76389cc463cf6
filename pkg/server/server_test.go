package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerprep/pkg/config"
	"careerprep/pkg/handlers"
	"careerprep/pkg/metrics"
	"careerprep/pkg/models"
	"careerprep/pkg/processor"
	"careerprep/pkg/store/sqlstore"
	"careerprep/pkg/templates"
)

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return "Check the onboarding doc first, then ping me.", nil
}

// fixedLeadership lets the cached and the verified answer disagree
type fixedLeadership struct {
	cached   bool
	verified bool
}

func (l fixedLeadership) IsLeader() bool                            { return l.cached }
func (l fixedLeadership) VerifyLeadership(ctx context.Context) bool { return l.verified }

type testServer struct {
	router *mux.Router
	store  *sqlstore.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithLeadership(t, fixedLeadership{cached: true, verified: true})
}

func setupTestServerWithLeadership(t *testing.T, leadership handlers.Leadership) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	st, err := sqlstore.Open(filepath.Join(t.TempDir(), "api.db"), logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := templates.NewEngine()
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.PodID = "api-pod"
	cfg.StoreBackend = "sqlite"
	cfg.Timezone = "UTC"

	proc := processor.NewProcessor(st, stubCompleter{}, engine, processor.NewLogNotifier(logger), cfg, logger, m)
	handler := handlers.NewHandler(st, proc, cfg, logger, leadership)

	ctx := context.Background()
	require.NoError(t, st.SaveMessage(ctx, &models.Message{
		ID:         "msg_1",
		SessionID:  "session_1",
		SenderType: models.SenderTeam,
		SenderName: "Priya Shah",
		SenderRole: "Data Analyst",
		Content:    "Welcome! Pull the repo when you can.",
		SentAt:     time.Now().Add(-time.Hour),
	}))

	return &testServer{router: NewRouter(handler, registry, logger), store: st}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *testServer) submit(t *testing.T, content string) string {
	t.Helper()
	payload, err := json.Marshal(models.SubmitResponseRequest{
		MessageID: "msg_1",
		SessionID: "session_1",
		UserID:    "user_1",
		Content:   content,
	})
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/responses", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode(t, rec)["id"].(string)
}

func TestSubmitAndGetResponse(t *testing.T) {
	s := setupTestServer(t)
	id := s.submit(t, "Thanks, got it!")

	rec := s.do(t, http.MethodGet, "/responses/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "pending", body["processing_status"])
	assert.Equal(t, false, body["processed"])

	rec = s.do(t, http.MethodGet, "/responses/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitResponse_RequiresIdentifiers(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/responses", `{"content":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "required")
}

func TestProcess_SingleResponse(t *testing.T) {
	s := setupTestServer(t)
	id := s.submit(t, "How do I request database access?")

	rec := s.do(t, http.MethodPost, "/process", `{"response_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, id, body["response_id"])
	assert.Equal(t, "auto_response_sent", body["action_taken"])
	assert.Nil(t, body["escalation_reason"])

	rec = s.do(t, http.MethodGet, "/sessions/session_1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode(t, rec)["messages"].([]interface{})
	require.Len(t, messages, 2)
	reply := messages[1].(map[string]interface{})
	assert.Equal(t, "Priya Shah", reply["sender_name"])
	assert.Equal(t, true, reply["is_auto_response"])
}

func TestProcess_EscalationReportsStubNotification(t *testing.T) {
	s := setupTestServer(t)
	id := s.submit(t, "I'm stuck on the setup")

	rec := s.do(t, http.MethodPost, "/process", `{"response_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "escalated", body["action_taken"])
	assert.Equal(t, "Contains keywords indicating intern needs help", body["escalation_reason"])
	assert.Equal(t, "stub", body["notification"])
}

func TestProcess_AlreadyProcessedIsBadRequest(t *testing.T) {
	s := setupTestServer(t)
	id := s.submit(t, "Thanks, got it!")

	rec := s.do(t, http.MethodPost, "/process", `{"response_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/process", `{"response_id":"`+id+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/process", `{"response_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_Batch(t *testing.T) {
	s := setupTestServer(t)
	s.submit(t, "Thanks, got it!")
	s.submit(t, "What should I read first?")

	rec := s.do(t, http.MethodPost, "/process", `{"batch_process":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["processed_count"])
	assert.Equal(t, float64(0), body["failed_count"])
	assert.Len(t, body["processed_responses"], 2)
	assert.Empty(t, body["failed_responses"])

	// An empty body also runs a batch
	rec = s.do(t, http.MethodPost, "/process", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["processed_count"])
}

func TestProcess_InvalidBody(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/process", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode(t, rec)["error"])
}

func TestSeedEndpoints(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPut, "/sessions/session_2", `{"user_id":"user_2","job_title":"QA Intern","company_name":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	session, err := s.store.GetSession(context.Background(), "session_2")
	require.NoError(t, err)
	assert.Equal(t, "Acme", session.CompanyName)

	rec = s.do(t, http.MethodPut, "/profiles/user_2", `{"full_name":"Jordan Lee"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	profile, err := s.store.GetProfile(context.Background(), "user_2")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Lee", profile.FullName)

	rec = s.do(t, http.MethodPost, "/messages", `{"session_id":"session_2","sender_type":"supervisor","content":"Kickoff at 10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["id"])

	rec = s.do(t, http.MethodPost, "/messages", `{"content":"no session"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/messages", `{"session_id":"session_2","sender_type":"intern","content":"Joined the call"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/messages", `{"session_id":"session_2","sender_type":"recruiter","content":"Hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "sender_type")
}

func TestClassifyDeadline(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/deadlines/classify?due=2001-01-01T00:00:00Z&tz=America/New_York", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "overdue", body["urgency"])
	assert.Equal(t, "America/New_York", body["timezone"])
	assert.Nil(t, body["degraded"])

	rec = s.do(t, http.MethodGet, "/deadlines/classify?due=garbage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "urgent", body["urgency"])
	assert.Equal(t, true, body["degraded"])
}

func TestCalendarLink(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/deadlines/calendar?title=Standup&start=2026-11-03T14:00:00Z&provider=outlook", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "outlook", body["provider"])
	assert.True(t, strings.HasPrefix(body["url"].(string), "https://outlook.live.com/calendar/0/deeplink/compose?"))

	rec = s.do(t, http.MethodGet, "/deadlines/calendar?title=Standup&start=2026-11-03T14:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "google", decode(t, rec)["provider"])

	rec = s.do(t, http.MethodGet, "/deadlines/calendar?title=Standup&start=2026-11-03T14:00:00Z&provider=lotus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/deadlines/calendar?title=Standup&start=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadICS(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/deadlines/ics?title=Final+Report&due=2026-10-20T12:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar;charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="final_report_deadline.ics"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "20261020T120000Z")

	rec = s.do(t, http.MethodGet, "/deadlines/ics?title=Final+Report", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBusinessDeadline(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/deadlines/business?days=3&tz=UTC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["days"])
	assert.Contains(t, body["deadline"], "T17:00:00Z")

	due, err := time.Parse(time.RFC3339, body["deadline"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, time.Saturday, due.Weekday())
	assert.NotEqual(t, time.Sunday, due.Weekday())

	rec = s.do(t, http.MethodGet, "/deadlines/business?days=three", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthStatusAndMetrics(t *testing.T) {
	s := setupTestServer(t)
	s.submit(t, "Thanks, got it!")

	rec := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "api-pod", body["pod_id"])
	assert.Equal(t, true, body["is_leader"])
	assert.Equal(t, float64(1), body["pending_responses"])

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "store_operation_duration_seconds")
}

func TestStatus_ReportsVerifiedLeadership(t *testing.T) {
	// the cached flag still says leader but the lock has moved on
	s := setupTestServerWithLeadership(t, fixedLeadership{cached: true, verified: false})

	rec := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["is_leader"])

	rec = s.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["is_leader"])
}
