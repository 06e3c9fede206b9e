package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	gmail_v1 "google.golang.org/api/gmail/v1"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/gmail"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/server"
	"github.com/mlindner/mailsort/internal/trigger"
)

type fakeMailbox struct {
	labels    []*gmail_v1.Label
	labelsErr error

	messages    map[string][]*gmail.Message
	messagesErr error

	details map[string]*gmail.Message
	bodies  map[string]string
}

func (f *fakeMailbox) ListLabels(ctx context.Context) ([]*gmail_v1.Label, error) {
	if f.labelsErr != nil {
		return nil, f.labelsErr
	}
	return f.labels, nil
}

func (f *fakeMailbox) ListMessagesWithLabel(ctx context.Context, labelID string, maxCount int64) ([]*gmail.Message, error) {
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	msgs := f.messages[labelID]
	if int64(len(msgs)) > maxCount {
		msgs = msgs[:maxCount]
	}
	return msgs, nil
}

func (f *fakeMailbox) GetMessageDetails(ctx context.Context, messageID string) (*gmail.Message, error) {
	msg, ok := f.details[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeMailbox) GetMessageBody(ctx context.Context, messageID string, format string) (string, error) {
	body, ok := f.bodies[messageID]
	if !ok {
		return "", errors.New("no text body found in message")
	}
	return body, nil
}

type fakeTrigger struct {
	report *pipeline.RunReport
	err    error

	last  *pipeline.RunReport
	calls []pipeline.Options
}

func (f *fakeTrigger) Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunReport, error) {
	f.calls = append(f.calls, opts)
	if f.err == nil && f.report != nil {
		f.last = f.report
	}
	return f.report, f.err
}

func (f *fakeTrigger) LastReport() *pipeline.RunReport {
	return f.last
}

func sampleReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		RunID:     "run-1",
		Processed: 2,
		Labeled:   1,
		Failed:    1,
		Outcomes: []pipeline.Outcome{
			{MessageID: "m1", Subject: "Quarterly Report", Category: category.Work, Status: pipeline.StatusLabeled},
			{MessageID: "m2", Subject: "Mystery Mail", Status: pipeline.StatusFailed, Error: "classifier response matches no allowed category"},
		},
	}
}

func newTestRouter(t *testing.T, mailbox Mailbox, runner RunTrigger) *Router {
	t.Helper()
	router, err := NewRouter(Config{Mailbox: mailbox, Runner: runner})
	require.NoError(t, err)
	return router
}

func get(router *Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.Engine.ServeHTTP(w, req)
	return w
}

func postForm(router *Router, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.Engine.ServeHTTP(w, req)
	return w
}

func TestNewRouterValidation(t *testing.T) {
	_, err := NewRouter(Config{Runner: &fakeTrigger{}})
	assert.Error(t, err, "NewRouter() without a mailbox should fail")

	_, err = NewRouter(Config{Mailbox: &fakeMailbox{}})
	assert.Error(t, err, "NewRouter() without a runner should fail")
}

func TestIndexWithoutReport(t *testing.T) {
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{})

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Organize inbox")
	assert.Contains(t, w.Body.String(), `name="custom_prompt"`)
	assert.NotContains(t, w.Body.String(), "Last run")
}

func TestIndexShowsLastReport(t *testing.T) {
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{last: sampleReport()})

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Last run")
	assert.Contains(t, w.Body.String(), "processed 2, labeled 1, failed 1")
	assert.Contains(t, w.Body.String(), "classified as Work and labeled")
}

func TestRunPassesOptions(t *testing.T) {
	runner := &fakeTrigger{report: sampleReport()}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{
		"max_count":     {"5"},
		"categories":    {"work, social"},
		"custom_prompt": {"Anything from my manager is Work."},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processed 2, labeled 1, failed 1")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, int64(5), runner.calls[0].MaxCount)
	assert.Equal(t, []category.Category{category.Work, category.Social}, runner.calls[0].Allowed)
	assert.Equal(t, "Anything from my manager is Work.", runner.calls[0].Instructions)
}

func TestRunEmptyFormUsesDefaults(t *testing.T) {
	runner := &fakeTrigger{report: &pipeline.RunReport{RunID: "run-2"}}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, pipeline.Options{}, runner.calls[0], "unset form fields stay zero for the trigger to fill")
}

func TestRunBusyAnswersConflict(t *testing.T) {
	runner := &fakeTrigger{err: trigger.ErrBusy}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
}

func TestRunFailureShowsPartialReport(t *testing.T) {
	partial := &pipeline.RunReport{RunID: "run-3", Processed: 1, Labeled: 1,
		Outcomes: []pipeline.Outcome{
			{MessageID: "m1", Subject: "Quarterly Report", Category: category.Work, Status: pipeline.StatusLabeled},
		}}
	runner := &fakeTrigger{report: partial, err: context.Canceled}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Run failed")
	assert.Contains(t, w.Body.String(), "processed 1, labeled 1, failed 0")
}

func TestRunRejectsBadMaxCount(t *testing.T) {
	runner := &fakeTrigger{}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{"max_count": {"many"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "positive number")
	assert.Empty(t, runner.calls, "an invalid form must not start a run")
}

func TestRunRejectsUnknownCategory(t *testing.T) {
	runner := &fakeTrigger{}
	router := newTestRouter(t, &fakeMailbox{}, runner)

	w := postForm(router, "/run", url.Values{"categories": {"Spam"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown category")
	assert.Empty(t, runner.calls)
}

func TestFoldersListsLabels(t *testing.T) {
	mailbox := &fakeMailbox{
		labels: []*gmail_v1.Label{
			{Id: "Label_1", Name: "Work", Type: "user"},
			{Id: "INBOX", Name: "INBOX", Type: "system"},
		},
	}
	router := newTestRouter(t, mailbox, &fakeTrigger{})

	w := get(router, "/folders")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `/folders/Label_1`)
	assert.Contains(t, w.Body.String(), "Work")
	assert.Contains(t, w.Body.String(), "INBOX")
}

func TestFoldersEmpty(t *testing.T) {
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{})

	w := get(router, "/folders")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No labels found.")
}

func TestFoldersError(t *testing.T) {
	mailbox := &fakeMailbox{labelsErr: errors.New("token expired")}
	router := newTestRouter(t, mailbox, &fakeTrigger{})

	w := get(router, "/folders")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestFolderListsMessages(t *testing.T) {
	mailbox := &fakeMailbox{
		labels: []*gmail_v1.Label{{Id: "Label_1", Name: "Work", Type: "user"}},
		messages: map[string][]*gmail.Message{
			"Label_1": {
				{ID: "m1", Subject: "Quarterly Report", Snippet: "numbers inside"},
				{ID: "m2", Snippet: "no subject here"},
			},
		},
	}
	router := newTestRouter(t, mailbox, &fakeTrigger{})

	w := get(router, "/folders/Label_1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h2>Work</h2>", "the label name becomes the heading")
	assert.Contains(t, w.Body.String(), "Quarterly Report")
	assert.Contains(t, w.Body.String(), `/messages/m1`)
	assert.Contains(t, w.Body.String(), "(no subject)")
}

func TestFolderHeadingFallsBackToID(t *testing.T) {
	// No label catalog entry matches, so the raw ID becomes the heading.
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{})

	w := get(router, "/folders/Label_9")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Label_9")
	assert.Contains(t, w.Body.String(), "No messages in this folder.")
}

func TestFolderRejectsBadMaxCount(t *testing.T) {
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{})

	w := get(router, "/folders/Label_1?maxCount=-1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "maxCount must be a positive number")
}

func TestMessageView(t *testing.T) {
	mailbox := &fakeMailbox{
		details: map[string]*gmail.Message{
			"m1": {ID: "m1", Subject: "Quarterly Report", Snippet: "numbers inside"},
		},
		bodies: map[string]string{"m1": "The quarter closed above plan."},
	}
	router := newTestRouter(t, mailbox, &fakeTrigger{})

	w := get(router, "/messages/m1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Quarterly Report")
	assert.Contains(t, w.Body.String(), "The quarter closed above plan.")
	assert.Contains(t, w.Body.String(), "mail.google.com/mail/u/0/#all/m1")
}

func TestMessageViewWithoutBodyShowsSnippet(t *testing.T) {
	mailbox := &fakeMailbox{
		details: map[string]*gmail.Message{
			"m1": {ID: "m1", Subject: "Quarterly Report", Snippet: "numbers inside"},
		},
	}
	router := newTestRouter(t, mailbox, &fakeTrigger{})

	w := get(router, "/messages/m1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "numbers inside")
}

func TestMessageViewNotFound(t *testing.T) {
	router := newTestRouter(t, &fakeMailbox{}, &fakeTrigger{})

	w := get(router, "/messages/gone")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "message not found")
}

func TestHealthRoutes(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), nil, server.RunConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	checker := server.NewHealthChecker(sc)
	router, err := NewRouter(Config{
		Mailbox: &fakeMailbox{},
		Runner:  &fakeTrigger{},
		Health:  checker,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(router, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(router, "/healthz/detailed").Code)

	checker.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/readyz").Code)
}

func TestRequestMetricsMiddleware(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := instrumentation.NewMetrics(meter, false)
	require.NoError(t, err)

	runner := &fakeTrigger{report: sampleReport()}
	router, err := NewRouter(Config{
		Mailbox: &fakeMailbox{},
		Runner:  runner,
		Metrics: metrics,
	})
	require.NoError(t, err)

	// Both the middleware and the run recording execute against the noop
	// meter without touching a collector.
	assert.Equal(t, http.StatusOK, get(router, "/").Code)
	assert.Equal(t, http.StatusOK, postForm(router, "/run", url.Values{}).Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/nope").Code)
}
