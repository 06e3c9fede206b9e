package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/faults"
	"github.com/mlindner/mailsort/internal/gmail"
)

type appliedLabel struct {
	messageID string
	labelID   string
}

// fakeMailbox records calls and serves canned messages
type fakeMailbox struct {
	messages []*gmail.Message
	listErr  error

	ensureErr error
	applyErr  map[string]error // keyed by message ID

	listCalls   []int64
	ensureCalls []string
	applyCalls  []appliedLabel
}

func (f *fakeMailbox) ListUnread(ctx context.Context, maxCount int64) ([]*gmail.Message, error) {
	f.listCalls = append(f.listCalls, maxCount)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int64(len(f.messages)) > maxCount {
		return f.messages[:maxCount], nil
	}
	return f.messages, nil
}

func (f *fakeMailbox) EnsureLabel(ctx context.Context, name string) (string, error) {
	f.ensureCalls = append(f.ensureCalls, name)
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return "Label_" + name, nil
}

func (f *fakeMailbox) ApplyLabel(ctx context.Context, messageID, labelID string) error {
	f.applyCalls = append(f.applyCalls, appliedLabel{messageID: messageID, labelID: labelID})
	if err, ok := f.applyErr[messageID]; ok {
		return err
	}
	return nil
}

type classifyCall struct {
	text         string
	allowed      []category.Category
	instructions string
}

// fakeClassifier returns canned categories keyed by subject line
type fakeClassifier struct {
	results map[string]category.Category // keyed by first line of text
	errs    map[string]error

	calls []classifyCall
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, allowed []category.Category, instructions string) (category.Category, error) {
	f.calls = append(f.calls, classifyCall{text: text, allowed: allowed, instructions: instructions})

	key := text
	if idx := strings.IndexByte(key, '\n'); idx >= 0 {
		key = key[:idx]
	}
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	if cat, ok := f.results[key]; ok {
		return cat, nil
	}
	return "", &faults.ClassifierError{Response: key, Allowed: category.Names(allowed)}
}

func testMessages() []*gmail.Message {
	return []*gmail.Message{
		{ID: "m1", Subject: "Project Deadline Reminder", Snippet: "The deadline is tomorrow."},
		{ID: "m2", Subject: "Family Reunion Invitation", Snippet: "See you this weekend!"},
		{ID: "m3", Subject: "50% Off Sale on Shoes!", Snippet: "Our biggest sale is live."},
	}
}

func newTestOrchestrator(t *testing.T, mailbox Mailbox, classifier Classifier) *Orchestrator {
	t.Helper()
	o, err := New(Config{Mailbox: mailbox, Classifier: classifier})
	require.NoError(t, err)
	return o
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Classifier: &fakeClassifier{}})
	assert.Error(t, err, "New() without a mailbox should fail")

	_, err = New(Config{Mailbox: &fakeMailbox{}})
	assert.Error(t, err, "New() without a classifier should fail")
}

func TestRunLabelsEachClassifiedMessageOnce(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
			"Family Reunion Invitation": category.Personal,
			"50% Off Sale on Shoes!":    category.Promotions,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{MaxCount: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Labeled)
	assert.Equal(t, 0, report.Failed)
	assert.NotEmpty(t, report.RunID)

	// Exactly one ApplyLabel per message, with the label resolved for its
	// category
	require.Len(t, mailbox.applyCalls, 3)
	assert.Equal(t, appliedLabel{messageID: "m1", labelID: "Label_Work"}, mailbox.applyCalls[0])
	assert.Equal(t, appliedLabel{messageID: "m2", labelID: "Label_Personal"}, mailbox.applyCalls[1])
	assert.Equal(t, appliedLabel{messageID: "m3", labelID: "Label_Promotions"}, mailbox.applyCalls[2])
}

func TestRunResolvesEachLabelOnce(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
			"Family Reunion Invitation": category.Work,
			"50% Off Sale on Shoes!":    category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	// Three messages in the same category share one label lookup
	assert.Equal(t, []string{"Work"}, mailbox.ensureCalls)
	assert.Len(t, mailbox.applyCalls, 3)
}

func TestRunPartialFailure(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
			"50% Off Sale on Shoes!":    category.Promotions,
		},
		errs: map[string]error{
			"Family Reunion Invitation": &faults.ClassifierError{
				Response: "Holiday",
				Allowed:  category.Names(category.Stock()),
			},
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{})
	require.NoError(t, err, "one message's failure must not abort the run")

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Labeled)
	assert.Equal(t, 1, report.Failed)

	// The failed message never reaches ApplyLabel
	for _, call := range mailbox.applyCalls {
		assert.NotEqual(t, "m2", call.messageID)
	}

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, StatusLabeled, report.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Contains(t, report.Outcomes[1].Error, "Holiday")
	assert.Equal(t, StatusLabeled, report.Outcomes[2].Status)
}

func TestRunFetchFailureAborts(t *testing.T) {
	mailbox := &fakeMailbox{
		listErr: &faults.AuthError{Op: "list messages", Account: "default", Err: errors.New("token expired")},
	}
	classifier := &fakeClassifier{}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{})

	require.Error(t, err)
	assert.True(t, faults.IsAuth(err))
	assert.Nil(t, report, "a fetch-stage failure yields no report")
	assert.Empty(t, classifier.calls, "nothing is classified when the fetch fails")
	assert.Empty(t, mailbox.applyCalls)
}

func TestRunLabelApplyFailureRecorded(t *testing.T) {
	mailbox := &fakeMailbox{
		messages: testMessages(),
		applyErr: map[string]error{
			"m3": &faults.ProviderError{Op: "apply label", Provider: "gmail", Err: errors.New("message not found")},
		},
	}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
			"Family Reunion Invitation": category.Personal,
			"50% Off Sale on Shoes!":    category.Promotions,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Labeled)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Outcomes[2].Error, "message not found")
}

func TestRunEnsureLabelFailureRecorded(t *testing.T) {
	mailbox := &fakeMailbox{
		messages:  testMessages()[:1],
		ensureErr: &faults.ProviderError{Op: "create label", Provider: "gmail", Err: errors.New("quota exceeded")},
	}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Labeled)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, mailbox.applyCalls, "no label is applied when the lookup fails")
}

func TestRunRestrictedCategories(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()[:1]}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	allowed := []category.Category{category.Work, category.Social}
	_, err := o.Run(context.Background(), Options{Allowed: allowed})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, allowed, classifier.calls[0].allowed, "the restriction must reach the classifier")
}

func TestRunInstructionsReachClassifier(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()[:1]}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	_, err := o.Run(context.Background(), Options{Instructions: "Treat anything from my boss as Work."})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, "Treat anything from my boss as Work.", classifier.calls[0].instructions)
	assert.Equal(t, category.Stock(), classifier.calls[0].allowed,
		"instructions without a restriction keep the stock set")
}

func TestRunInstructionsNarrowCategories(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()[:1]}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	_, err := o.Run(context.Background(), Options{Instructions: "Only sort into Work and Personal."})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, []category.Category{category.Work, category.Personal}, classifier.calls[0].allowed)
}

func TestRunExplicitAllowedBeatsInstructions(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()[:1]}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	allowed := []category.Category{category.Work, category.Updates}
	_, err := o.Run(context.Background(), Options{
		Allowed:      allowed,
		Instructions: "Only sort into Social.",
	})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, allowed, classifier.calls[0].allowed)
}

func TestRunDefaults(t *testing.T) {
	mailbox := &fakeMailbox{}
	classifier := &fakeClassifier{}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, mailbox.listCalls, 1)
	assert.Equal(t, int64(DefaultMaxCount), mailbox.listCalls[0])
	assert.Equal(t, 0, report.Processed)
}

func TestRunTruncatesClassificationInput(t *testing.T) {
	longSnippet := strings.Repeat("a", 5000)
	mailbox := &fakeMailbox{
		messages: []*gmail.Message{{ID: "m1", Subject: "Long", Snippet: longSnippet}},
	}
	classifier := &fakeClassifier{
		results: map[string]category.Category{"Long": category.Updates},
	}

	o, err := New(Config{Mailbox: mailbox, Classifier: classifier, MaxTextLength: 100})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.LessOrEqual(t, len(classifier.calls[0].text), 100)
}

func TestRunCancellationStopsBeforeNextMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mailbox := &fakeMailbox{messages: testMessages()}
	classifier := &cancellingClassifier{cancel: cancel}
	o := newTestOrchestrator(t, mailbox, classifier)

	report, err := o.Run(ctx, Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "cancellation returns the partial report")
	assert.Equal(t, 1, report.Processed, "the run stops before the next message")
}

// cancellingClassifier cancels the run while handling the first message
type cancellingClassifier struct {
	cancel context.CancelFunc
}

func (c *cancellingClassifier) Classify(ctx context.Context, text string, allowed []category.Category, instructions string) (category.Category, error) {
	c.cancel()
	return category.Work, nil
}

func TestRunLabelNameOverride(t *testing.T) {
	mailbox := &fakeMailbox{messages: testMessages()[:1]}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}

	o, err := New(Config{
		Mailbox:    mailbox,
		Classifier: classifier,
		LabelNames: map[category.Category]string{category.Work: "Office"},
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Office"}, mailbox.ensureCalls)
	require.Len(t, mailbox.applyCalls, 1)
	assert.Equal(t, "Label_Office", mailbox.applyCalls[0].labelID)
}

func TestProcessOne(t *testing.T) {
	mailbox := &fakeMailbox{}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	msg := testMessages()[0]
	outcome := o.ProcessOne(context.Background(), msg, Options{})

	assert.Equal(t, StatusLabeled, outcome.Status)
	assert.Equal(t, category.Work, outcome.Category)
	assert.Equal(t, "m1", outcome.MessageID)

	require.Len(t, mailbox.applyCalls, 1)
	assert.Equal(t, appliedLabel{messageID: "m1", labelID: "Label_Work"}, mailbox.applyCalls[0])

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, category.Stock(), classifier.calls[0].allowed,
		"empty options fall back to the stock set")
}

func TestProcessOneRestricted(t *testing.T) {
	mailbox := &fakeMailbox{}
	classifier := &fakeClassifier{
		results: map[string]category.Category{
			"Project Deadline Reminder": category.Work,
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	allowed := []category.Category{category.Work, category.Updates}
	o.ProcessOne(context.Background(), testMessages()[0], Options{Allowed: allowed})

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, allowed, classifier.calls[0].allowed)
}

func TestProcessOneClassificationFailure(t *testing.T) {
	mailbox := &fakeMailbox{}
	classifier := &fakeClassifier{
		errs: map[string]error{
			"Mystery Mail": &faults.ClassifierError{
				Response: "Junk",
				Allowed:  category.Names(category.Stock()),
			},
		},
	}
	o := newTestOrchestrator(t, mailbox, classifier)

	msg := &gmail.Message{ID: "m9", Subject: "Mystery Mail", Snippet: "???"}
	outcome := o.ProcessOne(context.Background(), msg, Options{})

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "Junk")
	assert.Empty(t, mailbox.applyCalls, "a failed classification never labels")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than bound", "hello", 10, "hello"},
		{"exact bound", "hello", 5, "hello"},
		{"cut at bound", "hello world", 5, "hello"},
		{"multi-byte rune not split", "héllo", 2, "h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.max))
		})
	}
}

func TestReportLines(t *testing.T) {
	report := &RunReport{}
	report.record(Outcome{MessageID: "m1", Subject: "Weekly Update", Category: category.Updates, Status: StatusLabeled})
	report.record(Outcome{MessageID: "m2", Subject: "Mystery Mail", Status: StatusFailed, Error: "classifier response \"Spam\" matches none of [Work Personal Promotions Social Updates]"})

	lines := report.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Email 'Weekly Update' classified as Updates and labeled.", lines[0])
	assert.Contains(t, lines[1], "Email 'Mystery Mail' failed:")

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Labeled)
	assert.Equal(t, 1, report.Failed)
}

func TestReportLinesEmpty(t *testing.T) {
	report := &RunReport{}
	assert.Equal(t, []string{"No messages found."}, report.Lines())
	assert.Equal(t, "No messages found.", report.String())
}
