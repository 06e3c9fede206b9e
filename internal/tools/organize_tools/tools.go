package organize_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/google"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/server"
	"github.com/mlindner/mailsort/internal/tools/batch"
	"github.com/mlindner/mailsort/internal/tools/common"
	"github.com/mlindner/mailsort/internal/trigger"
)

// RegisterOrganizeTools registers the pipeline tools with the MCP server.
// organize_inbox applies labels and is only registered when write mode is
// enabled; the inspection and dry-run tools are always available.
func RegisterOrganizeTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if !readOnly {
		organizeInboxTool := mcp.NewTool("organize_inbox",
			mcp.WithDescription("Classify unread Gmail messages and apply a category label to each. Labels are created on first use; messages stay unread."),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithNumber("maxCount",
				mcp.Description("Maximum number of unread messages to process (default: 100)"),
			),
			mcp.WithString("categories",
				mcp.Description("Comma-separated category names to restrict the run to (default: Work, Personal, Promotions, Social, Updates)"),
			),
			mcp.WithString("instructions",
				mcp.Description("Custom classification instructions replacing the default prompt for this run"),
			),
		)

		s.AddTool(organizeInboxTool, common.InstrumentedToolHandlerWithService(
			"organize_inbox", "gmail", "modify", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleOrganizeInbox(ctx, request, sc)
			}))

		classifyMessagesTool := mcp.NewTool("classify_messages",
			mcp.WithDescription("Classify specific messages by ID and apply the matching category label to each. Failures are reported per message."),
			mcp.WithString("account",
				mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
			),
			mcp.WithString("messageIds",
				mcp.Required(),
				mcp.Description("Message ID (string) or array of message IDs to classify and label"),
			),
			mcp.WithString("categories",
				mcp.Description("Comma-separated category names to restrict the classification to (default: Work, Personal, Promotions, Social, Updates)"),
			),
			mcp.WithString("instructions",
				mcp.Description("Custom classification instructions replacing the default prompt"),
			),
		)

		s.AddTool(classifyMessagesTool, common.InstrumentedToolHandlerWithService(
			"classify_messages", "gmail", "modify", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleClassifyMessages(ctx, request, sc)
			}))
	}

	listUnreadTool := mcp.NewTool("list_unread",
		mcp.WithDescription("List unread Gmail messages with their subject and snippet"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithNumber("maxCount",
			mcp.Description("Maximum number of messages to return (default: 10)"),
		),
	)

	s.AddTool(listUnreadTool, common.InstrumentedToolHandlerWithService(
		"list_unread", "gmail", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUnread(ctx, request, sc)
		}))

	listLabelsTool := mcp.NewTool("list_labels",
		mcp.WithDescription("List the Gmail labels of the account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(listLabelsTool, common.InstrumentedToolHandlerWithService(
		"list_labels", "gmail", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListLabels(ctx, request, sc)
		}))

	classifyTextTool := mcp.NewTool("classify_text",
		mcp.WithDescription("Classify arbitrary text into a category without touching the mailbox. Useful for testing the classifier configuration."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to classify (typically an email subject plus snippet)"),
		),
		mcp.WithString("categories",
			mcp.Description("Comma-separated category names to restrict the classification to (default: Work, Personal, Promotions, Social, Updates)"),
		),
		mcp.WithString("instructions",
			mcp.Description("Custom classification instructions replacing the default prompt"),
		),
	)

	s.AddTool(classifyTextTool, common.InstrumentedToolHandlerWithService(
		"classify_text", "openai", "classify", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClassifyText(ctx, request, sc)
		}))

	return nil
}

// parseCategories resolves the optional "categories" argument into an
// allowed-category restriction. An absent or empty argument means no
// restriction.
func parseCategories(args map[string]interface{}) ([]category.Category, error) {
	catVal, ok := args["categories"].(string)
	if !ok || catVal == "" {
		return nil, nil
	}
	return category.ParseList(catVal)
}

func handleOrganizeInbox(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	var opts pipeline.Options
	if maxVal, ok := args["maxCount"]; ok {
		if maxFloat, ok := maxVal.(float64); ok {
			opts.MaxCount = int64(maxFloat)
		}
	}

	allowed, err := parseCategories(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid categories: %v", err)), nil
	}
	opts.Allowed = allowed

	if instructions, ok := args["instructions"].(string); ok {
		opts.Instructions = instructions
	}

	runner, err := sc.RunnerForAccount(account)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := runner.Run(ctx, opts)
	recordRunMetrics(ctx, sc.Metrics(), report, err)

	if errors.Is(err, trigger.ErrBusy) {
		return mcp.NewToolResultError("A run is already in progress for this account. Try again once it finishes."), nil
	}
	if err != nil {
		if report != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Run stopped after %d message(s): %v", report.Processed, err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to organize inbox: %v", err)), nil
	}

	result := fmt.Sprintf("Organize run complete: %s\n\n%s", report.Summary(), report.String())
	return mcp.NewToolResultText(result), nil
}

func handleClassifyMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	// Parse messageIds - can be string or array
	messageIDs, err := batch.ParseStringOrArray(args["messageIds"], "messageIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts pipeline.Options
	allowed, err := parseCategories(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid categories: %v", err)), nil
	}
	opts.Allowed = allowed

	if instructions, ok := args["instructions"].(string); ok {
		opts.Instructions = instructions
	}

	orchestrator, err := sc.OrchestratorForAccount(account)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client := sc.GmailClientForAccount(account)
	if client == nil {
		return mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account)), nil
	}

	metrics := sc.Metrics()
	results := batch.ProcessBatch(ctx, messageIDs, func(messageID string) (string, error) {
		msg, err := client.GetMessageDetails(ctx, messageID)
		if err != nil {
			return "", err
		}

		outcome := orchestrator.ProcessOne(ctx, msg, opts)
		if outcome.Status != pipeline.StatusLabeled {
			return "", fmt.Errorf("%s", outcome.Error)
		}

		if metrics != nil {
			metrics.RecordClassification(ctx, outcome.Category.String(), instrumentation.StatusSuccess)
			metrics.RecordLabelApplied(ctx, outcome.Category.String())
		}
		return fmt.Sprintf("Message %s classified as %s and labeled", messageID, outcome.Category), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleListUnread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	maxCount := int64(10)
	if maxVal, ok := args["maxCount"]; ok {
		if maxFloat, ok := maxVal.(float64); ok {
			maxCount = int64(maxFloat)
		}
	}

	client := sc.GmailClientForAccount(account)
	if client == nil {
		return mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account)), nil
	}

	messages, err := client.ListUnread(ctx, maxCount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list unread messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText("No unread messages."), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d unread message(s):\n\n", len(messages)))
	for i, msg := range messages {
		subject := msg.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		result.WriteString(fmt.Sprintf("%d. %s\n", i+1, subject))
		result.WriteString(fmt.Sprintf("   ID: %s\n", msg.ID))
		if msg.Snippet != "" {
			result.WriteString(fmt.Sprintf("   Snippet: %s\n", msg.Snippet))
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func handleListLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	client := sc.GmailClientForAccount(account)
	if client == nil {
		return mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account)), nil
	}

	labels, err := client.ListLabels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list labels: %v", err)), nil
	}

	if len(labels) == 0 {
		return mcp.NewToolResultText("No labels found."), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d label(s):\n\n", len(labels)))
	for i, label := range labels {
		result.WriteString(fmt.Sprintf("%d. %s\n", i+1, label.Name))
		result.WriteString(fmt.Sprintf("   ID: %s\n", label.Id))
		if label.Type != "" {
			result.WriteString(fmt.Sprintf("   Type: %s\n", label.Type))
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func handleClassifyText(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return mcp.NewToolResultError("'text' field is required"), nil
	}

	allowed, err := parseCategories(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid categories: %v", err)), nil
	}

	classifier := sc.Classifier()
	if classifier == nil {
		return mcp.NewToolResultError("no classifier configured. Set OPENAI_API_KEY to enable classification"), nil
	}

	instructions, _ := args["instructions"].(string)

	cat, err := classifier.Classify(ctx, text, allowed, instructions)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Classification failed: %v", err)), nil
	}

	if metrics := sc.Metrics(); metrics != nil {
		metrics.RecordClassification(ctx, cat.String(), instrumentation.StatusSuccess)
	}

	return mcp.NewToolResultText(fmt.Sprintf("Classified as: %s", cat)), nil
}

// recordRunMetrics translates a run report into the domain metrics. A busy
// rejection counts as a run with result "busy"; per-message outcomes feed
// the classification and label counters.
func recordRunMetrics(ctx context.Context, metrics *instrumentation.Metrics, report *pipeline.RunReport, err error) {
	if metrics == nil {
		return
	}

	if errors.Is(err, trigger.ErrBusy) {
		metrics.RecordRun(ctx, instrumentation.RunResultBusy, 0, 0)
		return
	}

	result := instrumentation.RunResultSuccess
	if err != nil {
		result = instrumentation.RunResultError
	}
	if report == nil {
		metrics.RecordRun(ctx, result, 0, 0)
		return
	}

	metrics.RecordRun(ctx, result, int64(report.Processed), report.Duration)
	for _, o := range report.Outcomes {
		// A populated category means the classifier produced one, even if
		// labeling failed afterwards.
		if o.Category != "" {
			metrics.RecordClassification(ctx, o.Category.String(), instrumentation.StatusSuccess)
		} else {
			metrics.RecordClassification(ctx, "", instrumentation.StatusError)
		}
		if o.Status == pipeline.StatusLabeled {
			metrics.RecordLabelApplied(ctx, o.Category.String())
		}
	}
}
