package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mlindner/mailsort/internal/mcp/oauth"
	"github.com/mlindner/mailsort/internal/server"
)

// RegisterUserResources registers the read-only mailbox resources,
// mailsort://profile and mailsort://labels, on the MCP server.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profileResource := mcp.NewResource(
		"mailsort://profile",
		"Mailbox Profile",
		mcp.WithResourceDescription("Profile of the authenticated Gmail account"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(ctx, request, sc)
	})

	labelsResource := mcp.NewResource(
		"mailsort://labels",
		"Mailbox Labels",
		mcp.WithResourceDescription("Labels of the authenticated Gmail account, including the category labels the pipeline creates"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(labelsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLabels(ctx, request, sc)
	})

	return nil
}

// extractAccountFromContext resolves which account a resource read is
// about. HTTP transports carry the authenticated user in ctx; the stdio
// transport has no user and reads the default account.
func extractAccountFromContext(ctx context.Context) string {
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		return userInfo.Email
	}
	return "default"
}

// handleProfile returns the Gmail profile of the current account
func handleProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	gmailClient := sc.GmailClientForAccount(account)
	if gmailClient == nil {
		return nil, fmt.Errorf("no Gmail client available for account: %s", account)
	}

	profile, err := gmailClient.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profileData := map[string]interface{}{
		"account":       account,
		"email":         profile.EmailAddress,
		"historyId":     profile.HistoryId,
		"messagesTotal": profile.MessagesTotal,
		"threadsTotal":  profile.ThreadsTotal,
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleLabels returns the label list of the current account
func handleLabels(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	gmailClient := sc.GmailClientForAccount(account)
	if gmailClient == nil {
		return nil, fmt.Errorf("no Gmail client available for account: %s", account)
	}

	labels, err := gmailClient.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	labelData := make([]map[string]interface{}, 0, len(labels))
	for _, label := range labels {
		labelData = append(labelData, map[string]interface{}{
			"id":   label.Id,
			"name": label.Name,
			"type": label.Type,
		})
	}

	jsonData, err := json.MarshalIndent(map[string]interface{}{
		"account": account,
		"labels":  labelData,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal label data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
