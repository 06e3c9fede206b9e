package gmail

import (
	"context"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// Label visibility settings for labels created by the pipeline. The label
// shows up in both the label list and the message list, matching a label
// created by hand in the Gmail UI.
const (
	labelListVisibility   = "labelShow"
	messageListVisibility = "show"
)

// ListLabels lists all Gmail labels for the user
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	resp, err := c.svc.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError("list labels", err)
	}
	return resp.Labels, nil
}

// EnsureLabel returns the ID of the label with the given name, creating the
// label if it does not exist. Name matching is case-insensitive, so a label
// the user created as "work" is reused for the category "Work" rather than
// duplicated.
func (c *Client) EnsureLabel(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("label name is required")
	}

	labels, err := c.ListLabels(ctx)
	if err != nil {
		return "", err
	}

	if label := findLabel(labels, name); label != nil {
		return label.Id, nil
	}

	created, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   labelListVisibility,
		MessageListVisibility: messageListVisibility,
	}).Context(ctx).Do()
	if err != nil {
		return "", c.wrapError("create label", err)
	}

	return created.Id, nil
}

// findLabel returns the first label whose name matches case-insensitively,
// or nil if none matches
func findLabel(labels []*gmail.Label, name string) *gmail.Label {
	for _, label := range labels {
		if strings.EqualFold(label.Name, name) {
			return label
		}
	}
	return nil
}

// ApplyLabel adds a label to a message. The operation has set semantics:
// applying a label the message already carries leaves the label set
// unchanged, so re-running the pipeline over the same message is safe.
func (c *Client) ApplyLabel(ctx context.Context, messageID, labelID string) error {
	if messageID == "" {
		return fmt.Errorf("messageID is required")
	}
	if labelID == "" {
		return fmt.Errorf("labelID is required")
	}

	_, err := c.svc.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return c.wrapError("apply label", err)
	}
	return nil
}

// RemoveLabel removes a label from a message. Removing a label the message
// does not carry is a no-op on the provider side.
func (c *Client) RemoveLabel(ctx context.Context, messageID, labelID string) error {
	if messageID == "" {
		return fmt.Errorf("messageID is required")
	}
	if labelID == "" {
		return fmt.Errorf("labelID is required")
	}

	_, err := c.svc.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return c.wrapError("remove label", err)
	}
	return nil
}
