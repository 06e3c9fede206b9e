package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// unreadQuery selects messages the pipeline should process
const unreadQuery = "is:unread"

// ListUnread lists unread messages with subject and snippet populated.
// It will fetch up to maxCount messages, making multiple API calls if
// necessary. Ordering is provider-defined, not guaranteed chronological.
func (c *Client) ListUnread(ctx context.Context, maxCount int64) ([]*Message, error) {
	return c.listByQuery(ctx, unreadQuery, nil, maxCount)
}

// ListMessagesWithLabel lists messages carrying the given label ID, with
// subject and snippet populated.
func (c *Client) ListMessagesWithLabel(ctx context.Context, labelID string, maxCount int64) ([]*Message, error) {
	if labelID == "" {
		return nil, fmt.Errorf("labelID is required")
	}
	return c.listByQuery(ctx, "", []string{labelID}, maxCount)
}

// listByQuery lists message stubs matching the query and/or label IDs and
// populates each from the full message. A failure at any point aborts the
// listing; partial-failure handling is the caller's concern per message,
// not per fetch.
func (c *Client) listByQuery(ctx context.Context, q string, labelIDs []string, maxCount int64) ([]*Message, error) {
	var stubs []*gmail.Message
	pageToken := ""

	for {
		remaining := maxCount - int64(len(stubs))
		if remaining <= 0 {
			break
		}

		// Gmail API has a max page size, typically 100
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Messages.List("me").MaxResults(pageSize)
		if q != "" {
			req = req.Q(q)
		}
		if len(labelIDs) > 0 {
			req = req.LabelIds(labelIDs...)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Context(ctx).Do()
		if err != nil {
			return nil, c.wrapError("list messages", err)
		}

		stubs = append(stubs, res.Messages...)

		if res.NextPageToken == "" || int64(len(stubs)) >= maxCount {
			break
		}

		pageToken = res.NextPageToken
	}

	// Trim to exact maxCount if we got more
	if int64(len(stubs)) > maxCount {
		stubs = stubs[:maxCount]
	}

	// The list endpoint only returns IDs; fetch each message for its
	// subject, snippet and label set.
	messages := make([]*Message, 0, len(stubs))
	for _, stub := range stubs {
		msg, err := c.svc.Messages.Get("me", stub.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, c.wrapError("get message", err)
		}
		messages = append(messages, messageFromAPI(msg))
	}

	return messages, nil
}

// GetMessage retrieves a full Gmail message
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	msg, err := c.svc.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError("get message", err)
	}
	return msg, nil
}

// GetMessageDetails retrieves the simplified view of a single message
func (c *Client) GetMessageDetails(ctx context.Context, messageID string) (*Message, error) {
	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return messageFromAPI(msg), nil
}

// messageFromAPI converts a Gmail API message to the pipeline's view
func messageFromAPI(msg *gmail.Message) *Message {
	return &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  HeaderValue(msg, "Subject"),
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
	}
}

// HeaderValue extracts a header value from a Gmail message.
// Header names are matched case-insensitively per RFC 5322.
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if strings.EqualFold(mph.Name, header) {
			return mph.Value
		}
	}
	return ""
}

// GetMessageBody extracts the text or HTML body from a message
func (c *Client) GetMessageBody(ctx context.Context, messageID string, format string) (string, error) {
	if format == "" {
		format = "text"
	}

	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return "", err
	}

	return ExtractBody(msg, format)
}

// ExtractBody extracts and decodes the body of the given MIME format from
// an already-fetched message.
func ExtractBody(msg *gmail.Message, format string) (string, error) {
	var targetMimeType string
	switch format {
	case "text":
		targetMimeType = "text/plain"
	case "html":
		targetMimeType = "text/html"
	default:
		return "", fmt.Errorf("invalid format %s, must be 'text' or 'html'", format)
	}

	// First, try to find the body in the main payload
	var body string
	if msg.Payload != nil {
		if msg.Payload.MimeType == targetMimeType && msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
			body = msg.Payload.Body.Data
		} else {
			// Walk through parts to find the body
			walkParts(msg.Payload, func(part *gmail.MessagePart) {
				if body == "" && part.MimeType == targetMimeType && part.Body != nil && part.Body.Data != "" {
					body = part.Body.Data
				}
			})
		}
	}

	if body == "" {
		return "", fmt.Errorf("no %s body found in message", format)
	}

	// Decode base64url-encoded body data
	decoded, err := base64.URLEncoding.DecodeString(body)
	if err != nil {
		// Try with standard base64 if URLEncoding fails
		decoded, err = base64.StdEncoding.DecodeString(body)
		if err != nil {
			return "", fmt.Errorf("failed to decode message body: %w", err)
		}
	}

	return string(decoded), nil
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}
