package gmail

// gmailWebBase is the base URL for deep links into the Gmail web interface
const gmailWebBase = "https://mail.google.com/mail/u/0/#all/"

// Message is a simplified view of a Gmail message as used by the
// classification pipeline. The label set is owned by the provider; this
// system only reads it and appends to it.
type Message struct {
	ID       string
	ThreadID string
	Subject  string
	Snippet  string
	LabelIDs []string
}

// Text returns the classification input for the message: subject and
// snippet combined. Truncation to request-size limits is the caller's
// responsibility.
func (m *Message) Text() string {
	if m.Subject == "" {
		return m.Snippet
	}
	if m.Snippet == "" {
		return m.Subject
	}
	return m.Subject + "\n" + m.Snippet
}

// WebLink returns a URL that opens the message in the Gmail web interface.
func (m *Message) WebLink() string {
	return MessageLink(m.ID)
}

// MessageLink returns the Gmail web interface URL for a message ID.
func MessageLink(messageID string) string {
	return gmailWebBase + messageID
}
