package classify

import (
	"fmt"
	"strings"

	"github.com/mlindner/mailsort/internal/category"
)

// fewShotExamples anchor the model on the stock categories. One example per
// stock category, in category order.
const fewShotExamples = `Below are some examples of email classifications:

Example 1:
Email Subject: Project Deadline Reminder
Email Snippet: Don't forget the deadline for the project is tomorrow.
Category: Work

Example 2:
Email Subject: Family Reunion Invitation
Email Snippet: Looking forward to our family reunion this weekend!
Category: Personal

Example 3:
Email Subject: 50% Off Sale on Shoes!
Email Snippet: Hurry up! Our biggest sale of the year is live now.
Category: Promotions

Example 4:
Email Subject: New Friend Request
Email Snippet: John Doe sent you a friend request on SocialNet.
Category: Social

Example 5:
Email Subject: Account Update Notice
Email Snippet: There is an update on your account settings.
Category: Updates

`

// BuildPrompt constructs the classification prompt for the given email text
// and allowed category set. With no custom instructions the prompt carries
// the few-shot examples; with instructions the caller's text drives the
// classification and the allowed set is stated explicitly.
// The final "Category:" line cues the model to answer with a bare category
// name.
func BuildPrompt(text string, allowed []category.Category, instructions string) string {
	names := category.Names(allowed)

	if instructions != "" {
		return fmt.Sprintf("%s\nAllowed categories: %s.\n"+
			"Return only the word %s as the answer (no extra text).\n\n"+
			"Email:\n%s\n\nCategory:",
			instructions, strings.Join(names, ", "), quotedList(names), text)
	}

	return fmt.Sprintf("%s"+
		"Now, classify the following email into one of these categories: %s.\n\n"+
		"Email:\n%s\n\nCategory:",
		fewShotExamples, strings.Join(names, ", "), text)
}

// quotedList renders category names as 'A', 'B' or 'C' for prompt text
func quotedList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
	}
}
