package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/http"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitcontract",
		iconEmoji:  ":test_tube:",
		client:     http.NewClient(http.WithTimeout(10 * time.Second)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

// slackMessage represents a Slack webhook message
type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackAttachment represents a Slack message attachment
type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

// slackField represents a field in a Slack attachment
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(summary *RunSummary) error {
	color := "good"
	title := "All tests passed!"
	emoji := ":white_check_mark:"

	if summary.Failed() {
		color = "danger"
		title = fmt.Sprintf("%d test(s) failed", summary.FailedTests+summary.ErroredTests)
		emoji = ":x:"
	} else if summary.IsRecovery {
		title = "Tests recovered!"
		emoji = ":tada:"
	}
	if summary.Suite != "" {
		title = summary.Suite + ": " + title
	}

	fields := []slackField{
		{Title: "Total Tests", Value: strconv.Itoa(summary.TotalTests), Short: true},
		{Title: "Passed", Value: strconv.Itoa(summary.PassedTests), Short: true},
		{Title: "Mismatched", Value: strconv.Itoa(summary.FailedTests), Short: true},
		{Title: "Errored", Value: strconv.Itoa(summary.ErroredTests), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}

	var text strings.Builder
	if len(summary.FailedResults) > 0 {
		text.WriteString("*Failed tests:*\n")
		for _, ft := range summary.FailedResults {
			fmt.Fprintf(&text, "• `%s` (%s)\n", ft.Name, ft.Category)
			for _, err := range ft.Errors {
				fmt.Fprintf(&text, "  - %s\n", err)
			}
		}
	}

	attachment := slackAttachment{
		Color:  color,
		Title:  fmt.Sprintf("%s %s", emoji, title),
		Text:   text.String(),
		Fields: fields,
		Footer: "hitcontract run " + summary.RunID,
		TS:     time.Now().Unix(),
	}

	msg := slackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   s.iconEmoji,
		Attachments: []slackAttachment{attachment},
	}

	return s.send(msg)
}

func (s *SlackNotifier) send(msg slackMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, data, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, resp.BodyString())
	}

	return nil
}
