package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Rule pairs a match predicate with its handler.
type Rule struct {
	Name   string
	Match  func(c tele.Context) bool
	Handle tele.HandlerFunc
}

// Dispatch returns a handler that runs the first matching rule in order.
// Updates matching no rule are logged as skipped and acknowledged.
func Dispatch(rules ...Rule) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		for _, r := range rules {
			if r.Match == nil || r.Handle == nil || !r.Match(c) {
				continue
			}
			return handleWithSummary(c, normalizeHandlerName(r.Name), start, r.Handle)
		}
		logHandlerSummary(c, "unmatched", start, "skip", nil)
		return nil
	}
}

// TextPrefix matches messages whose text starts with prefix.
func TextPrefix(prefix string) func(tele.Context) bool {
	return func(c tele.Context) bool {
		msg := c.Message()
		return msg != nil && strings.HasPrefix(msg.Text, prefix)
	}
}

// TextEquals matches messages whose text is exactly text.
func TextEquals(text string) func(tele.Context) bool {
	return func(c tele.Context) bool {
		msg := c.Message()
		return msg != nil && msg.Text == text
	}
}

// HasLocation matches messages carrying a location attachment.
func HasLocation(c tele.Context) bool {
	msg := c.Message()
	return msg != nil && msg.Location != nil
}
