package telegram

import (
	"errors"
	"regexp"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// sanitizeToken hides bot tokens embedded in API URLs.
func sanitizeToken(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

func sanitizeErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(sanitizeToken(err.Error()))
}
