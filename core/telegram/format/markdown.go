package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile(`([_*\[\]()~` + "`" + `>#+\-=|{}.!\\])`)
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// MD escapes text for legacy Markdown. Use it for user-provided fields inside captions.
func MD(text string) string {
	s, _ := EscapeMarkdown(text, MarkdownV1)
	return s
}

// Bold wraps already escaped text in a legacy Markdown bold entity.
func Bold(escaped string) string {
	return "*" + escaped + "*"
}

// Code wraps text in an inline code entity. Backticks inside are dropped.
func Code(text string) string {
	return "`" + backtickRe.ReplaceAllString(text, "") + "`"
}

// Link renders a legacy Markdown link; label is escaped.
func Link(label, url string) string {
	return "[" + MD(label) + "](" + url + ")"
}

var backtickRe = regexp.MustCompile("`")
