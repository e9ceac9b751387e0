// Package commands describes slash commands and how their names are matched.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands answer only the configured admin and never show in the menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are extra names, with or without the leading slash.
	Aliases []string
}

// Validate reports whether the command can be registered.
func (c Command) Validate() error {
	switch {
	case c.Handler == nil:
		return errors.New("missing handler")
	case strings.TrimSpace(c.Description) == "":
		return errors.New("missing description")
	}
	return nil
}

// InMenu reports whether the command belongs in the public command menu.
func (c Command) InMenu() bool {
	return !c.Hidden && !c.AdminOnly
}

// Endpoints returns the canonical name followed by every alias, normalized and deduplicated.
func (c Command) Endpoints(name string) []string {
	out := []string{Normalize(name)}
	seen := map[string]bool{out[0]: true}
	for _, alias := range c.Aliases {
		n := Normalize(alias)
		if n == "/" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Normalize turns "/Start@tlc_bot now", "start" or " /start " into "/start".
func Normalize(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return "/" + strings.ToLower(strings.TrimPrefix(name, "/"))
}
