package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/start":              "/start",
		"start":               "/start",
		" /Start@tlc_bot now": "/start",
		"NEW":                 "/new",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestEndpointsDeduplicateAliases(t *testing.T) {
	cmd := Command{Aliases: []string{"new", "/new", "/START", ""}}
	assert.Equal(t, []string{"/start", "/new"}, cmd.Endpoints("/start"))
}

func TestValidateAndMenu(t *testing.T) {
	h := func(tele.Context) error { return nil }
	assert.Error(t, Command{Description: "x"}.Validate())
	assert.Error(t, Command{Handler: h, Description: "  "}.Validate())
	assert.NoError(t, Command{Handler: h, Description: "x"}.Validate())

	assert.True(t, Command{}.InMenu())
	assert.False(t, Command{Hidden: true}.InMenu())
	assert.False(t, Command{AdminOnly: true}.InMenu())
}
