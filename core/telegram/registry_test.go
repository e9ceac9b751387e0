package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/tlcclub/tlcbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"new"}}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true}))

	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "again"}))
	assert.Error(t, reg.RegisterCommand("cancel", commands.Command{Handler: noop, Description: "Cancel"}))
	assert.Error(t, reg.RegisterCommand("/x", commands.Command{Description: "no handler"}))

	key, _, ok := reg.LookupCommand("new")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	_, _, ok = reg.LookupCommand("/missing")
	assert.False(t, ok)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "start", visible[0].Text)
	assert.Len(t, reg.ListCommands(false), 2)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("sell", noop))
	require.NoError(t, reg.RegisterCallback("buy", noop))
	assert.Error(t, reg.RegisterCallback("sell", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("buy")
	assert.True(t, ok)
	assert.Equal(t, []string{"buy", "sell"}, reg.ListCallbacks())
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestRegistryFallbacks(t *testing.T) {
	reg := NewRegistry()
	assert.Nil(t, reg.TextFallback())

	called := ""
	reg.SetTextFallback(func(tele.Context) error { called = "text"; return nil })
	reg.SetCallbackNotFound(func(tele.Context) error { called = "callback"; return nil })

	require.NoError(t, reg.TextFallback()(nil))
	assert.Equal(t, "text", called)
	require.NoError(t, reg.CallbackNotFound()(nil))
	assert.Equal(t, "callback", called)
}
