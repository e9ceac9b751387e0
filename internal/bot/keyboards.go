package bot

import (
	"github.com/tlcclub/tlcbot/core/telegram/keyboard"
	"github.com/tlcclub/tlcbot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

const (
	labelSell = "Продам"
	labelBuy  = "Куплю"
	labelDone = "Готово"
)

// markup renders the keyboard selected by the dispatcher.
func markup(kb intake.Keyboard) *tele.ReplyMarkup {
	switch kb {
	case intake.KeyboardType:
		return keyboard.InlineButtonsNPerRow([]keyboard.InlineBtn{
			{Text: labelSell, Unique: intake.CallbackSell},
			{Text: labelBuy, Unique: intake.CallbackBuy},
		}, 2)
	case intake.KeyboardDone:
		return keyboard.InlineButtons(keyboard.InlineBtn{Text: labelDone, Unique: intake.CallbackDone})
	case intake.KeyboardRemove:
		return keyboard.RemoveKeyboard()
	}
	return nil
}
