package intake

import (
	"fmt"

	"github.com/tlcclub/tlcbot/internal/listing"
)

const (
	textIntro       = "Этот бот поможет Вам правильно оформить объявление для Барахолки TLC"
	textCancelled   = "Создание объявления отменено!\nПриходите еще!"
	textAskTitle    = "Введите название товара"
	textAskDesc     = "Введите описание"
	textAskPhotos   = "Загрузите фотографии"
	textAskPrice    = "Осталось ввести цену"
	textPhotosDone  = "Когда закончите с фотографиями, нажмите «Готово»"
	textPhotoFailed = "Не удалось обработать фото, попробуйте отправить его еще раз"
	textNoPhotos    = "Сначала загрузите хотя бы одну фотографию"
	textBadTitle    = "Название не может быть пустым"
	textBadDesc     = "Описание не может быть пустым"
	textBadPrice    = "Цена должна состоять только из цифр, например 1500"
	textPublished   = "Объявление отправлено модератору. Спасибо!"
	textComposeFail = "Не удалось собрать объявление. Начните заново: /new"
)

func textAlbumFull(limit int) string {
	return fmt.Sprintf("Можно прикрепить не больше %d фотографий. Нажмите «Готово»", limit)
}

func textGreeting(t listing.Type, a listing.Author) string {
	what := "о продаже"
	if t == listing.TypeBuy {
		what = "о покупке"
	}
	return fmt.Sprintf("Привет, %s! Оформляем объявление %s.", a.DisplayName(), what)
}

// prompt is the question asked on entering step.
func prompt(step listing.Step) string {
	switch step {
	case listing.StepAwaitTitle:
		return textAskTitle
	case listing.StepAwaitDescription:
		return textAskDesc
	case listing.StepAwaitPhotos:
		return textAskPhotos
	case listing.StepAwaitPrice:
		return textAskPrice
	}
	return ""
}

// correction is the reply to input rejected at step.
func correction(step listing.Step) string {
	switch step {
	case listing.StepAwaitTitle:
		return textBadTitle
	case listing.StepAwaitDescription:
		return textBadDesc
	case listing.StepAwaitPhotos:
		return textNoPhotos
	case listing.StepAwaitPrice:
		return textBadPrice
	}
	return ""
}
