package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Dispatcher доставляет события игрокам.
type Dispatcher interface {
	// Dispatch отправляет события, не блокируя вызывающего.
	// Ошибки доставки логируются и не возвращаются.
	Dispatch(events ...Event)
}

// TelegramDispatcher шлёт уведомления через Bot API.
type TelegramDispatcher struct {
	api    *tgbotapi.BotAPI
	logger *logrus.Logger
}

func NewTelegramDispatcher(api *tgbotapi.BotAPI, logger *logrus.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{api: api, logger: logger}
}

// Dispatch отправляет события в отдельной горутине.
// Уведомления не критичны: игрок с закрытым чатом не должен
// ронять подтверждение депозита.
func (d *TelegramDispatcher) Dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}
	go func() {
		for _, e := range events {
			msg := tgbotapi.NewMessage(e.Recipient(), e.Message())
			if _, err := d.api.Send(msg); err != nil {
				d.logger.WithFields(logrus.Fields{
					"telegram_id": e.Recipient(),
				}).WithError(err).Warn("Не удалось отправить уведомление")
			}
		}
	}()
}

// NopDispatcher глотает события. Используется в тестах и в веб-приложении,
// когда бот недоступен.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(...Event) {}
