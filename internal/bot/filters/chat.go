// Package filters ограничивает, откуда бот принимает сообщения.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только личные сообщения.
// Все игровые операции привязаны к одному игроку, в группах боту делать нечего.
type ChatFilter struct{}

func NewChatFilter() *ChatFilter {
	return &ChatFilter{}
}

// CheckAccess сообщает, можно ли обрабатывать сообщение.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message.Chat == nil || !message.Chat.IsPrivate() {
		if message.Chat != nil {
			log.WithField("chat_id", message.Chat.ID).Debug("Сообщение не из личного чата, игнорируем")
		}
		return false
	}
	return true
}
