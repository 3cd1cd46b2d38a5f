// Package apperrors определяет пользовательские ошибки,
// которые используются во всех модулях бота и веб-приложения.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package apperrors

import "errors"

// Ошибки леджера (балансы, транзакции)
var (
	// ErrNotFound — аккаунт, транзакция или уровень не найдены
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidState — транзакция уже обработана (не в статусе pending)
	ErrInvalidState = errors.New("транзакция уже обработана")
	// ErrInsufficientFunds — недостаточно средств или нарушены лимиты вывода
	ErrInsufficientFunds = errors.New("недостаточно средств на балансе")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrWithdrawLimit — превышен дневной лимит на вывод
	ErrWithdrawLimit = errors.New("превышен дневной лимит на вывод")
)

// Ошибки реферальной системы
var (
	// ErrSelfReferral — попытка стать рефералом самого себя
	ErrSelfReferral = errors.New("нельзя использовать собственный реферальный код")
	// ErrCircularReferral — реферальная цепочка замкнулась в цикл
	ErrCircularReferral = errors.New("реферальная цепочка образует цикл")
)

// Ошибки магазина
var (
	// ErrUpgradeNotFound — апгрейд не найден в каталоге
	ErrUpgradeNotFound = errors.New("апгрейд не найден")
	// ErrUpgradeMaxLevel — апгрейд уже прокачан до максимума
	ErrUpgradeMaxLevel = errors.New("апгрейд уже максимального уровня")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
