package handler

import (
	"errors"

	"github.com/tfinance/tfinance-api/internal/service"
	"github.com/tfinance/tfinance-api/internal/validation"
)

// Client-facing texts. The web client sorts errors into form fields by
// keywords in these messages, so they stay in Russian.
const (
	msgBadRequestBody   = "Неверный формат данных"
	msgBodyTooLarge     = "Слишком большой запрос"
	msgUnauthorized     = "Не удалось определить пользователя"
	msgInternalError    = "Внутренняя ошибка сервера"
	msgLoginSuccess     = "Успех"
	msgLoggedOut        = "Вы вышли из аккаунта"
	msgTokenValid       = "Токен валиден"
	msgInvalidAccountID = "Некорректный идентификатор счета"
	msgDeprecated       = "Этот endpoint устарел. Используйте /api/payment/create для создания платежа через YooKassa"
	msgWebhookProcessed = "Webhook обработан"
)

var errorMessages = []struct {
	err error
	msg string
}{
	{service.ErrUserExists, "Пользователь с таким Email или Login уже зарегистрирован."},
	{service.ErrInvalidCredentials, "Неверный логин или пароль"},
	{service.ErrEmailNotConfirmed, "Email адрес не подтвержден. Пожалуйста, проверьте вашу почту и перейдите по ссылке для подтверждения."},
	{service.ErrTokenMissing, "Токен отсутствует"},
	{service.ErrTokenInvalid, "Токен недействителен"},
	{service.ErrTokenExpired, "Срок действия токена истек"},
	{service.ErrUserNotFound, "Пользователя не существует"},
	{service.ErrAlreadyPremium, "У вас уже есть Premium подписка"},
	{service.ErrInvalidWebhook, "Некорректное уведомление о платеже"},
	{service.ErrPaymentNotFound, "Платеж не найден"},
	{service.ErrForbidden, "Доступ запрещен"},
	{service.ErrGatewayUnavailable, "Платежный сервис недоступен. Попробуйте позже."},
	{service.ErrAccountNotFound, "Банковский счет не найден"},
	{service.ErrPremiumRequired, "Требуется Premium подписка"},
	{service.ErrFileNotFound, "Файл не найден"},
}

// clientMessage returns the text shown to the client for a 4xx/502 error.
func clientMessage(err error) string {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return ve.Message
	}
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
