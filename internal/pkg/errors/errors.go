package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены (попытка, вопрос, конфигурация).
	ErrNotFound = errors.New("record not found")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния
	// (например, submitAnswer по ещё не начатой попытке или повторный start).
	ErrConflict = errors.New("resource state conflict")

	// ErrAttemptExpired используется, когда срок действия попытки (expires_at) истёк.
	ErrAttemptExpired = errors.New("exam attempt is expired")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия
	// (например, доступ к чужой попытке).
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict используется при неудачной оптимистичной блокировке:
	// запись была изменена параллельным запросом между чтением и записью.
	ErrVersionConflict = errors.New("optimistic version conflict")
)
