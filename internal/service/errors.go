// errors.go — ошибки бизнес-логики сервисного слоя.
//
// Базовые виды ошибок (ErrNotFound, ErrValidation, ...) используются
// обработчиками для выбора HTTP-статуса. Конкретные ошибки оборачивают
// вид, поэтому errors.Is работает на обоих уровнях.
package service

import (
	"errors"
	"fmt"
)

// Виды ошибок.
var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrUnauthorized — у актора нет прав на операцию.
	ErrUnauthorized = errors.New("недостаточно прав")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrRateLimited — превышен лимит изменяющих вызовов в окне.
	ErrRateLimited = errors.New("превышен лимит вызовов")
	// ErrConflict — операция противоречит текущему состоянию.
	ErrConflict = errors.New("конфликт состояния")
	// ErrExpired — срок действия отложенной операции истёк.
	ErrExpired = errors.New("срок действия операции истёк")
	// ErrPaused — протокол приостановлен администратором.
	ErrPaused = errors.New("протокол приостановлен")
	// ErrHashMismatch — предъявленный хеш не совпадает с сохранённым.
	ErrHashMismatch = errors.New("хеш не совпадает")
)

// Конкретные ошибки.
var (
	ErrRecordNotFound    = fmt.Errorf("%w: запись не найдена", ErrNotFound)
	ErrOperationNotFound = fmt.Errorf("%w: операция не найдена", ErrNotFound)
	ErrNoAttestation     = fmt.Errorf("%w: у записи нет аттестации", ErrNotFound)

	ErrInvalidName         = fmt.Errorf("%w: название должно содержать от 1 до 64 символов", ErrValidation)
	ErrInvalidSize         = fmt.Errorf("%w: размер должен быть от 1 до 999999999", ErrValidation)
	ErrInvalidDetails      = fmt.Errorf("%w: описание должно содержать от 1 до 128 символов", ErrValidation)
	ErrInvalidCategoryList = fmt.Errorf("%w: от 1 до 10 категорий по 1–32 символа", ErrValidation)
	ErrInvalidLevel        = fmt.Errorf("%w: недопустимый уровень доступа", ErrValidation)
	ErrInvalidMethod       = fmt.Errorf("%w: недопустимый метод хеширования, допустимые: sha256, keccak256", ErrValidation)
	ErrInvalidHash         = fmt.Errorf("%w: хеш должен содержать от 1 до 128 символов", ErrValidation)
	ErrInvalidActor        = fmt.Errorf("%w: идентичность участника не может быть пустой", ErrValidation)
	ErrInvalidReason       = fmt.Errorf("%w: причина паузы не длиннее 128 символов", ErrValidation)
	ErrInvalidLimits       = fmt.Errorf("%w: окно и максимум должны быть не меньше 1", ErrValidation)

	ErrAlreadyPending  = fmt.Errorf("%w: у записи уже есть ожидающая передача", ErrConflict)
	ErrNotPending      = fmt.Errorf("%w: операция уже завершена", ErrConflict)
	ErrAlreadyAttested = fmt.Errorf("%w: запись уже аттестована", ErrConflict)
	ErrStaleOperation  = fmt.Errorf("%w: владелец записи изменился после планирования", ErrConflict)
)
