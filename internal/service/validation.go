// validation.go — проверка границ полей записи и аргументов операций.
// Длины считаются в символах Unicode, а не в байтах.
package service

import (
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// Границы полей.
const (
	MaxNameLen     = 64
	MaxDetailsLen  = 128
	MaxCategories  = 10
	MaxCategoryLen = 32
	MaxSize        = 1_000_000_000
	MaxHashLen     = 128
	MaxReasonLen   = 128
)

// Методы хеширования аттестации.
const (
	MethodSHA256    = "sha256"
	MethodKeccak256 = "keccak256"
)

// ValidateFields проверяет все изменяемые поля записи.
func ValidateFields(f model.RecordFields) error {
	if n := utf8.RuneCountInString(f.Name); n < 1 || n > MaxNameLen {
		return ErrInvalidName
	}
	if f.Size < 1 || f.Size >= MaxSize {
		return ErrInvalidSize
	}
	if n := utf8.RuneCountInString(f.Details); n < 1 || n > MaxDetailsLen {
		return ErrInvalidDetails
	}
	return validateCategories(f.Categories)
}

func validateCategories(categories []string) error {
	if len(categories) < 1 || len(categories) > MaxCategories {
		return ErrInvalidCategoryList
	}
	for _, c := range categories {
		if n := utf8.RuneCountInString(c); n < 1 || n > MaxCategoryLen {
			return ErrInvalidCategoryList
		}
	}
	return nil
}

// validateActor проверяет идентичность участника, переданную аргументом.
func validateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrInvalidActor
	}
	return nil
}

// validateHash проверяет непрозрачное значение хеша.
func validateHash(hash string) error {
	if n := utf8.RuneCountInString(hash); n < 1 || n > MaxHashLen {
		return ErrInvalidHash
	}
	return nil
}

// validateMethod проверяет метод хеширования.
func validateMethod(method string) error {
	switch method {
	case MethodSHA256, MethodKeccak256:
		return nil
	default:
		return ErrInvalidMethod
	}
}
