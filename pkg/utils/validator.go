package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация входных данных торговых счетов

var (
	accountNumberRe = regexp.MustCompile(`^[0-9]{4,12}$`)
	serverNameRe    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,63}$`)
)

// ValidateAccountNumber проверяет номер счёта у брокера.
// Допускаются только цифры, от 4 до 12 знаков.
func ValidateAccountNumber(number string) error {
	if number == "" {
		return fmt.Errorf("account number is required")
	}
	if !accountNumberRe.MatchString(number) {
		return fmt.Errorf("invalid account number %q: must be 4-12 digits", number)
	}
	return nil
}

// ValidateBrokerName проверяет имя брокера.
func ValidateBrokerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("broker name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("broker name too long: %d characters (max 64)", len(name))
	}
	return nil
}

// ValidateServerName проверяет имя торгового сервера
// (например "Exness-MT5Real" или "ICMarketsSC-Demo").
func ValidateServerName(server string) error {
	if server == "" {
		return fmt.Errorf("server name is required")
	}
	if !serverNameRe.MatchString(server) {
		return fmt.Errorf("invalid server name %q", server)
	}
	return nil
}

// ValidatePassword проверяет пароль от торгового счёта.
// Пароль передаётся брокеру как есть, поэтому ограничиваем
// только длину.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 4 {
		return fmt.Errorf("password too short: minimum 4 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password too long: maximum 128 characters")
	}
	return nil
}

// ValidateUserID проверяет идентификатор пользователя.
func ValidateUserID(userID int) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id %d: must be positive", userID)
	}
	return nil
}
