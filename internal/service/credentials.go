package service

import (
	"mt5bridge/internal/models"
	"mt5bridge/internal/syncer"
	"mt5bridge/internal/terminal"
	"mt5bridge/pkg/crypto"
)

// CredentialVault восстанавливает учётные данные счёта для терминала.
// Пароль хранится зашифрованным и расшифровывается только на время
// операции, открытый текст никуда не сохраняется.
type CredentialVault struct {
	encryptionKey string
}

var _ syncer.CredentialOpener = (*CredentialVault)(nil)

// NewCredentialVault создает новый экземпляр хранилища учётных данных
func NewCredentialVault(encryptionKey string) *CredentialVault {
	return &CredentialVault{encryptionKey: encryptionKey}
}

// Open расшифровывает пароль счёта и собирает учётные данные
func (v *CredentialVault) Open(acc models.Account) (terminal.Credentials, error) {
	password, err := crypto.DecryptWithKeyString(acc.EncryptedPassword, v.encryptionKey)
	if err != nil {
		return terminal.Credentials{}, err
	}
	return terminal.Credentials{
		AccountNumber: acc.AccountNumber,
		Password:      password,
		Server:        acc.Server,
	}, nil
}
