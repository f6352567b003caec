package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// keySalt - фиксированная соль для вывода ключа.
// Служит для доменного разделения, а не для секретности:
// парольная фраза одна на инсталляцию, радужные таблицы
// здесь не угроза.
var keySalt = []byte("mt5bridge/account-passwords/v1")

// keyIterations - число итераций PBKDF2.
// Вывод выполняется один раз на операцию шифрования,
// поэтому можно позволить большое значение.
const keyIterations = 150_000

// DeriveKey выводит 32-байтовый ключ AES-256 из парольной фразы
// через PBKDF2-SHA256. Одна и та же фраза всегда даёт один ключ.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), keySalt, keyIterations, 32, sha256.New)
}
