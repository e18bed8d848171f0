// Package checksum вычисляет контент-адресуемые отпечатки упакованных сохранений.
// Отпечаток детерминирован: одинаковые байты дают одинаковую строку на любой
// платформе, что позволяет обнаруживать неизмененные сохранения до загрузки.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum возвращает SHA-256 отпечаток данных в hex-кодировке.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// SumReader потоково вычисляет SHA-256 отпечаток содержимого reader.
// Полезно для больших архивов, которые не хочется держать в памяти целиком.
func SumReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("ошибка чтения данных для контрольной суммы: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
