// Пакет refcode выдает короткие реферальные коды для шар.
package refcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Длина кода по умолчанию и допустимые границы
const (
	DefaultLength = 7
	MinLength     = 4
	MaxLength     = 16
)

// Алфавит без визуально неоднозначных символов 0, O, I, l, 1.
// Один и тот же алфавит используется для всех кодов в системе.
const alphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const alphabetLen = len(alphabet)

// Байты >= rejectAbove отбрасываются, чтобы ни один символ не получил перевес
const rejectAbove = 256 - 256%alphabetLen

var ErrInvalidLength = errors.New("invalid code length")

// Issuer генерирует случайные коды заданной длины.
// Issuer не хранит состояния и не обращается к хранилищу:
// уникальность обеспечивает вызывающая сторона.
type Issuer struct {
	length  int
	entropy io.Reader
}

// Option настраивает Issuer
type Option func(*Issuer)

// WithEntropy подменяет источник случайности (по умолчанию crypto/rand)
func WithEntropy(r io.Reader) Option {
	return func(i *Issuer) {
		i.entropy = r
	}
}

// NewIssuer создает Issuer для кодов длины length
func NewIssuer(length int, opts ...Option) (*Issuer, error) {
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("%w: %d (must be %d..%d)", ErrInvalidLength, length, MinLength, MaxLength)
	}

	i := &Issuer{
		length:  length,
		entropy: rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Length возвращает длину выдаваемых кодов
func (i *Issuer) Length() int {
	return i.length
}

// Generate возвращает новый код. Каждый символ выбирается
// равновероятно и независимо от остальных.
func (i *Issuer) Generate() (string, error) {
	result := make([]byte, 0, i.length)
	buf := make([]byte, i.length*2)

	for len(result) < i.length {
		if _, err := io.ReadFull(i.entropy, buf); err != nil {
			return "", fmt.Errorf("reading entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			result = append(result, alphabet[int(b)%alphabetLen])
			if len(result) == i.length {
				break
			}
		}
	}

	return string(result), nil
}

// IsValid проверяет, может ли строка быть кодом, выданным системой
func IsValid(code string) bool {
	if len(code) < MinLength || len(code) > MaxLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		if !isValidChar(code[i]) {
			return false
		}
	}

	return true
}

// IsLookupKey проверяет форму кода для поиска: непустой, не длиннее MaxLength, только [A-Za-z0-9].
// Принимает и коды, выданные не этим алфавитом.
func IsLookupKey(code string) bool {
	if code == "" || len(code) > MaxLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}

	return true
}

// isValidChar проверяет наличие символа в алфавите
func isValidChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return c != 'l'
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= '2' && c <= '9':
		return true
	}
	return false
}
