package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Внутри системы деньги ходят только целыми центами. Конвертация в десятичное
// представление происходит исключительно здесь, на границе отображения.

// FormatCents переводит целые центы в строку с двумя знаками после запятой.
// Округление half-up выполняется только здесь; float64 не используется вообще.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Round(2).StringFixed(2)
}

// ParseToCents разбирает десятичную строку вида "25.00" обратно в центы.
// Для любого значения, полученного из FormatCents, возвращает исходное число.
func ParseToCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid money value %q: %w", s, err)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("money value %q has sub-cent precision", s)
	}
	return cents.IntPart(), nil
}
