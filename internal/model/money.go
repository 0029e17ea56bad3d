package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// currencyExponents maps supported ISO 4217 codes to their minor-unit
// exponent (number of fraction digits).
var currencyExponents = map[string]int{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"AUD": 2,
	"CAD": 2,
	"SGD": 2,
	"JPY": 0,
	"KRW": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// pow10 is sized for the largest exponent in currencyExponents; a new
// currency with a bigger exponent must extend it.
var pow10 = [4]int64{1, 10, 100, 1000}

// Money is an immutable value object: an amount in minor units plus an
// ISO 4217 currency code. Two Money values are equal when their content is
// equal; there is no identity. The decimal string form ("150.75") exists
// only at boundaries (JSON, external providers); internal code always works
// with typed Money.
type Money struct {
	minor    int64
	currency string
}

// NewMoney builds a Money from minor units (e.g. cents).
func NewMoney(minor int64, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := currencyExponents[currency]; !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	if minor < 0 {
		return Money{}, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	return Money{minor: minor, currency: currency}, nil
}

// ParseMoney parses the external decimal form ("150.75") into a Money,
// honoring the currency's exponent. More fraction digits than the currency
// allows are rejected rather than rounded.
func ParseMoney(decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	exp, ok := currencyExponents[currency]
	if !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.HasPrefix(decimal, "-") || strings.HasPrefix(decimal, "+") {
		return Money{}, fmt.Errorf("%w: signed amount %q", ErrInvalidAmount, decimal)
	}

	intPart := decimal
	fracPart := ""
	hasDot := false
	if i := strings.IndexByte(decimal, '.'); i >= 0 {
		intPart, fracPart = decimal[:i], decimal[i+1:]
		hasDot = true
	}
	// Both parts must be plain ASCII digits. strconv.ParseInt alone is too
	// lenient here: it accepts a leading sign, which would let "1.+5"
	// through as 105 minor units.
	if !digitsOnly(intPart) || (hasDot && !digitsOnly(fracPart)) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, decimal)
	}
	if len(fracPart) > exp {
		return Money{}, fmt.Errorf("%w: %q has more than %d fraction digits", ErrInvalidAmount, decimal, exp)
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, decimal)
	}

	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, decimal)
		}
		// Right-pad to the full exponent: "150.7" in USD means 70 cents.
		frac *= pow10[exp-len(fracPart)]
	}

	scale := pow10[exp]
	if units > (math.MaxInt64-frac)/scale {
		return Money{}, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, decimal)
	}

	return Money{minor: units*scale + frac, currency: currency}, nil
}

// digitsOnly reports whether s is non-empty and consists solely of ASCII
// digits.
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return m.minor }

// Currency returns the ISO 4217 code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.minor == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.minor > 0 }

// Equal reports content equality: same amount and same currency.
func (m Money) Equal(other Money) bool {
	return m.minor == other.minor && m.currency == other.currency
}

// Add returns a new Money with the summed amount. Both operands must share
// a currency; the receiver is never modified.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{minor: m.minor + other.minor, currency: m.currency}, nil
}

// Decimal renders the canonical decimal string for the currency's exponent,
// e.g. 15075 USD -> "150.75", 150 JPY -> "150".
func (m Money) Decimal() string {
	exp := currencyExponents[m.currency]
	if exp == 0 {
		return strconv.FormatInt(m.minor, 10)
	}
	scale := pow10[exp]
	return fmt.Sprintf("%d.%0*d", m.minor/scale, exp, m.minor%scale)
}

func (m Money) String() string {
	return m.Decimal() + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON emits the boundary form: a string-typed decimal amount plus
// the currency code.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Decimal(), Currency: m.currency})
}

// UnmarshalJSON parses the boundary form back into a typed Money.
func (m *Money) UnmarshalJSON(b []byte) error {
	var aux moneyJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	parsed, err := ParseMoney(aux.Amount, aux.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
