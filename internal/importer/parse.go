package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
)

var (
	ErrInvalidBool = errors.New("invalid yes/no value")
	ErrInvalidType = errors.New("invalid transaction type")
)

var dateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	time.DateTime,
}

// ParseDate accepts ISO dates, day-first dates and Excel serial numbers.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	// Excel stores dates as days since 1899-12-30; accept a sane range only.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

var boolWords = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true, "sim": true, "s": true, "x": true,
	"paid": true, "pago": true, "confirmed": true, "confirmado": true,
	"no": false, "n": false, "false": false, "0": false, "nao": false,
	"pending": false, "pendente": false, "unpaid": false,
}

// ParseBool accepts yes/no words in English and Portuguese. Empty is false.
func ParseBool(s string) (bool, error) {
	n := normalize(s)
	if n == "" {
		return false, nil
	}
	v, ok := boolWords[n]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
	}
	return v, nil
}

var typeWords = map[string]core.TransactionType{
	"income": core.Income, "receita": core.Income, "entrada": core.Income, "credit": core.Income, "credito": core.Income, "in": core.Income,
	"expense": core.Expense, "despesa": core.Expense, "saida": core.Expense, "debit": core.Expense, "debito": core.Expense, "out": core.Expense,
}

// ParseType maps a type cell onto income or expense.
func ParseType(s string) (core.TransactionType, error) {
	t, ok := typeWords[normalize(s)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}
