package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidValue        = errors.New("value must be greater than zero")
	ErrNegativeAdjustment  = errors.New("discount and interest cannot be negative")
	ErrConflictingDiscount = errors.New("discount and discount percentage are mutually exclusive")
	ErrConflictingInterest = errors.New("interest and interest percentage are mutually exclusive")
	ErrDiscountPercentage  = errors.New("discount percentage must be at most 100")
	ErrNegativeLiquid      = errors.New("discount exceeds value")
)

var hundred = decimal.NewFromInt(100)

// Balance is the gross value of a transaction and its adjustments. At most one
// of each flat/percentage pair may be set.
type Balance struct {
	Value              decimal.Decimal  `json:"value"`
	Discount           *decimal.Decimal `json:"discount,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	Interest           *decimal.Decimal `json:"interest,omitempty"`
	InterestPercentage *decimal.Decimal `json:"interestPercentage,omitempty"`
	LiquidValue        decimal.Decimal  `json:"liquidValue"`
}

// Liquid computes gross - discount + interest. A percentage discount is taken
// from the gross value; a percentage interest is applied to the discounted
// result. The result is rounded to cents.
func (b Balance) Liquid() (decimal.Decimal, error) {
	if !b.Value.IsPositive() {
		return decimal.Zero, ErrInvalidValue
	}
	if b.Discount != nil && b.DiscountPercentage != nil {
		return decimal.Zero, ErrConflictingDiscount
	}
	if b.Interest != nil && b.InterestPercentage != nil {
		return decimal.Zero, ErrConflictingInterest
	}
	for _, adj := range []*decimal.Decimal{b.Discount, b.DiscountPercentage, b.Interest, b.InterestPercentage} {
		if adj != nil && adj.IsNegative() {
			return decimal.Zero, ErrNegativeAdjustment
		}
	}

	result := b.Value
	switch {
	case b.Discount != nil:
		result = result.Sub(*b.Discount)
	case b.DiscountPercentage != nil:
		if b.DiscountPercentage.GreaterThan(hundred) {
			return decimal.Zero, ErrDiscountPercentage
		}
		result = result.Sub(result.Mul(*b.DiscountPercentage).Div(hundred))
	}
	if result.IsNegative() {
		return decimal.Zero, ErrNegativeLiquid
	}

	switch {
	case b.Interest != nil:
		result = result.Add(*b.Interest)
	case b.InterestPercentage != nil:
		result = result.Add(result.Mul(*b.InterestPercentage).Div(hundred))
	}
	return result.Round(2), nil
}

// DiscountAmount returns the absolute discount applied to the gross value.
func (b Balance) DiscountAmount() decimal.Decimal {
	switch {
	case b.Discount != nil:
		return *b.Discount
	case b.DiscountPercentage != nil:
		return b.Value.Mul(*b.DiscountPercentage).Div(hundred).Round(2)
	}
	return decimal.Zero
}

// InterestAmount returns the absolute interest added on top of the discounted value.
func (b Balance) InterestAmount() decimal.Decimal {
	switch {
	case b.Interest != nil:
		return *b.Interest
	case b.InterestPercentage != nil:
		base := b.Value.Sub(b.DiscountAmount())
		return base.Mul(*b.InterestPercentage).Div(hundred).Round(2)
	}
	return decimal.Zero
}

// WithLiquid returns a copy with LiquidValue filled in.
func (b Balance) WithLiquid() (Balance, error) {
	l, err := b.Liquid()
	if err != nil {
		return b, err
	}
	b.LiquidValue = l
	return b, nil
}

// Totals aggregates liquid values by direction.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

func (t *Totals) Add(tx Transaction) {
	switch tx.Type {
	case Income:
		t.Income = t.Income.Add(tx.Balance.LiquidValue)
	case Expense:
		t.Expense = t.Expense.Add(tx.Balance.LiquidValue)
	}
	t.Net = t.Income.Sub(t.Expense)
	t.Count++
}

// Signed returns the liquid value with expenses negated.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Balance.LiquidValue.Neg()
	}
	return t.Balance.LiquidValue
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64           `json:"categoryId"`
	Name       string          `json:"name"`
	Type       TransactionType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Totals     Totals           `json:"totals"`
	Pending    Totals           `json:"pending"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// Summarize builds the overview of transactions due in year/month. Confirmed
// items count toward Totals, unconfirmed ones toward Pending.
func Summarize(year, month int, txs []Transaction, categories map[int64]Category) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	idx := map[int64]int{}
	for _, tx := range txs {
		if tx.DueDate.Year() != year || int(tx.DueDate.Month()) != month {
			continue
		}
		if !tx.IsConfirmed {
			ov.Pending.Add(tx)
			continue
		}
		ov.Totals.Add(tx)
		i, ok := idx[tx.CategoryID]
		if !ok {
			i = len(ov.ByCategory)
			idx[tx.CategoryID] = i
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{
				CategoryID: tx.CategoryID,
				Name:       categories[tx.CategoryID].Name,
				Type:       tx.Type,
			})
		}
		ov.ByCategory[i].Amount = ov.ByCategory[i].Amount.Add(tx.Balance.LiquidValue)
	}
	return ov
}

// AccountBalances derives current (confirmed) and forecast (all) balances.
func AccountBalances(a Account, txs []Transaction) Account {
	current := a.Balance
	forecast := a.Balance
	for _, tx := range txs {
		if tx.AccountID != a.ID {
			continue
		}
		forecast = forecast.Add(tx.Signed())
		if tx.IsConfirmed {
			current = current.Add(tx.Signed())
		}
	}
	a.CurrentBalance = current
	a.ForecastBalance = forecast
	return a
}
