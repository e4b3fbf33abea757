package core

// Filter selects transactions for listing and export. Zero fields match
// everything; From and To are inclusive bounds on the due date.
type Filter struct {
	Type       TransactionType
	AccountID  int64
	CategoryID int64
	Confirmed  *bool
	From       Date
	To         Date
	GroupID    string
}

func (f Filter) Match(tx Transaction) bool {
	switch {
	case f.Type != "" && tx.Type != f.Type:
		return false
	case f.AccountID != 0 && tx.AccountID != f.AccountID:
		return false
	case f.CategoryID != 0 && tx.CategoryID != f.CategoryID:
		return false
	case f.Confirmed != nil && tx.IsConfirmed != *f.Confirmed:
		return false
	case !f.From.IsZero() && tx.DueDate.Before(f.From.Time):
		return false
	case !f.To.IsZero() && tx.DueDate.After(f.To.Time):
		return false
	case f.GroupID != "" && tx.RepeatGroupID != f.GroupID:
		return false
	}
	return true
}
