package http

import (
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

type repeatRequest struct {
	InitialInstallment int    `json:"initialInstallment" validate:"gte=0"`
	Count              int    `json:"count" validate:"gte=0"`
	Interval           string `json:"interval" validate:"required,oneof=daily weekly biweekly monthly quarterly semiannual yearly"`
}

type transactionRequest struct {
	Type             string                  `json:"type" validate:"required,oneof=income expense"`
	Name             string                  `json:"name" validate:"notblank,max=200"`
	Balance          *core.Balance           `json:"balance" validate:"required"`
	Frequency        string                  `json:"frequency" validate:"omitempty,oneof=none repeat recurring"`
	RepeatSettings   *repeatRequest          `json:"repeatSettings"`
	DueDate          string                  `json:"dueDate" validate:"required,isodate"`
	RegistrationDate string                  `json:"registrationDate" validate:"omitempty,isodate"`
	ConfirmationDate string                  `json:"confirmationDate" validate:"omitempty,isodate"`
	IsConfirmed      bool                    `json:"isConfirmed"`
	CategoryID       int64                   `json:"categoryId" validate:"required,gt=0"`
	SubCategoryID    *int64                  `json:"subCategoryId" validate:"omitempty,gt=0"`
	Tags             []core.TagRef           `json:"tags"`
	AccountID        int64                   `json:"accountId" validate:"required,gt=0"`
	CustomFields     []core.CustomFieldValue `json:"customFields"`
	Version          int64                   `json:"version" validate:"gte=0"`
}

// toTransaction converts a validated request. Dates were checked by the
// isodate rule so parse errors cannot occur.
func (req transactionRequest) toTransaction() core.Transaction {
	tx := core.Transaction{
		Type:          core.TransactionType(req.Type),
		Name:          req.Name,
		Balance:       *req.Balance,
		Frequency:     core.Frequency(req.Frequency),
		IsConfirmed:   req.IsConfirmed,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		Tags:          req.Tags,
		AccountID:     req.AccountID,
		CustomFields:  req.CustomFields,
		Version:       req.Version,
	}
	tx.DueDate, _ = core.ParseDate(req.DueDate)
	if req.RegistrationDate != "" {
		tx.RegistrationDate, _ = core.ParseDate(req.RegistrationDate)
	}
	if req.ConfirmationDate != "" {
		d, _ := core.ParseDate(req.ConfirmationDate)
		tx.ConfirmationDate = &d
	}
	if rs := req.RepeatSettings; rs != nil {
		initial := rs.InitialInstallment
		if initial == 0 {
			initial = 1
		}
		tx.RepeatSettings = &core.RepeatSettings{
			InitialInstallment: initial,
			Count:              rs.Count,
			Interval:           core.Interval(rs.Interval),
		}
	}
	return tx
}

type confirmRequest struct {
	Confirmed *bool  `json:"confirmed" validate:"required"`
	Date      string `json:"date" validate:"omitempty,isodate"`
}

type accountRequest struct {
	Name    string          `json:"name" validate:"notblank,max=200"`
	Balance decimal.Decimal `json:"balance"`
	BankID  string          `json:"bankId" validate:"max=50"`
}

func (req accountRequest) toAccount(id int64) core.Account {
	return core.Account{ID: id, Name: req.Name, Balance: req.Balance, BankID: req.BankID}
}

type subCategoryRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
	Icon string `json:"icon" validate:"max=50"`
}

type categoryRequest struct {
	Name          string               `json:"name" validate:"notblank,max=100"`
	Icon          string               `json:"icon" validate:"max=50"`
	Type          string               `json:"type" validate:"required,oneof=income expense tag"`
	SubCategories []subCategoryRequest `json:"subCategories" validate:"dive"`
}

func (req categoryRequest) toCategory(id int64) core.Category {
	c := core.Category{
		ID:            id,
		Name:          req.Name,
		Icon:          req.Icon,
		Type:          core.CategoryType(req.Type),
		SubCategories: make([]core.SubCategory, 0, len(req.SubCategories)),
	}
	for _, sub := range req.SubCategories {
		c.SubCategories = append(c.SubCategories, core.SubCategory{Name: sub.Name, Icon: sub.Icon})
	}
	return c
}

type customFieldRequest struct {
	Name            string   `json:"name" validate:"notblank,max=100"`
	Type            string   `json:"type" validate:"required,oneof=text number select"`
	Options         []string `json:"options" validate:"dive,notblank"`
	Required        bool     `json:"required"`
	TransactionType string   `json:"transactionType" validate:"omitempty,oneof=all income expense"`
}

func (req customFieldRequest) toCustomField(id int64) core.CustomField {
	return core.CustomField{
		ID:              id,
		Name:            req.Name,
		Type:            core.CustomFieldType(req.Type),
		Options:         req.Options,
		Required:        req.Required,
		TransactionType: core.FieldScope(req.TransactionType),
	}
}

// deleteResponse lists the ids removed by a transaction delete.
type deleteResponse struct {
	Deleted []int64 `json:"deleted"`
}

type importResponse struct {
	Count        int                `json:"count"`
	Transactions []core.Transaction `json:"transactions"`
}
