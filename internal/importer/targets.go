// Package importer maps spreadsheet columns onto transaction fields and
// converts rows into transactions.
package importer

import (
	"strconv"
	"strings"

	"saldo/internal/core"
)

// Target keys for the built-in transaction fields.
const (
	KeyType             = "type"
	KeyName             = "name"
	KeyValue            = "value"
	KeyDueDate          = "dueDate"
	KeyCategory         = "category"
	KeySubCategory      = "subCategory"
	KeyAccount          = "account"
	KeyDiscount         = "discount"
	KeyInterest         = "interest"
	KeyRegistrationDate = "registrationDate"
	KeyConfirmed        = "isConfirmed"
	KeyConfirmationDate = "confirmationDate"

	customPrefix = "customField:"
)

// Target is a field a source column can be mapped to.
type Target struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Aliases  []string `json:"-"`
}

var builtinTargets = []Target{
	{Key: KeyName, Label: "Name", Required: true, Aliases: []string{"description", "descricao", "nome", "title", "memo", "historico"}},
	{Key: KeyValue, Label: "Value", Required: true, Aliases: []string{"amount", "valor", "gross", "importo", "total", "montante"}},
	{Key: KeyDueDate, Label: "Due date", Required: true, Aliases: []string{"date", "data", "due", "vencimento", "datavencimento"}},
	{Key: KeyCategory, Label: "Category", Required: true, Aliases: []string{"categoria"}},
	{Key: KeyAccount, Label: "Account", Required: true, Aliases: []string{"conta", "bank", "banco", "conto"}},
	{Key: KeyType, Label: "Type", Aliases: []string{"tipo", "kind", "direction"}},
	{Key: KeySubCategory, Label: "Subcategory", Aliases: []string{"subcategoria", "sub"}},
	{Key: KeyDiscount, Label: "Discount", Aliases: []string{"desconto", "sconto"}},
	{Key: KeyInterest, Label: "Interest", Aliases: []string{"juros", "interessi", "fee"}},
	{Key: KeyRegistrationDate, Label: "Registration date", Aliases: []string{"registered", "datacadastro", "created"}},
	{Key: KeyConfirmed, Label: "Confirmed", Aliases: []string{"paid", "pago", "status", "confirmado", "situacao"}},
	{Key: KeyConfirmationDate, Label: "Confirmation date", Aliases: []string{"paidon", "datapagamento", "confirmedon"}},
}

// Targets returns the built-in targets followed by one target per custom field.
func Targets(fields []core.CustomField) []Target {
	out := make([]Target, 0, len(builtinTargets)+len(fields))
	out = append(out, builtinTargets...)
	for _, f := range fields {
		out = append(out, Target{
			Key:      customKey(f.ID),
			Label:    f.Name,
			Required: f.Required && f.TransactionType == core.ScopeAll,
		})
	}
	return out
}

func customKey(id int64) string {
	return customPrefix + strconv.FormatInt(id, 10)
}

func customID(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, customPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

func requiredCount(targets []Target) int {
	n := 0
	for _, t := range targets {
		if t.Required {
			n++
		}
	}
	return n
}
