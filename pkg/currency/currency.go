// Package currency 校验 ISO 4217 币种代码
package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// Normalize 返回大写币种代码，未知代码返回 false
func Normalize(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || money.GetCurrency(code) == nil {
		return "", false
	}
	return code, true
}
