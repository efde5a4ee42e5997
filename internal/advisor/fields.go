package advisor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/funding-advisor/internal/model"
)

// columnAliases maps normalized client-facing field names to canonical
// storage columns. Unknown keys are ignored, so clients may send additive
// fields without breaking older servers.
var columnAliases = map[string]string{
	"business_id":             "business_id",
	"businessid":              "business_id",
	"registration_number":     "business_id",
	"website":                 "website",
	"url":                     "website",
	"country":                 "country",
	"location":                "country",
	"industry":                "industry",
	"industry_classification": "industry",
	"employee_count":          "employee_count",
	"employees":               "employee_count",
	"headcount":               "employee_count",
	"annual_revenue":          "annual_revenue",
	"revenue":                 "annual_revenue",
	"funding_need_type":       "funding_need_type",
	"funding_need_type_guess": "funding_need_type",
	"funding_need_min":        "funding_need_min",
	"funding_min":             "funding_need_min",
	"funding_need_max":        "funding_need_max",
	"funding_max":             "funding_need_max",
	"description":             "description",
	"notes":                   "description",
}

// numericColumns are the columns whose values must parse as finite numbers.
var numericColumns = map[string]bool{
	"employee_count":   true,
	"annual_revenue":   true,
	"funding_need_min": true,
	"funding_need_max": true,
}

// resolveColumn normalizes a client field name and resolves it through the
// alias table. ok is false for unknown fields.
func resolveColumn(key string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	col, ok := columnAliases[k]
	return col, ok
}

// coerceValue converts a raw client value into its storable form for the
// given column. skip is true for values that are not a persistable
// instruction. A returned error is a single field's validation failure.
func coerceValue(column string, raw any) (val any, skip bool, err error) {
	switch t := raw.(type) {
	case nil:
		return nil, false, nil
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, false, nil
		}
		if numericColumns[column] {
			n, perr := strconv.ParseFloat(trimmed, 64)
			if perr != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, false, fmt.Errorf("%s: %q is not a valid number", column, trimmed)
			}
			return n, false, nil
		}
		return trimmed, false, nil
	case float64:
		if numericColumns[column] && (math.IsNaN(t) || math.IsInf(t, 0)) {
			return nil, false, fmt.Errorf("%s: value is not a finite number", column)
		}
		return t, false, nil
	case bool:
		// Columns hold strings or numbers only.
		return nil, false, fmt.Errorf("%s: boolean values are not supported", column)
	default:
		return nil, false, fmt.Errorf("%s: unsupported value type %T", column, raw)
	}
}

// currentValue reads the stored value for a canonical column, nil when the
// column is null.
func currentValue(c *model.Company, column string) any {
	switch column {
	case "business_id":
		return derefStr(c.BusinessID)
	case "website":
		return derefStr(c.Website)
	case "country":
		return derefStr(c.Country)
	case "industry":
		return derefStr(c.Industry)
	case "employee_count":
		return derefNum(c.EmployeeCount)
	case "annual_revenue":
		return derefNum(c.AnnualRevenue)
	case "funding_need_type":
		return derefStr(c.FundingNeedType)
	case "funding_need_min":
		return derefNum(c.FundingNeedMin)
	case "funding_need_max":
		return derefNum(c.FundingNeedMax)
	case "description":
		return derefStr(c.Description)
	}
	return nil
}

// setColumn applies a coerced value to the in-memory record so that the
// response reflects what was just persisted.
func setColumn(c *model.Company, column string, val any) {
	str, num := splitValue(val)
	switch column {
	case "business_id":
		c.BusinessID = str
	case "website":
		c.Website = str
	case "country":
		c.Country = str
	case "industry":
		c.Industry = str
	case "employee_count":
		c.EmployeeCount = num
	case "annual_revenue":
		c.AnnualRevenue = num
	case "funding_need_type":
		c.FundingNeedType = str
	case "funding_need_min":
		c.FundingNeedMin = num
	case "funding_need_max":
		c.FundingNeedMax = num
	case "description":
		c.Description = str
	}
}

// equalValues compares a coerced candidate against the stored value.
// Both-nil counts as equal; numbers compare as float64.
func equalValues(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if an, aok := a.(float64); aok {
		bn, bok := b.(float64)
		return bok && an == bn
	}
	return a == b
}

func derefStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefNum(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func splitValue(val any) (*string, *float64) {
	switch t := val.(type) {
	case string:
		return &t, nil
	case float64:
		return nil, &t
	}
	return nil, nil
}
