// SPDX-License-Identifier: GPL-3.0-or-later

package loan

import (
	"math"
	"strconv"
	"strings"
)

// MonthlyPayment returns the amortized monthly payment, rounded to cents.
//
// With a zero rate, the principal is split evenly over the months and
// the result is not rounded.
func MonthlyPayment(principal, years int, ratePercent float64) float64 {
	monthlyRate := ratePercent / 100 / 12
	payments := years * 12
	if monthlyRate == 0 {
		return float64(principal) / float64(payments)
	}
	exact := (float64(principal) * monthlyRate) / (1 - math.Pow(1+monthlyRate, -float64(payments)))
	return math.Round(exact*100) / 100
}

// Report returns the payment report for a validated request.
//
// The report starts with a newline, and reports the monthly payment
// and the total paid over the first year.
func Report(req Request) string {
	monthly := MonthlyPayment(req.Principal, req.Years, req.Rate)
	var sb strings.Builder
	sb.WriteString("\n$")
	sb.WriteString(req.Amount)
	sb.WriteString(" loan\nmonthly payment is $")
	sb.WriteString(formatAmount(monthly))
	sb.WriteString("\ntotal payment is $")
	sb.WriteString(formatAmount(monthly * 12))
	return sb.String()
}

// formatAmount prints six decimals, then drops trailing zeros and
// a trailing decimal point.
func formatAmount(value float64) string {
	s := strconv.FormatFloat(value, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
