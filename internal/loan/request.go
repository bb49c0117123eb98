// SPDX-License-Identifier: GPL-3.0-or-later

// Package loan parses loan queries and computes payment reports.
package loan

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bassosimone/loanwire"
)

// Errors returned when validating a request. They all wrap
// [loanwire.ErrInvalidRequest], so servers drop the request.
var (
	ErrFieldCount = fmt.Errorf("%w: expected <amount> <years> <rate>", loanwire.ErrInvalidRequest)
	ErrAmount     = fmt.Errorf("%w: amount must be a positive number", loanwire.ErrInvalidRequest)
	ErrYears      = fmt.Errorf("%w: years must be a positive integer", loanwire.ErrInvalidRequest)
	ErrRate       = fmt.Errorf("%w: rate must be a non-negative number", loanwire.ErrInvalidRequest)
)

// Request is a validated loan query.
type Request struct {
	// Amount is the amount as written by the client without commas.
	Amount string

	// Principal is the integer part of the amount.
	Principal int

	// Years is the loan term.
	Years int

	// Rate is the yearly interest rate, in percent.
	Rate float64
}

// ParseRequest parses and validates a "<amount> <years> <rate>" body.
//
// Fields are separated by single spaces and leading whitespace is ignored.
// The amount may contain commas as thousands separators and the rate may
// end with a percent sign.
func ParseRequest(body string) (Request, error) {
	fields := splitFields(body)
	if len(fields) != 3 {
		return Request{}, fmt.Errorf("%w: got %d fields", ErrFieldCount, len(fields))
	}
	return NewRequest(fields[0], fields[1], fields[2])
}

// NewRequest validates the three fields of a request.
func NewRequest(amount, years, rate string) (Request, error) {
	var (
		req Request
		err error
	)
	if req.Amount, req.Principal, err = ValidateAmount(amount); err != nil {
		return Request{}, err
	}
	if req.Years, err = ValidateYears(years); err != nil {
		return Request{}, err
	}
	if req.Rate, err = ValidateRate(rate); err != nil {
		return Request{}, err
	}
	return req, nil
}

func splitFields(body string) []string {
	body = strings.TrimSuffix(strings.TrimRight(body, "\r\n"), " ")
	if body == "" {
		return nil
	}
	fields := strings.Split(body, " ")
	for idx, field := range fields {
		fields[idx] = strings.TrimSpace(field)
	}
	return fields
}

// ValidateAmount checks that amount is a positive number, possibly using
// commas as thousands separators. It returns the amount without commas
// and its integer part.
func ValidateAmount(amount string) (string, int, error) {
	amount = strings.ReplaceAll(strings.TrimSpace(amount), ",", "")
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrAmount, amount)
	}
	if value >= math.MaxInt32 {
		return "", 0, fmt.Errorf("%w: %q is too large", ErrAmount, amount)
	}
	return amount, int(value), nil
}

// ValidateYears checks that years is a positive integer.
func ValidateYears(years string) (int, error) {
	years = strings.TrimSpace(years)
	if strings.Contains(years, ".") {
		return 0, fmt.Errorf("%w: %q has a decimal point", ErrYears, years)
	}
	value, err := strconv.Atoi(years)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrYears, years)
	}
	return value, nil
}

// ValidateRate checks that rate is a non-negative number with an optional
// trailing percent sign and returns it in percent.
func ValidateRate(rate string) (float64, error) {
	rate = strings.TrimSuffix(strings.TrimSpace(rate), "%")
	value, err := strconv.ParseFloat(rate, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrRate, rate)
	}
	return value, nil
}
