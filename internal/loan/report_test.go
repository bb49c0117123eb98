// SPDX-License-Identifier: GPL-3.0-or-later

package loan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// principal, years and rate are the loan terms.
		principal int
		years     int
		rate      float64

		// want is the expected monthly payment.
		want float64
	}{
		{
			name:      "thirty years mortgage",
			principal: 150000,
			years:     30,
			rate:      4.69,
			want:      777.06,
		},

		{
			name:      "one year loan",
			principal: 1000,
			years:     1,
			rate:      5,
			want:      85.61,
		},

		{
			name:      "zero rate splits the principal evenly",
			principal: 1200,
			years:     1,
			rate:      0,
			want:      100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MonthlyPayment(tt.principal, tt.years, tt.rate), 1e-9)
		})
	}
}

func TestReport(t *testing.T) {
	req, err := ParseRequest("150,000 30 4.69%")
	require.NoError(t, err)

	got := Report(req)

	assert.Equal(t, "\n$150000 loan\nmonthly payment is $777.06\ntotal payment is $9324.72", got)
}

// Identical requests always produce identical reports.
func TestReportDeterministic(t *testing.T) {
	for _, body := range []string{"150,000 30 4.69%", "100000 15 0", "1 1 99.99%"} {
		req, err := ParseRequest(body)
		require.NoError(t, err)

		first := Report(req)
		for range 10 {
			assert.Equal(t, first, Report(req))
		}
	}
}

// Zero-rate payments are not rounded to cents.
func TestReportZeroRate(t *testing.T) {
	req, err := ParseRequest("100000 15 0")
	require.NoError(t, err)

	got := Report(req)

	assert.Contains(t, got, "monthly payment is $555.555556\n")
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{777.06, "777.06"},
		{9324.72, "9324.72"},
		{100, "100"},
		{0.5, "0.5"},
		{555.5555555555555, "555.555556"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAmount(tt.value))
	}
}
