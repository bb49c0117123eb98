// SPDX-License-Identifier: GPL-3.0-or-later

package loan

import (
	"context"
	"testing"

	"github.com/bassosimone/loanwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	handler := Handler()

	got, err := handler.Handle(context.Background(), "150,000 30 4.69%")

	require.NoError(t, err)
	assert.Equal(t, "\n$150000 loan\nmonthly payment is $777.06\ntotal payment is $9324.72", got)
}

func TestHandlerRejectsInvalidRequest(t *testing.T) {
	handler := Handler()

	got, err := handler.Handle(context.Background(), "garbage")

	require.ErrorIs(t, err, loanwire.ErrInvalidRequest)
	assert.Empty(t, got)
}
