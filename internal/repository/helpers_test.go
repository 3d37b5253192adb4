package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNotFound(t *testing.T) {
	v := 7

	got, err := HandleNotFound(&v, sql.ErrNoRows)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = HandleNotFound(&v, fmt.Errorf("scan: %w", sql.ErrNoRows))
	require.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("boom")
	_, err = HandleNotFound(&v, boom)
	assert.ErrorIs(t, err, boom)

	got, err = HandleNotFound(&v, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, *got)
}

func TestNotFoundAs(t *testing.T) {
	assert.ErrorIs(t, notFoundAs(sql.ErrNoRows, ErrCodeNotFound), ErrCodeNotFound)

	boom := errors.New("boom")
	assert.Equal(t, boom, notFoundAs(boom, ErrCodeNotFound))
	assert.NoError(t, notFoundAs(nil, ErrCodeNotFound))
}
