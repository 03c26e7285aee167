package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/retroarcade/internal/testutil"
)

func TestOptionalInt(t *testing.T) {
	n, err := optionalInt(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = optionalInt([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = optionalInt([]string{"three"})
	assert.Error(t, err)
	_, err = optionalInt([]string{"-1"})
	assert.Error(t, err)
}

func TestRun_DownThenUp(t *testing.T) {
	db := testutil.StartPostgres(t)
	logger := zaptest.NewLogger(t)

	require.NoError(t, run(db, []string{"version"}, logger))
	require.NoError(t, run(db, []string{"up"}, logger), "already current is not an error")
	require.NoError(t, run(db, []string{"down", "1"}, logger))
	require.NoError(t, run(db, nil, logger))
	assert.Error(t, run(db, []string{"sideways"}, logger))
	assert.Error(t, run(db, []string{"force"}, logger))
}
