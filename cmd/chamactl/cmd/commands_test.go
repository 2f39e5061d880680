package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)

	d, err := parseDay("2025-03-10", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, loc), d)

	_, err = parseDay("10/03/2025", loc)
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{{"verify"}, {"sweep", "loans"}, {"sweep", "contributions"}, {"drift"}, {"recover"}} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
	assert.NotNil(t, sweepContributionsCmd.Flags().Lookup("day"))
}
