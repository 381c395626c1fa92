package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrant(t *testing.T) {
	t.Parallel()

	src, err := LookupSource(SourceKindred)
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 9, 30, 5, 0, time.UTC)
	g := NewGrant(src, 1001, "https://example.com/grant", now)

	assert.Equal(t, 1001, g.GrantID)
	assert.Equal(t, SourceKindred, g.SourceID)
	assert.Equal(t, "2024-01-15 09:30:05", g.CrawledDate)
	assert.Equal(t, g.CrawledDate, g.LastUpdated)
	assert.Equal(t, "Kindred Foundation", g.FundingAgency)
	assert.Equal(t, "https://example.com/grant", g.ApplicationURL)
	assert.Nil(t, g.Amount)
	assert.Nil(t, g.Deadline)
	assert.False(t, g.IsActive)
	assert.Empty(t, g.Assignee)
}

func TestGrant_Setters(t *testing.T) {
	t.Parallel()

	var g Grant
	g.SetDeadline("")
	assert.Nil(t, g.Deadline)

	g.SetDeadline("2024-02-01")
	require.NotNil(t, g.Deadline)
	assert.Equal(t, "2024-02-01", *g.Deadline)

	g.SetAmount(10000)
	require.NotNil(t, g.Amount)
	assert.InDelta(t, 10000.0, *g.Amount, 0.001)
}

func TestGrant_Flag(t *testing.T) {
	t.Parallel()

	var g Grant
	g.Flag(FieldAmount)
	g.Flag(FieldAmount)
	g.Flag(FieldEligibility)
	assert.Equal(t, Flags{FieldAmount, FieldEligibility}, g.LowConfidence)
}

func TestGrant_JSON(t *testing.T) {
	t.Parallel()

	g := Grant{GrantID: 2001, SourceID: SourceOTF, Title: "Seed Grant"}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":null`)
	assert.Contains(t, string(data), `"deadline":null`)
	assert.NotContains(t, string(data), "low_confidence")

	g.Flag(FieldAmount)
	data, err = json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"low_confidence":["amount"]`)

	var back Grant
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Flags{FieldAmount}, back.LowConfidence)
}

func TestFlags_Text(t *testing.T) {
	t.Parallel()

	b, err := Flags{"amount", "description"}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "amount;description", string(b))

	var f Flags
	require.NoError(t, f.UnmarshalText([]byte("amount;description")))
	assert.Equal(t, Flags{"amount", "description"}, f)

	require.NoError(t, f.UnmarshalText([]byte("  ")))
	assert.Nil(t, f)
}
