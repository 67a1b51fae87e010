package dedupe

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/record"
)

func TestDedupe_CompositeKeyFirstWins(t *testing.T) {
	t.Parallel()

	items := []record.Record{
		{URL: "a", SKU: "1", Name: "first"},
		{URL: "a", SKU: "1", Name: "second"},
		{URL: "b", SKU: "1", Name: "third"},
	}

	unique, res := Dedupe(items, []string{"url", "sku"})
	require.Len(t, unique, 2)
	require.Equal(t, "first", unique[0].Name)
	require.Equal(t, "third", unique[1].Name)
	require.Equal(t, 2, res.Kept)
	require.Equal(t, 1, res.Removed)
	require.InDelta(t, 33.3, res.Percent, 0.1)
}

func TestDedupe_DefaultKeysUseURLAndArticle(t *testing.T) {
	t.Parallel()

	items := []record.Record{
		{URL: "a", SKU: "1"},
		{URL: "a", SKU: "1"},
		{URL: "a", SKU: "2"},
	}

	unique, res := Dedupe(items, nil)
	require.Len(t, unique, 2)
	require.Equal(t, 1, res.Removed)
}

func TestDedupe_PreservesBufferOrder(t *testing.T) {
	t.Parallel()

	items := []record.Record{
		{URL: "c", SKU: "3"},
		{URL: "a", SKU: "1"},
		{URL: "b", SKU: "2"},
		{URL: "a", SKU: "1"},
	}

	unique, _ := Dedupe(items, []string{"url", "sku"})
	require.Equal(t, []string{"c", "a", "b"}, []string{unique[0].URL, unique[1].URL, unique[2].URL})
}

func TestDedupe_FieldBoundariesDoNotBleed(t *testing.T) {
	t.Parallel()

	// Underscores inside field values must not let adjacent fields merge
	// into the same composite key.
	items := []record.Record{
		{URL: "a_b", SKU: "c"},
		{URL: "a", SKU: "b_c"},
	}

	unique, res := Dedupe(items, []string{"url", "sku"})
	require.Len(t, unique, 2)
	require.Equal(t, 0, res.Removed)
}

func TestDedupe_EmptyInput(t *testing.T) {
	t.Parallel()

	unique, res := Dedupe(nil, []string{"url"})
	require.Empty(t, unique)
	require.Equal(t, Result{}, res)
}

func TestDedupe_AllUnique(t *testing.T) {
	t.Parallel()

	items := []record.Record{
		{URL: "a", SKU: "1"},
		{URL: "b", SKU: "2"},
	}

	unique, res := Dedupe(items, []string{"url", "sku"})
	require.Len(t, unique, 2)
	require.Equal(t, 0, res.Removed)
	require.Zero(t, res.Percent)

	res.Log(zap.NewNop())
}
