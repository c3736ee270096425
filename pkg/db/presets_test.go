package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		err := store.SavePreset(ctx, Preset{
			Name:    "api",
			URL:     "https://api.example.com/health",
			Method:  "POST",
			Headers: map[string]string{"Authorization": "Bearer x"},
			Body:    `{"ping":true}`,
		})
		require.NoError(t, err)

		p, err := store.GetPreset(ctx, "api")
		require.NoError(t, err)
		require.Equal(t, "https://api.example.com/health", p.URL)
		require.Equal(t, "POST", p.Method)
		require.Equal(t, "Bearer x", p.Headers["Authorization"])
		require.Equal(t, `{"ping":true}`, p.Body)
		require.NotZero(t, p.CreatedAt)
	})

	t.Run("defaults", func(t *testing.T) {
		err := store.SavePreset(ctx, Preset{
			Name: "bare",
			URL:  "https://example.com",
		})
		require.NoError(t, err)

		p, err := store.GetPreset(ctx, "bare")
		require.NoError(t, err)
		require.Equal(t, "GET", p.Method)
		require.NotNil(t, p.Headers)
		require.Empty(t, p.Headers)
	})

	t.Run("save replaces by name", func(t *testing.T) {
		err := store.SavePreset(ctx, Preset{
			Name: "api",
			URL:  "https://api.example.com/v2/health",
		})
		require.NoError(t, err)

		p, err := store.GetPreset(ctx, "api")
		require.NoError(t, err)
		require.Equal(t, "https://api.example.com/v2/health", p.URL)

		presets, err := store.ListPresets(ctx)
		require.NoError(t, err)
		require.Len(t, presets, 2)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		presets, err := store.ListPresets(ctx)
		require.NoError(t, err)
		require.Equal(t, "api", presets[0].Name)
		require.Equal(t, "bare", presets[1].Name)
	})

	t.Run("missing preset", func(t *testing.T) {
		_, err := store.GetPreset(ctx, "nope")
		require.ErrorIs(t, err, ErrPresetNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		deleted, err := store.DeletePreset(ctx, "bare")
		require.NoError(t, err)
		require.True(t, deleted)

		deleted, err = store.DeletePreset(ctx, "bare")
		require.NoError(t, err)
		require.False(t, deleted)
	})
}
