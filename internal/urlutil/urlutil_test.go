package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalImageURL(t *testing.T) {
	t.Run("StripsWidthKeepsVersion", func(t *testing.T) {
		got, err := CanonicalImageURL("//ggstore.com/cdn/shop/files/a.jpg?v=9&width=600")
		require.NoError(t, err)
		assert.Equal(t, "https://ggstore.com/cdn/shop/files/a.jpg?v=9", got)
	})

	t.Run("StripsHeightToo", func(t *testing.T) {
		got, err := CanonicalImageURL("https://ggstore.com/cdn/shop/products/b.png?width=300&height=300&v=2")
		require.NoError(t, err)
		assert.Equal(t, "https://ggstore.com/cdn/shop/products/b.png?v=2", got)
	})

	t.Run("DecodesHTMLEntities", func(t *testing.T) {
		got, err := CanonicalImageURL("//ggstore.com/cdn/shop/files/a.jpg?v=9&amp;width=600")
		require.NoError(t, err)
		assert.Equal(t, "https://ggstore.com/cdn/shop/files/a.jpg?v=9", got)
	})

	t.Run("Idempotent", func(t *testing.T) {
		first, err := CanonicalImageURL("//ggstore.com/cdn/shop/files/a.webp?v=17&width=1200")
		require.NoError(t, err)
		second, err := CanonicalImageURL(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NoQueryUnchanged", func(t *testing.T) {
		got, err := CanonicalImageURL("https://ggstore.com/cdn/shop/files/plain.jpg")
		require.NoError(t, err)
		assert.Equal(t, "https://ggstore.com/cdn/shop/files/plain.jpg", got)
	})

	t.Run("RejectsNonCDN", func(t *testing.T) {
		_, err := CanonicalImageURL("https://ggstore.com/assets/logo.svg")
		require.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("RejectsEmpty", func(t *testing.T) {
		_, err := CanonicalImageURL("  ")
		require.ErrorIs(t, err, ErrInvalidURL)
	})
}

func TestProductID(t *testing.T) {
	t.Run("ProductsHandle", func(t *testing.T) {
		id, err := ProductID("https://ggstore.com/products/retro-controller-case")
		require.NoError(t, err)
		assert.Equal(t, "retro-controller-case", id)
	})

	t.Run("CollectionScopedURL", func(t *testing.T) {
		id, err := ProductID("https://ggstore.com/collections/cases/products/retro-controller-case")
		require.NoError(t, err)
		assert.Equal(t, "retro-controller-case", id)
	})

	t.Run("TrailingSlash", func(t *testing.T) {
		id, err := ProductID("https://ggstore.com/products/retro-controller-case/")
		require.NoError(t, err)
		assert.Equal(t, "retro-controller-case", id)
	})

	t.Run("FallsBackToLastSegment", func(t *testing.T) {
		id, err := ProductID("https://ggstore.com/pages/gift-card")
		require.NoError(t, err)
		assert.Equal(t, "gift-card", id)
	})

	t.Run("NoPath", func(t *testing.T) {
		_, err := ProductID("https://ggstore.com")
		require.ErrorIs(t, err, ErrInvalidURL)
	})
}
