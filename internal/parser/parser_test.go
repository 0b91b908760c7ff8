package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
<div class="grid">
  <a href="/products/retro-controller-case">Retro Controller Case</a>
  <a href="/products/pixel-keycap-set"><img src="//ggstore.com/cdn/shop/files/keycaps_thumb.jpg?v=3&width=300"></a>
  <a href="/products/retro-controller-case">Retro Controller Case (again)</a>
  <a href="https://ggstore.com/products/desk-mat-xl">Desk Mat XL</a>
  <a href="/pages/about">About</a>
</div>
</body></html>`

const detailHTML = `
<html><head>
<title>Retro Controller Case | GGStore</title>
<meta property="og:title" content="Retro Controller Case">
</head><body>
<nav class="breadcrumb">
  <a href="/collections/all">All</a>
  <a href="/collections/carry-cases">Carry Cases</a>
</nav>
<span class="price price--regular">$34.90</span>
<img src="//ggstore.com/cdn/shop/files/case_front.jpg?v=11&width=600">
<img srcset="//ggstore.com/cdn/shop/files/case_front.jpg?v=11&width=300 300w, //ggstore.com/cdn/shop/files/case_front.jpg?v=11&width=1200 1200w">
<img data-src="//ggstore.com/cdn/shop/files/case_back.png?v=12&width=600">
<script type="application/json">
{"product":{"images":[{"src":"https:\/\/ggstore.com\/cdn\/shop\/files\/case_side.jpg?v=13"}],"price":"34.90"}}
</script>
</body></html>`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New("https://ggstore.com")
	require.NoError(t, err)
	return p
}

func TestListingURLs(t *testing.T) {
	p := newTestParser(t)
	urls, err := p.ListingURLs(listingHTML)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://ggstore.com/products/retro-controller-case",
		"https://ggstore.com/products/pixel-keycap-set",
		"https://ggstore.com/products/desk-mat-xl",
	}, urls)
}

func TestListingURLsEmptyPage(t *testing.T) {
	p := newTestParser(t)
	urls, err := p.ListingURLs("<html><body><p>no products</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestProduct(t *testing.T) {
	p := newTestParser(t)
	product, err := p.Product(detailHTML, "https://ggstore.com/products/retro-controller-case")
	require.NoError(t, err)

	assert.Equal(t, "retro-controller-case", product.ID)
	assert.Equal(t, "Retro Controller Case", product.Name)
	require.NotNil(t, product.Price)
	assert.Equal(t, "$34.90", *product.Price)
	require.NotNil(t, product.Category)
	assert.Equal(t, "CARRY CASES", *product.Category)

	// case_front appears as src and twice in srcset; one record survives.
	require.Len(t, product.Images, 3)
	assert.Equal(t, "https://ggstore.com/cdn/shop/files/case_front.jpg?v=11", product.Images[0].OriginalURL)
	assert.Equal(t, "https://ggstore.com/cdn/shop/files/case_back.png?v=12", product.Images[1].OriginalURL)
	assert.Equal(t, "https://ggstore.com/cdn/shop/files/case_side.jpg?v=13", product.Images[2].OriginalURL)

	assert.Equal(t, "retro-controller-case_01.jpg", product.Images[0].Filename)
	assert.Equal(t, "retro-controller-case_02.png", product.Images[1].Filename)
	assert.Equal(t, "retro-controller-case_03.jpg", product.Images[2].Filename)
}

func TestProductMissingNameFailsLoudly(t *testing.T) {
	p := newTestParser(t)
	_, err := p.Product("<html><head></head><body><span class=\"price\">$5</span></body></html>",
		"https://ggstore.com/products/nameless")
	require.ErrorIs(t, err, ErrParse)
}

func TestProductNameFallbacks(t *testing.T) {
	p := newTestParser(t)

	t.Run("TitleWithSiteSuffix", func(t *testing.T) {
		product, err := p.Product("<html><head><title>Desk Mat XL – GGStore</title></head><body></body></html>",
			"https://ggstore.com/products/desk-mat-xl")
		require.NoError(t, err)
		assert.Equal(t, "Desk Mat XL", product.Name)
	})

	t.Run("H1Only", func(t *testing.T) {
		product, err := p.Product("<html><body><h1>Pixel Keycap Set</h1></body></html>",
			"https://ggstore.com/products/pixel-keycap-set")
		require.NoError(t, err)
		assert.Equal(t, "Pixel Keycap Set", product.Name)
	})
}

func TestProductOptionalFieldsAbsent(t *testing.T) {
	p := newTestParser(t)
	product, err := p.Product("<html><head><title>Mystery Item</title></head><body></body></html>",
		"https://ggstore.com/products/mystery-item")
	require.NoError(t, err)
	assert.Nil(t, product.Price)
	assert.Nil(t, product.Category)
	assert.Empty(t, product.Images)
}

func TestProductCategorySkipsAllCollection(t *testing.T) {
	p := newTestParser(t)
	html := `<html><head><title>Thing</title></head><body>
		<a href="/collections/all">All</a>
	</body></html>`
	product, err := p.Product(html, "https://ggstore.com/products/thing")
	require.NoError(t, err)
	assert.Nil(t, product.Category)
}
