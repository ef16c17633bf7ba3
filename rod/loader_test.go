package rod_test

import (
	"testing"

	"github.com/bkuiper/adwatch"
	"github.com/bkuiper/adwatch/rod"
	"github.com/stretchr/testify/assert"
)

// Ensure Loader implements adwatch.Loader.
var _ adwatch.Loader = (*rod.Loader)(nil)

func TestCacheBust(t *testing.T) {
	t.Parallel()

	t.Run("appends to a bare URL", func(t *testing.T) {
		t.Parallel()

		got := rod.CacheBust("https://example-market.test/cars", "tok")
		assert.Equal(t, "https://example-market.test/cars?_cb=tok", got)
	})

	t.Run("extends an existing query", func(t *testing.T) {
		t.Parallel()

		got := rod.CacheBust("https://example-market.test/cars?sort=date", "tok")
		assert.Equal(t, "https://example-market.test/cars?sort=date&_cb=tok", got)
	})

	t.Run("places the token before the fragment", func(t *testing.T) {
		t.Parallel()

		got := rod.CacheBust("https://example-market.test/l/auto-s/#f:10898|sortBy:DATE", "tok")
		assert.Equal(t, "https://example-market.test/l/auto-s/?_cb=tok#f:10898|sortBy:DATE", got)
	})

	t.Run("leaves the filter fragment untouched", func(t *testing.T) {
		t.Parallel()

		url := "https://example-market.test/l/auto-s/?view=list#offeredSince:Vandaag"
		got := rod.CacheBust(url, "tok")
		assert.Contains(t, got, "#offeredSince:Vandaag")
		assert.Contains(t, got, "view=list&_cb=tok")
	})
}
