package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/i18n"
)

func TestLocale(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog, err := i18n.New(i18n.DefaultLocale)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Locale(catalog))
	r.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, LocalizerFrom(c).Locale())
	})

	cases := []struct {
		query  string
		header string
		want   string
	}{
		{"", "", "en"},
		{"", "de-CH,de;q=0.9", "de"},
		{"?lang=fr", "de", "fr"},
		{"", "ja", "en"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/lang"+tc.query, nil)
		if tc.header != "" {
			req.Header.Set("Accept-Language", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, tc.want, w.Body.String(), "query=%q header=%q", tc.query, tc.header)
		require.Equal(t, tc.want, w.Header().Get("Content-Language"))
	}
}
