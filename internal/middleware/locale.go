package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/i18n"
)

const CtxLocalizerKey = "localizer"

// Locale resolves the response language from ?lang= and Accept-Language.
func Locale(catalog *i18n.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := catalog.For(c.Query("lang"), c.GetHeader("Accept-Language"))
		c.Set(CtxLocalizerKey, loc)
		c.Header("Content-Language", loc.Locale())
		c.Next()
	}
}

// LocalizerFrom returns the request localizer set by Locale, or nil.
func LocalizerFrom(c *gin.Context) *i18n.Localizer {
	v, ok := c.Get(CtxLocalizerKey)
	if !ok {
		return nil
	}
	loc, _ := v.(*i18n.Localizer)
	return loc
}
