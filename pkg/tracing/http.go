package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// untracedPaths are health checks and metric scrapes.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinMiddleware starts a server span per API request, named after the method and route template
// so that /api/v1/rules/:id stays one span name across rule IDs.
func GinMiddleware(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	opts = append([]otelgin.Option{
		otelgin.WithGinFilter(func(c *gin.Context) bool {
			return !untracedPaths[c.Request.URL.Path]
		}),
		otelgin.WithSpanNameFormatter(spanName),
	}, opts...)
	return otelgin.Middleware(serviceName, opts...)
}

func spanName(c *gin.Context) string {
	if c.FullPath() == "" {
		return ""
	}
	return c.Request.Method + " " + c.FullPath()
}
