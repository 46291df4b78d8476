package http

import (
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

const serviceName = "identity-service"

// Tracing starts a Datadog span per request; downstream store spans and
// log.WithDD hang off it.
func Tracing() gin.HandlerFunc {
	return gintrace.Middleware(serviceName)
}
