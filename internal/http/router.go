package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/config"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http/handler"
	httpmiddleware "github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, linkHandler *handler.LinkHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", linkHandler.Hello)
	r.GET("/linked-role", linkHandler.LinkedRole)

	discord := r.Group("/discord")
	{
		discord.GET("/redirect", linkHandler.DiscordRedirect)
	}

	if cfg.PatreonEnabled() {
		patreon := r.Group("/patreon")
		{
			patreon.GET("/linked-role", linkHandler.PatreonLinkedRole)
			patreon.GET("/redirect", linkHandler.PatreonRedirect)
		}
	}

	r.POST("/update-metadata", linkHandler.UpdateMetadata)
	r.GET("/get-metadata", linkHandler.GetMetadata)
	r.GET("/get-schema", linkHandler.GetSchema)

	return r
}
