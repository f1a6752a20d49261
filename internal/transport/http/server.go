package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/auth"
	"github.com/sickleconnect/server/internal/config"
	"github.com/sickleconnect/server/internal/core"
	"github.com/sickleconnect/server/internal/service/chat"
	"github.com/sickleconnect/server/internal/service/feed"
	"github.com/sickleconnect/server/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket endpoint and health
// check behind a single gin engine.
func NewServer(
	registry *core.Registry,
	broadcast *core.Broadcaster,
	authService *auth.Service,
	chatService *chat.Service,
	feedService *feed.Service,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(NewWSHandler(registry, broadcast, cfg.SendBuffer, logger)))

	authHandlers := NewAuthHandlers(authService, logger)
	postHandlers := NewPostHandlers(feedService, st, logger)
	chatHandlers := NewChatHandlers(chatService, st, registry, logger)

	api := router.Group("/api")
	api.POST("/auth/register", authHandlers.Register)
	api.POST("/auth/login", authHandlers.Login)

	authed := api.Group("", AuthMiddleware(authService, logger))
	authed.GET("/posts", postHandlers.ListPosts)
	authed.POST("/posts", postHandlers.CreatePost)
	authed.POST("/posts/:postId/like", postHandlers.ToggleLike)
	authed.GET("/posts/:postId/comments", postHandlers.ListComments)
	authed.POST("/posts/:postId/comments", postHandlers.AddComment)
	authed.DELETE("/posts/:postId", postHandlers.DeletePost)

	authed.GET("/chat/chats", chatHandlers.ListConversations)
	authed.GET("/chat/users", chatHandlers.ListUsers)
	authed.GET("/chat/with/:userId", chatHandlers.OpenConversation)
	authed.POST("/chat/:chatId/messages", chatHandlers.SendMessage)
	authed.PUT("/chat/:chatId/read", chatHandlers.MarkRead)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
