package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Rdemo143/RenTO/internal/handlers"
	"github.com/Rdemo143/RenTO/internal/middleware"
	"github.com/Rdemo143/RenTO/internal/observability"
)

type Config struct {
	ServiceName       string
	RateLimitRequests int
	RateLimitWindow   string
	RequestTimeout    time.Duration
}

func NewRouter(
	cfg Config,
	verifier middleware.TokenVerifier,
	chatH *handlers.ChatHandler,
	attachH *handlers.AttachmentHandler,
	ws http.Handler,
) http.Handler {

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(middleware.Recovery())
	if cfg.RateLimitRequests > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	r.Get("/health/live", observability.HealthLiveHandler)

	// The socket authenticates itself before upgrading and must not inherit
	// the request timeout.
	if ws != nil {
		r.Method(http.MethodGet, "/ws", ws)
	}

	r.Group(func(p chi.Router) {
		if cfg.RequestTimeout > 0 {
			p.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		p.Use(middleware.Auth(verifier))

		convPath := "/conversations"
		p.Post(convPath, chatH.CreateConversation)
		p.Get(convPath, chatH.ListConversations)
		p.Get(convPath+"/{id}/messages", chatH.ListMessages)

		msgPath := "/messages"
		p.Post(msgPath, chatH.SendMessage)
		p.Delete(msgPath, chatH.DeleteMessages)
		p.Put(msgPath+"/read", chatH.MarkRead)
		p.Get(msgPath+"/unread-count", chatH.UnreadCount)

		p.Post("/attachments", attachH.Upload)

		// Route names used by existing clients.
		p.Route("/chat", func(c chi.Router) {
			c.Post("/conversations", chatH.CreateConversation)
			c.Get("/conversations", chatH.ListConversations)
			c.Get("/conversations/{id}/messages", chatH.ListMessages)
			c.Post("/send", chatH.SendMessage)
			c.Put("/read", chatH.MarkRead)
			c.Delete("/delete", chatH.DeleteMessages)
			c.Get("/unread", chatH.UnreadCount)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
