package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GrSkiy/psycho-backend/internal/auth"
	"github.com/GrSkiy/psycho-backend/internal/config"
	chatws "github.com/GrSkiy/psycho-backend/internal/handler/chat"
	"github.com/GrSkiy/psycho-backend/internal/handler/chats"
	"github.com/GrSkiy/psycho-backend/internal/handler/diary"
	middlewarePkg "github.com/GrSkiy/psycho-backend/internal/middleware"
	"github.com/GrSkiy/psycho-backend/internal/model/persona"
	chatservice "github.com/GrSkiy/psycho-backend/internal/service/chat"
)

// Deps carries everything the router needs to wire the endpoints.
type Deps struct {
	Users chatws.UserProvisioner
	Store interface {
		chatservice.Store
		chats.ChatLister
	}
	Completer  chatservice.Completer
	Dispatcher chatservice.Dispatcher
	Entries    diary.EntryStore
	Identity   auth.IdentityResolver
	Persona    persona.Persona
	ChatCfg    config.ChatConfig
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	wsHandler := chatws.New(deps.Users, deps.Store, deps.Completer, deps.Dispatcher,
		deps.Identity, deps.Persona, deps.ChatCfg)
	wsHandler.RegisterRoutes(r)

	chatsHandler := chats.New(deps.Store)
	diaryHandler := diary.New(deps.Entries)

	r.Route("/api", func(api chi.Router) {
		chatsHandler.RegisterRoutes(api)
		diaryHandler.RegisterRoutes(api)
	})

	return r
}
