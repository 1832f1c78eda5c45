package middleware

import (
	"babcia/config"
	"babcia/internal/logger"
	"babcia/internal/services"
)

type Middleware struct {
	Config config.Config
	auth   *services.AuthService
	log    logger.Logger
}

func New(config config.Config, services services.Service) Middleware {
	return Middleware{
		Config: config,
		auth:   services.Auth,
		log:    logger.New("middleware"),
	}
}
