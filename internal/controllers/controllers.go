package controllers

import (
	"babcia/config"
	"babcia/internal/events"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/state"

	autoscanController "babcia/internal/controllers/autoscan"
	roomsController "babcia/internal/controllers/rooms"
	scanController "babcia/internal/controllers/scan"
	verifyController "babcia/internal/controllers/verify"
)

type Controllers struct {
	Rooms    roomsController.RoomsControllerInterface
	Scan     scanController.ScanControllerInterface
	Verify   verifyController.VerifyControllerInterface
	Autoscan autoscanController.AutoscanControllerInterface
}

func New(
	store *state.Store,
	services services.Service,
	repos repositories.Repository,
	publisher events.Publisher,
	config config.Config,
) Controllers {
	scan := scanController.New(services, repos)
	verify := verifyController.New(services, repos)
	autoscan := autoscanController.New(store, services.Scheduler, services, repos, scan, publisher, config)

	return Controllers{
		Rooms:    roomsController.New(store, services, repos, scan, verify, autoscan, publisher, config),
		Scan:     scan,
		Verify:   verify,
		Autoscan: autoscan,
	}
}
