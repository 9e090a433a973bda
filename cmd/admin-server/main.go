package main

import (
	"context"
	"log"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/router"
	"kingchat-backend/internal/auth"
	"kingchat-backend/internal/database"
	"kingchat-backend/internal/dispatch"
	"kingchat-backend/internal/env"
	"kingchat-backend/internal/hub"
	internaljwt "kingchat-backend/internal/jwt"
	"kingchat-backend/internal/line"
	"kingchat-backend/internal/queue"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

func main() {
	env.MustHave(env.Required...)
	internaljwt.Init()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	// All appends, local and remote, reach the hub through the Redis
	// channel. The store publishes; the bridge feeds the hub.
	storeService := store.New(db)
	storeService.SetNotifier(hub.NewPublisher())

	liveHub := hub.New(storeService)
	go hub.NewBridge(liveHub).Run(context.Background())

	registryService := registry.New(db)
	lineClient := line.NewClient()
	dispatchService := dispatch.New(registryService, storeService, lineClient)
	authService := auth.New(db)

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		api.Services{
			Registry: registryService,
			Store:    storeService,
			Dispatch: dispatchService,
			Auth:     authService,
		},
		liveHub,
		router.UtilsRoutes("/api/admin/v1"),
		router.AuthRoutes("/api/admin/v1"),
		router.AccountRoutes("/api/admin/v1"),
		router.ConversationRoutes("/api/admin/v1"),
		router.ConversationWebsocketRoutes("/api/admin/v1"),
	)

	server.Run()
}
