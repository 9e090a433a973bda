package main

import (
	"log"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/router"
	"kingchat-backend/internal/database"
	"kingchat-backend/internal/env"
	"kingchat-backend/internal/hub"
	"kingchat-backend/internal/ingress"
	"kingchat-backend/internal/line"
	"kingchat-backend/internal/queue"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

func main() {
	env.MustHave(env.Required...)

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	// Appends made here are published to Redis; the admin servers fan
	// them out to their console sessions.
	storeService := store.New(db)
	storeService.SetNotifier(hub.NewPublisher())

	registryService := registry.New(db)
	lineClient := line.NewClient()
	ingressService := ingress.New(registryService, storeService, lineClient)

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		api.Services{
			Registry: registryService,
			Store:    storeService,
			Ingress:  ingressService,
		},
		nil,
		router.UtilsRoutes("/api/webhook/v1"),
		router.WebhookRoutes("/api/webhook/v1"),
	)

	server.Run()
}
