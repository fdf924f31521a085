package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"furbook.app/petpals/config"
	"furbook.app/petpals/database"
	"furbook.app/petpals/handlers"
	"furbook.app/petpals/observability"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("LostReminder: config")
	}
	observability.InitLogger("lost_reminder", cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("LostReminder: mongo connection failed")
	}
	defer client.Disconnect(context.Background())

	posts := store.NewPostStore(client.Database(cfg.MongoDB))
	noti := services.NewNotiClient(cfg.NotiServiceURL, cfg.ServiceCallTimeout)

	if _, err := handlers.SendLostPetReminders(ctx, posts, noti, time.Now().UTC(), cfg.ReminderAfter); err != nil {
		log.Error().Err(err).Msg("LostReminder: job failed")
		stop()
		os.Exit(1)
	}
}
