package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"furbook.app/petpals/database"
	"furbook.app/petpals/handlers"
	"furbook.app/petpals/hub"
	"furbook.app/petpals/routes"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

func runGateway(ctx context.Context, logger zerolog.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.AuthDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, database.AuthSchema); err != nil {
		return err
	}

	tokens := services.NewTokenIssuer(cfg.Secret(), cfg.JWTTTL)
	h := hub.New(services.NewGroupClient(cfg.MessageServiceURL, cfg.ServiceCallTimeout), logger)
	defer h.Shutdown()

	public, err := routes.CreateGatewayRoutes(routes.GatewayDeps{
		Creds:  store.NewCredentialStore(db),
		Users:  services.NewUserClient(cfg.UserServiceURL, cfg.ServiceCallTimeout),
		Tokens: tokens,
		Hub:    h,
		Upstreams: routes.Upstreams{
			User:    cfg.UserServiceURL,
			Post:    cfg.PostServiceURL,
			Message: cfg.MessageServiceURL,
			Noti:    cfg.NotiServiceURL,
		},
	}, routes.NewServiceRouter("gateway", logger))
	if err != nil {
		return err
	}
	internal := routes.CreateInternalRoutes(h, routes.NewServiceRouter("gateway_internal", logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(gctx, logger, cfg.GatewayAddr, routes.WithGatewayMiddleware(public, cfg.CorsOrigins))
	})
	g.Go(func() error {
		return serveHTTP(gctx, logger, cfg.GatewayInternalAddr, internal)
	})
	return g.Wait()
}

func runUser(ctx context.Context, logger zerolog.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.UserDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, database.UserSchema); err != nil {
		return err
	}

	router := routes.CreateUserRoutes(
		store.NewUserStore(db),
		store.NewFriendStore(db),
		services.NewGroupClient(cfg.MessageServiceURL, cfg.ServiceCallTimeout),
		services.NewNotiClient(cfg.NotiServiceURL, cfg.ServiceCallTimeout),
		routes.NewServiceRouter("user", logger),
	)
	return serveHTTP(ctx, logger, cfg.UserAddr, router)
}

func runPost(ctx context.Context, logger zerolog.Logger) error {
	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(disconnectCtx)
	}()
	db := client.Database(cfg.MongoDB)
	if err := database.EnsurePostIndexes(ctx, db); err != nil {
		return err
	}

	router := routes.CreatePostRoutes(handlers.PostDeps{
		Posts:    store.NewPostStore(db),
		Users:    services.NewUserClient(cfg.UserServiceURL, cfg.ServiceCallTimeout),
		Noti:     services.NewNotiClient(cfg.NotiServiceURL, cfg.ServiceCallTimeout),
		Geocoder: services.NewNominatim(cfg.GeocoderURL, cfg.UserAgent, cfg.ServiceCallTimeout),
	}, routes.NewServiceRouter("post", logger))
	return serveHTTP(ctx, logger, cfg.PostAddr, router)
}

func runMessage(ctx context.Context, logger zerolog.Logger) error {
	pool, err := database.ConnectPool(ctx, cfg.MessageDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.MigratePool(ctx, pool, database.MessageSchema); err != nil {
		return err
	}

	router := routes.CreateMessageRoutes(handlers.MessageDeps{
		Groups:   store.NewGroupStore(pool),
		Messages: store.NewMessageStore(pool),
		Users:    services.NewUserClient(cfg.UserServiceURL, cfg.ServiceCallTimeout),
		Push:     services.NewPushClient(cfg.GatewayURL, cfg.ServiceCallTimeout),
	}, routes.NewServiceRouter("message", logger))
	return serveHTTP(ctx, logger, cfg.MessageAddr, router)
}

func runNoti(ctx context.Context, logger zerolog.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.NotiDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, database.NotiSchema); err != nil {
		return err
	}

	fcm, err := services.NewFCMPusher(ctx, cfg.FirebaseCredentialsPath, logger)
	if err != nil {
		return err
	}

	router := routes.CreateNotiRoutes(handlers.NotiDeps{
		Notis:   store.NewNotificationStore(db),
		Devices: store.NewDeviceStore(db),
		Live:    services.NewPushClient(cfg.GatewayURL, cfg.ServiceCallTimeout),
		Mobile:  fcm,
	}, routes.NewServiceRouter("noti", logger))
	return serveHTTP(ctx, logger, cfg.NotiAddr, router)
}

func migrateAll(ctx context.Context, logger zerolog.Logger) error {
	for _, step := range []struct {
		name   string
		dsn    string
		schema string
	}{
		{"auth", cfg.AuthDSN, database.AuthSchema},
		{"user", cfg.UserDSN, database.UserSchema},
		{"noti", cfg.NotiDSN, database.NotiSchema},
	} {
		db, err := database.ConnectDB(ctx, step.dsn)
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		err = database.Migrate(ctx, db, step.schema)
		db.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		logger.Info().Str("schema", step.name).Msg("schema applied")
	}

	pool, err := database.ConnectPool(ctx, cfg.MessageDSN)
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}
	defer pool.Close()
	if err := database.MigratePool(ctx, pool, database.MessageSchema); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	logger.Info().Str("schema", "message").Msg("schema applied")

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer client.Disconnect(context.Background())
	if err := database.EnsurePostIndexes(ctx, client.Database(cfg.MongoDB)); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	logger.Info().Str("schema", "post").Msg("indexes ensured")
	return nil
}
