package main

import (
	"context"
	"flag"
	"log/syslog"
	"os"
	"os/signal"
	"time"

	"github.com/centbook/centbook"
	"github.com/centbook/centbook/cache"
	"github.com/centbook/centbook/persistent"
	"github.com/centbook/centbook/storage"
	"github.com/centbook/centbook/transport/rest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logrusys "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/spf13/afero"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
	_ "github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

func listenAndServe(
	ctx context.Context,
	bdb *buntdb.DB,
	db *bun.DB,
	redisClient *redis.Client,
	config serverConfig,
) func() error {
	sessionStore := &persistent.SessionStore{Buntdb: bdb}
	profileStore := &persistent.ProfileStore{DB: db}
	avatarBucket := &storage.Bucket{
		Fs:      afero.NewBasePathFs(afero.NewOsFs(), config.avatarDir),
		BaseUrl: config.avatarBaseUrl,
	}
	cachedProfiles := &cache.Profiles{Store: profileStore, Client: redisClient}

	profileService := &centbook.ProfileService{Store: profileStore, Cache: cachedProfiles}
	avatarService := &centbook.AvatarService{
		Files:    avatarBucket,
		Profiles: profileStore,
		Cache:    cachedProfiles,
	}

	authController := rest.AuthController{SessionStore: sessionStore}
	sessionController := rest.SessionController{Store: sessionStore}
	profileController := rest.ProfileController{
		Reader:  cachedProfiles,
		Service: profileService,
		Avatars: avatarService,
	}

	server := fiber.New()
	server.Use(rest.LogHandler())

	api := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: rest.ErrorHandler,
	})

	allowOrigins := "https://centbook.pl"
	if config.debug {
		allowOrigins += ", http://localhost:3000"
	}
	api.Use(cors.New(cors.Config{AllowOrigins: allowOrigins}))

	requestAuthorizer := rest.RequestAuthorizer(sessionStore)
	api.Get("/status", monitor.New())
	authController.InstallTo(api)
	sessionController.InstallTo(requestAuthorizer, api)
	profileController.InstallTo(requestAuthorizer, api)

	server.Mount("/api/", api)
	server.Use(rest.NotFoundHandler)

	var addr string
	if config.debug {
		addr = "127.0.0.1:2140"
	} else {
		addr = ":2140"
	}
	go server.Listen(addr)

	return func() error {
		return server.Shutdown()
	}
}

func setupLogger(verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	syslogHook, err := logrusys.NewSyslogHook("", "", syslog.LOG_USER, "centbook_backend")
	if err != nil {
		logrus.WithError(err).Warningln("Could not create syslog hook.")
		return
	}
	logrus.AddHook(syslogHook)
}

type serverConfig struct {
	pgDsn         string
	redisAddr     string
	sessionsDb    string
	avatarDir     string
	avatarBaseUrl string
	debug         bool
}

func configFromEnv() serverConfig {
	requireEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			logrus.Fatalln(key + " not set!")
		}
		return value
	}
	envOr := func(key string, fallback string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return fallback
	}
	return serverConfig{
		pgDsn:         requireEnv("POSTGRES_DSN"),
		redisAddr:     envOr("REDIS_ADDR", "127.0.0.1:6379"),
		sessionsDb:    envOr("SESSIONS_DB", "sessions.db"),
		avatarDir:     envOr("AVATAR_DIR", "./avatars"),
		avatarBaseUrl: requireEnv("AVATAR_BASE_URL"),
		debug:         os.Getenv("DEBUG") == "true",
	}
}

func awaitInterruption() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	config := configFromEnv()
	setupLogger(config.debug)
	logrus.Infoln("Starting backend.")

	bdb, err := buntdb.Open(config.sessionsDb)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open buntdb.")
	}
	defer bdb.Close()

	logrus.Infoln("Opening database.")
	pg := persistent.PgOpen(context.Background(), config.pgDsn)
	if config.debug {
		pg.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	defer pg.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: config.redisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Fatalln("Could not ping redis.")
	}
	defer redisClient.Close()

	logrus.Infoln("Starting listening... To shut down use ^C")
	shutdown := listenAndServe(context.Background(), bdb, pg, redisClient, config)

	awaitInterruption()

	logrus.Infoln("Shutting down...")
	if err := shutdown(); err != nil {
		logrus.WithError(err).Warningln("Fiber shutdown failed.")
	}
	logrus.Exit(0)
}
