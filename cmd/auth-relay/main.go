package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/umodzirx/auth-relay/pkg"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/prettylog"
	"github.com/umodzirx/auth-relay/pkg/relay"
	"github.com/umodzirx/auth-relay/pkg/util"
	"github.com/umodzirx/auth-relay/pkg/webui"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(slog.LevelDebug))
		slog.SetDefault(logger)
	} else {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	config, err := relay.LoadConfig(util.GetEnv("RELAY_CONFIG_PATH", "relay.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	// key used to authenticate against the identity provider, missing or
	// unparseable key stops the server
	clientKey, err := idp.LoadSigningKey(os.Getenv("CLIENT_KEY_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	provider, err := idp.NewClient(config.Provider, clientKey)
	if err != nil {
		log.Fatal(err)
	}

	relayOptions := []relay.Option{
		relay.WithIdentityProvider(provider),
		relay.WithSigningKeyFromJWK(os.Getenv("SESSION_KEY_PATH"), relay.UseMockIfNotAvailable),
	}

	if addr := os.Getenv("VALKEY_ADDR"); addr != "" {
		relayOptions = append(relayOptions, relay.WithValkeyExchangeStore(addr))
	}

	if dsn := os.Getenv("STAFFDIR_POSTGRES_URL"); dsn != "" {
		relayOptions = append(relayOptions, relay.WithPostgresDirectory(dsn))
	}

	relayServer, err := relay.NewServer(config, relayOptions...)
	if err != nil {
		log.Fatal(err)
	}

	root := echo.New()
	root.HideBanner = true
	root.Validator = &CustomValidator{validator: validator.New()}
	root.Use(middleware.Recover())

	relayServer.MountRoutes(root.Group("/auth"))
	webui.MountRoutes(root.Group("/web"), relayServer)

	addr := util.GetEnv("SERVER_ADDR", ":5000")
	slog.Info("Starting auth relay", "version", pkg.Version, "addr", addr)
	log.Fatal(root.Start(addr))
}
