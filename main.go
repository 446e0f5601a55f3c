package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"botflow/bot"
	"botflow/bot/flow"
	"botflow/bot/flow/handlers"
	"botflow/bot/flow/telegram"
	"botflow/internal/config"
	repository "botflow/internal/database"
	"botflow/internal/http-server/api"
	"botflow/internal/lib/logger"
	"botflow/internal/lib/sl"
	"botflow/internal/session"
	"botflow/internal/tenantdb"
	"botflow/internal/webhook"
	"botflow/internal/ws"
)

// apiCore aggregates everything the HTTP layer needs from the rest of the
// process: token auth from the repository and event submission from the
// dispatcher.
type apiCore struct {
	*repository.MongoDB
	*flow.Dispatcher
}

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	lg.Info("starting botflow", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
		return
	}
	if db == nil {
		lg.Error("mongo is required for bot definitions, enable it in config")
		return
	}
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	sessions, err := session.NewRedisStore(context.Background(), conf.Redis.URL, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("redis client")
		return
	}
	defer sessions.Close()

	tenants := tenantdb.NewGateway(lg)
	defer tenants.Close()

	hub := ws.NewHub(lg)
	go hub.Run()

	// Initialize Telegram bot if enabled
	var tgBot *bot.TgBot
	var messenger flow.Messenger
	if conf.Telegram.Enabled {
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
		} else {
			messenger = telegram.NewMessenger(tgBot.API())
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	registry := handlers.DefaultRegistry(handlers.Deps{
		Messenger: messenger,
		HTTP:      webhook.NewClient(lg),
		Sessions:  sessions,
		TenantDB:  tenants,
		Blocks:    db,
		Log:       lg,
	})

	engine := flow.NewEngine(db, sessions, registry, lg,
		flow.WithMaxSteps(conf.Engine.MaxSteps),
		flow.WithErrorReporter(hub),
	)

	dispatcher := flow.NewDispatcher(engine, lg,
		time.Duration(conf.Engine.PassTimeoutSeconds)*time.Second,
		conf.Engine.QueueSize,
	)
	defer dispatcher.Stop()

	if tgBot != nil {
		tgBot.SetFlowRoute(conf.Telegram.BotID, dispatcher)
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot error", slog.String("error", err.Error()))
			}
		}()
	}

	// *** blocking start with http server ***
	err = api.New(conf, lg, &apiCore{db, dispatcher}, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
