package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"ykjam/cardpay/pkg/gateway"
	"ykjam/cardpay/pkg/journal"
	"ykjam/cardpay/pkg/web"
)

func run() error {
	log.Info("Starting card payment daemon")
	signalChan := make(chan os.Signal, 1)
	quitChan := make(chan interface{})
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	var configFile string
	var conf *config
	var err error
	err = godotenv.Load()
	if err != nil {
		log.WithError(err).Error("error loading .env, ignoring")
	}
	configFile = os.Getenv("CARDPAY_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.json"
	}

	conf, err = ReadConfig(configFile)
	if err != nil {
		log.WithError(err).WithField("config-file", configFile).Error("error loading configuration")
		return err
	}
	if conf.LogLevel != "" {
		level, lerr := log.ParseLevel(conf.LogLevel)
		if lerr != nil {
			log.WithError(lerr).Warn("unknown log level, keeping default")
		} else {
			log.SetLevel(level)
		}
	}

	var store journal.Journal
	if conf.RedisUrl != "" {
		store, err = journal.NewRedisJournal(conf.RedisUrl, "cardpay:attempt:", conf.JournalTTL())
		if err != nil {
			log.WithError(err).Error("error connecting journal")
			return err
		}
		log.Info("redis journal initialized")
	} else {
		store = journal.NewMemoryJournal(conf.JournalTTL())
		log.Warn("no redis url configured, attempts are kept in memory")
	}

	service := gateway.NewService(conf.GatewayBaseUrl, conf.GatewayTimeout())
	log.Info("service initialized")

	// challenges outlive the submit request, so they hang off this context
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	hc := web.NewHandlerContext(web.Options{
		BaseContext:     baseCtx,
		APIKey:          conf.ApiKey,
		DefaultCurrency: conf.DefaultCurrency,
		Submitter:       service,
		Fetcher:         service,
		Hub:             web.NewChallengeHub(conf.PublicBaseUrl, conf.ChallengeTTL()),
		Tokens:          web.NewReturnTokens(conf.TokenSecret, "cardpayd", conf.ChallengeTTL()),
		Journal:         store,
	})

	server := http.Server{
		Addr:              conf.ListenAddress,
		Handler:           web.NewRouter(hc),
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      conf.GatewayTimeout() + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	var listener net.Listener
	listener, err = net.Listen("tcp", conf.ListenAddress)
	if err != nil {
		log.WithError(err).Error("error setting up listener")
		return err
	}
	log.WithField("listen", conf.ListenAddress).Info("Starting HTTP API server")
	go startServer(&server, listener)
	for {
		select {
		case <-quitChan:
			log.Warn("quit channel closed, closing listener")
			// dismisses every pending challenge
			cancelBase()
			err = server.Shutdown(context.Background())
			if err != nil {
				log.WithError(err).Error("error during HTTP server shutdown")
				return err
			}
			return nil
		case sig := <-signalChan:
			switch sig {
			case os.Interrupt, syscall.SIGTERM:
				log.Info("interrupt signal received, sending Quit signal")
				close(quitChan)
			}
		}
	}
}

func startServer(srv *http.Server, listener net.Listener) {
	err := srv.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP API server error")
	}
	log.Warn("closing HTTP API server")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
