package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ardanlabs/conf"
	"github.com/metrolive/metrolive/app/rt-monitor/monitor"
	"github.com/metrolive/metrolive/business/data/alerts"
	"github.com/metrolive/metrolive/business/data/arrivals"
	"github.com/metrolive/metrolive/business/data/positions"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/foundation/database"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "RT_MONITOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		NATS struct {
			URL string `conf:"default:nats://127.0.0.1:4222"`
		}
		RT struct {
			FeedUrl          string `conf:"default:https://developer.trimet.org/ws/V1/VehiclePositions"`
			LoadEverySeconds int    `conf:"default:15"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Record real-time train positions, alerts and arrival predictions"
	const prefix = "RTMONITOR"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		if err := db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	// No ingestion starts until the schema is in place.
	sc, err := schema.Ensure(db)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	positionStore := positions.NewStore(sc)
	alertStore := alerts.NewStore(sc)
	arrivalStore := arrivals.NewStore(sc)

	// =========================================================================
	// Start NATS

	log.Printf("main: Connecting to nats at %s", cfg.NATS.URL)
	natsConn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connecting to nats at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConn.Close()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	listenerShutdown := make(chan bool)
	wg := sync.WaitGroup{}
	if err = monitor.StartArrivalListener(log, &wg, natsConn, arrivalStore, listenerShutdown); err != nil {
		return fmt.Errorf("starting arrival listener: %w", err)
	}

	err = monitor.RunFeedMonitorLoop(log, positionStore, alertStore,
		cfg.RT.FeedUrl, cfg.RT.LoadEverySeconds, shutdown)

	close(listenerShutdown)
	wg.Wait()
	return err
}
