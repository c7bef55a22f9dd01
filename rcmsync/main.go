package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/Fadil369/brainsait-rcm-sub002/conf"
	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/notify"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/platform"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/scrape"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/session"
	syncsvc "github.com/Fadil369/brainsait-rcm-sub002/rcmsync/sync"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/transform"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/utils"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/web"
)

// App version; set at build time via ldflags.
var version = "latest"

func main() {
	app := setUpApp()
	if err := app.Run(os.Args); err != nil {
		log.Sync.Fatal(err)
	}
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = "rcm-sync"
	app.Usage = "Synchronize OASES claim rejections into the RCM platform"
	app.Version = version

	app.Commands = []cli.Command{
		{
			Name:  "start-service",
			Usage: "Run the sync service with its schedule and control plane",
			Action: func(c *cli.Context) error {
				return startService()
			},
		},
		{
			Name:  "sync-once",
			Usage: "Perform a single synchronization run and exit",
			Action: func(c *cli.Context) error {
				return syncOnce()
			},
		},
	}

	return app
}

type wiring struct {
	service *syncsvc.Service
	store   *audit.PostgresStore
	reader  audit.Reader
}

func wire(ctx context.Context) (*wiring, error) {
	creds := models.Credentials{
		Username: conf.GetEnv("OASES_USERNAME"),
		Password: conf.GetEnv("OASES_PASSWORD"),
		BaseURL:  conf.GetEnv("OASES_BASE_URL"),
	}
	if creds.BaseURL == "" || creds.Username == "" {
		return nil, fmt.Errorf("OASES_BASE_URL and OASES_USERNAME are required")
	}
	platformURL := conf.GetEnv("PLATFORM_API_URL")
	if platformURL == "" {
		return nil, fmt.Errorf("PLATFORM_API_URL is required")
	}

	w := &wiring{}

	sinks := []audit.Logger{audit.NewLogrusSink()}
	if dbURL := conf.GetEnv("AUDIT_DATABASE_URL"); dbURL != "" {
		store, err := audit.OpenPostgresStore(ctx, dbURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
		w.store = store
		w.reader = store
	}
	auditor := audit.NewTee(sinks...)

	cfg := models.SyncConfig{
		Enabled:         utils.GetEnvBool("SYNC_ENABLED", true),
		IntervalMinutes: utils.GetEnvInt("SYNC_INTERVAL_MINUTES", 0),
		LookbackDays:    utils.GetEnvInt("SYNC_LOOKBACK_DAYS", 0),
		Statuses:        utils.GetEnvList("SYNC_STATUSES", nil),
		NotifyTarget:    conf.GetEnv("NOTIFY_DASHBOARD_URL"),
	}

	client := session.NewClient(creds, auditor)
	extractor := scrape.New(client, auditor)
	sink := platform.NewClient(platformURL, conf.GetEnv("PLATFORM_API_TOKEN"))
	notifier := notify.New(conf.GetEnv("NOTIFY_WEBHOOK_URL"))

	w.service = syncsvc.NewService(cfg, client, extractor,
		transform.New(), sink, auditor, notifier)
	return w, nil
}

func startService() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := wire(ctx)
	if err != nil {
		return err
	}
	if w.store != nil {
		defer w.store.Close()
	}

	web.Version = version
	api := web.NewAPI(w.service, w.reader)
	srv := &http.Server{
		Addr:         listenAddr(),
		Handler:      web.NewRouter(api),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.API.WithField("addr", srv.Addr).Info("control plane listening")

	go w.service.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Sync.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.API.WithError(err).Error("control plane server stopped")
	}

	w.service.Stop(context.Background())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func syncOnce() error {
	ctx := context.Background()
	w, err := wire(ctx)
	if err != nil {
		return err
	}
	if w.store != nil {
		defer w.store.Close()
	}
	defer w.service.Stop(ctx)

	result, err := w.service.RunSync(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func listenAddr() string {
	if addr := conf.GetEnv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}
