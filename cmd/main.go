package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartdoor"
	"smartdoor/internal/door"
	"smartdoor/internal/fingerprint"
	"smartdoor/internal/handlers"
	"smartdoor/internal/logger"
	"smartdoor/internal/recognition"
	"smartdoor/internal/repository"
	"smartdoor/internal/repository/db"
	"smartdoor/internal/serialio"
	"smartdoor/internal/server"
	"smartdoor/internal/service"
	"smartdoor/internal/vault"

	"github.com/spf13/viper"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqlite, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlite.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire storage and services
	repos := repository.NewRepository(sqlite)
	codeVault, err := vault.New(viper.GetString("vault.key"))
	if err != nil {
		log.Fatalw("invalid vault key", "err", err)
	}
	if codeVault == nil {
		log.Warnw("vault disabled; passcode reveal will return empty codes")
	}
	services := service.NewService(repos, codeVault, viper.GetString("auth.signing_key"))

	hub := handlers.NewHub(log)

	// The transport opens without a dispatcher; the controller gets installed
	// once it exists, so no line can reach a half-built pipeline.
	transport := serialio.Open(serialConfig(), nil, log)
	defer transport.Close()

	frames := recognition.NewLatestFrame()

	// The scheduler's hit handler needs the controller and the controller's
	// state hook needs the scheduler. The scheduler is built first; it only
	// touches ctrl from its own goroutine, which starts after ctrl is set.
	var ctrl *door.Controller
	sched := recognition.NewScheduler(recognitionConfig(), recognition.Deps{
		Frames:   frames,
		Matcher:  recognition.DisabledMatcher{},
		Settings: services.Settings,
		Log:      log,
		OnStatus: func(status string) {
			hub.Broadcast("face_status", map[string]string{"status": status})
		},
		OnHit: func(name string, distance float64) {
			ctrl.OpenFace()
			conf := distance
			if err := services.AccessLog.Record(smartdoor.AccessEntry{
				Method:     smartdoor.MethodFace,
				Result:     smartdoor.ResultGranted,
				MaskedCode: name,
				Confidence: &conf,
			}); err != nil {
				log.Errorw("face_access_record_failed", "name", name, "err", err)
			}
		},
		OnVisual: func(o *smartdoor.Overlay) {
			hub.Broadcast("face_overlay", o)
		},
	})

	ctrl = door.New(transport, viper.GetInt("door.hold_time_sec"), door.Deps{
		Credentials: services.Passcodes,
		AccessLog:   services.AccessLog,
		Settings:    services.Settings,
		Log:         log,
		OnEvent: func(line string) {
			hub.Broadcast("serial_line", map[string]string{"line": line})
		},
		OnStateChange: func(s door.State) {
			// Recognition suspends while the door moves and restarts with a
			// clean slate once it has fully closed.
			if s == door.StateClosed {
				sched.Resume()
			} else {
				sched.Pause()
			}
			persisted := "open"
			if s == door.StateClosed {
				persisted = "close"
			}
			if err := services.Settings.SetDoorState(persisted); err != nil {
				log.Warnw("door_state_persist_failed", "state", persisted, "err", err)
			}
			hub.Broadcast("door_state", map[string]interface{}{
				"state":     s.String(),
				"connected": transport.IsConnected(),
			})
		},
	})
	defer ctrl.Shutdown()

	// Fingerprint provisioning shares the same serial line: it only sees
	// lines the controller fans out to it.
	fp := fingerprint.New(ctrl, fingerprintTimeouts(), func(line string) {
		hub.Broadcast("fingerprint", map[string]string{"line": line})
	})
	ctrl.AddListener(fp.Feed)

	transport.SetDispatcher(ctrl.HandleLine)

	apiHandler := handlers.NewHandler(services, ctrl, fp, hub, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "smartdoor.db")
		dbPath = "smartdoor.db"
	}
	return db.InitDB(dbPath)
}

func serialConfig() serialio.Config {
	cfg := serialio.Config{
		Port: viper.GetString("serial.port"),
		Baud: viper.GetInt("serial.baud"),
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	return cfg
}

func fingerprintTimeouts() fingerprint.Timeouts {
	return fingerprint.Timeouts{
		Enroll: viper.GetDuration("fingerprint.enroll_timeout"),
		Delete: viper.GetDuration("fingerprint.delete_timeout"),
		Query:  viper.GetDuration("fingerprint.query_timeout"),
	}
}

func recognitionConfig() recognition.Config {
	return recognition.Config{
		Period:        viper.GetDuration("recognition.period"),
		Threshold:     viper.GetFloat64("recognition.threshold"),
		MatchHold:     viper.GetDuration("recognition.match_hold"),
		MatchCooldown: viper.GetDuration("recognition.match_cooldown"),
		DenyCooldown:  viper.GetDuration("recognition.deny_cooldown"),
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
