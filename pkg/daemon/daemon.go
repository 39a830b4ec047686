package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/events"
	"github.com/kematusik/tomoscan/pkg/history"
	"github.com/kematusik/tomoscan/pkg/pv"
	"github.com/kematusik/tomoscan/pkg/scan"
)

// historyRetentionDays bounds how long completed runs are kept.
const historyRetentionDays = 90

var (
	conf  config.Config
	hist  *history.DB
	hub   *events.EventHub
	pvs   *pv.Client
	mgr   *Manager
	sched *Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.PUT("/scan", startScan)
	router.DELETE("/scan", abortScan)
	router.GET("/plan", getPlan)
	router.GET("/frame-time", getFrameTime)
	router.GET("/config", getConfig)
	router.PUT("/allow-overwrite", setAllowOverwrite)
	router.PUT("/return-to-start", setReturnToStart)
	router.PUT("/frame-tags", setFrameTags)
	router.GET("/runs", getRuns)
	router.GET("/runs/:id", getRun)
	router.GET("/schedule", getSchedule)
	router.PUT("/schedule", setSchedule)
	router.DELETE("/schedule", disableSchedule)
	router.PUT("/schedule/skip", skipSchedule)
	router.PUT("/schedule/postpone", postponeSchedule)
	router.GET("/pv/:name", getPV)
	router.PUT("/pv/:name", putPV)
	router.GET("/events/ws", streamEvents)
	router.GET("/version", getVersion)

	return router
}

func newInstrumentConn(backend string) (pv.Connection, error) {
	switch backend {
	case config.BackendSim:
		sim := pv.NewSim(pv.Defaults())
		pv.NewDetector(sim)
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown instrument backend %q", backend)
	}
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	conn, err := newInstrumentConn(conf.Backend())
	if err != nil {
		logrus.Fatal(err)
	}
	pvs = pv.NewClient(conn)

	hist, err = history.Open(conf.HistoryPath())
	if err != nil {
		logrus.Fatalf("failed to open history store: %v", err)
	}
	if err := hist.MarkInterrupted(); err != nil {
		logrus.Errorf("failed to fail interrupted runs: %v", err)
	}
	if err := hist.CleanupOldRuns(historyRetentionDays); err != nil {
		logrus.Errorf("failed to clean up old runs: %v", err)
	}

	hub = events.NewEventHub()

	step, err := scan.NewStepScan(pvs, scan.StepScanOptions{
		AllowOverwrite: conf.AllowOverwrite(),
		ReturnToStart:  conf.ReturnToStart(),
	})
	if err != nil {
		logrus.Fatalf("failed to set up instrument: %v", err)
	}
	seq := scan.NewSequencer(step, conf.FrameTags())
	mgr = NewManager(conf, seq, step, pvs, hist, hub)

	sched = NewScheduler(runScheduledScan, scheduledScanReady, onScheduleUpcoming, onScheduleError)
	applySchedule()
	sched.Start()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			applySchedule()
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler")
	sched.Stop()

	if err := mgr.Abort(); err == nil {
		logrus.Info("waiting for active scan to clean up")
		if !mgr.Wait(time.Minute) {
			logrus.Error("active scan did not stop in time")
		}
	} else if !errors.Is(err, scan.ErrNoScanRunning) {
		logrus.Errorf("failed to abort active scan: %v", err)
	}

	logrus.Info("closing history store")
	if err := hist.Close(); err != nil {
		logrus.Errorf("failed to close history store: %v", err)
	}

	if err := pvs.Close(); err != nil {
		logrus.Errorf("failed to close instrument connection: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

// applySchedule pushes the configured cron expression into the
// scheduler, disabling it when the expression is empty.
func applySchedule() {
	expr := conf.ScheduleCron()
	if expr == "" {
		sched.Disable()
		return
	}
	if err := sched.Schedule(expr); err != nil {
		logrus.Errorf("invalid scan schedule %q: %v", expr, err)
	}
}

func runScheduledScan() error {
	id, err := mgr.Start(conf.SchedulePreset())
	if err != nil {
		return err
	}
	logrus.WithField("runID", id).Info("scheduled scan started")
	return nil
}

func scheduledScanReady() error {
	if id := mgr.RunID(); id != "" {
		return fmt.Errorf("scan %s is still running", id)
	}
	return nil
}

func onScheduleUpcoming(data any) {
	if runAt, ok := data.(time.Time); ok {
		logrus.Infof("scheduled scan will start at %s", runAt.Format(time.DateTime))
	}
}

func onScheduleError(data any) {
	if err, ok := data.(error); ok {
		logrus.Errorf("scheduled scan: %v", err)
	}
}
