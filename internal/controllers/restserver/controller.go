package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/iopestimator/internal/archive"
	"github.com/chrissnell/iopestimator/internal/log"
	"github.com/chrissnell/iopestimator/pkg/config"
	"github.com/chrissnell/iopestimator/pkg/estimate"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReportStore is the part of the archive the handlers need
type ReportStore interface {
	Save(ctx context.Context, readings []float64, report *estimate.Report) (archive.Record, error)
	Get(ctx context.Context, id string) (archive.Record, error)
	List(ctx context.Context, limit int) ([]archive.Record, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	engine     estimate.Engine
	store      ReportStore
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller. store may be nil, in
// which case estimates are not archived and the /reports endpoints answer
// 503.
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, engine estimate.Engine, store ReportStore, logger *zap.SugaredLogger) (*Controller, error) {
	if sc.ListenAddr == "" {
		logger.Infof("server.listen-addr not provided; defaulting to %s (all interfaces)", config.DefaultListenAddr)
		sc.ListenAddr = config.DefaultListenAddr
	}

	if sc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		sc.Port = config.DefaultPort
	}

	if (sc.Cert == "") != (sc.Key == "") {
		return nil, fmt.Errorf("server.cert and server.key must be set together")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: sc,
		engine:     engine,
		store:      store,
		logger:     logger,
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.AccessLog(c.logger))

	router.HandleFunc("/estimate", c.handlers.PostEstimate).Methods(http.MethodPost)
	router.HandleFunc("/methods", c.handlers.GetMethods).Methods(http.MethodGet)
	router.HandleFunc("/reports", c.handlers.ListReports).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", c.handlers.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(c.handlers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(c.handlers.MethodNotAllowed)

	return router
}
