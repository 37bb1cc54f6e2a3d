package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ether/easysync/lib"
	api2 "github.com/ether/easysync/lib/api"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/events"
	"github.com/ether/easysync/lib/pad"
	settings2 "github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/ws"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	App        *fiber.App
	Hub        *ws.Hub
	Handler    *ws.PadMessageHandler
	PadManager *pad.Manager

	publisher events.Publisher
	store     db.DataStore
	settings  *settings2.Settings
	logger    *zap.SugaredLogger
}

// NewApp returns the fiber app every route is mounted on.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// pad ids taken from the path outlive the request
		Immutable: true,
	})
}

// New wires the pad manager, the websocket handler and the HTTP API on top of
// dataStore. Revisions go to publisher.
func New(settings *settings2.Settings, dataStore db.DataStore, publisher events.Publisher, setupLogger *zap.SugaredLogger) *Server {
	app := NewApp()
	padManager := pad.NewManager(dataStore, settings, setupLogger)
	padManager.OnRevision(publisher.OnRevision)

	globalHub := ws.NewHub()
	sessionStore := ws.NewSessionStore()
	padMessageHandler := ws.NewPadMessageHandler(padManager, globalHub, sessionStore, settings, setupLogger)

	api2.InitAPI(&lib.InitStore{
		C:                 app,
		RetrievedSettings: settings,
		Store:             dataStore,
		Handler:           padMessageHandler,
		PadManager:        padManager,
		Validator:         validator.New(validator.WithRequiredStructEnabled()),
		Logger:            setupLogger,
	})

	return &Server{
		App:        app,
		Hub:        globalHub,
		Handler:    padMessageHandler,
		PadManager: padManager,
		publisher:  publisher,
		store:      dataStore,
		settings:   settings,
		logger:     setupLogger,
	}
}

// HTTPHandler serves the websocket endpoint next to the fiber app. The
// upgrade needs to hijack the connection, which a fiber handler cannot hand
// to gorilla/websocket, so the socket gets its own route on a net/http mux.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", func(writer http.ResponseWriter, request *http.Request) {
		ip, _, err := net.SplitHostPort(request.RemoteAddr)
		if err != nil {
			ip = request.RemoteAddr
		}
		ws.ServeWs(writer, request, ip, s.Handler)
	})
	mux.Handle("/", adaptor.FiberApp(s.App))
	return mux
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	address := fmt.Sprintf("%s:%s", s.settings.IP, s.settings.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs the hub, the revision publisher and the HTTP server on listener
// until ctx is done or one of them fails. The datastore is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Hub.Run(ctx)
	})
	g.Go(func() error {
		return s.publisher.Run(ctx)
	})
	httpServer := &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		s.logger.Infof("listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := s.store.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("error closing datastore: %w", closeErr))
	}
	return err
}
