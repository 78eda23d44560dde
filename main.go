package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"printloom/handlers/api/assets"
	"printloom/handlers/api/designs"
	"printloom/handlers/api/templates"
	"printloom/handlers/api/transforms"
	"printloom/handlers/auth"
	authMiddleware "printloom/middleware"
	"printloom/pipeline"
	"printloom/rewrite"
	"printloom/stores"
	storesaws "printloom/stores/aws"
	"printloom/transform"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(store stores.Store, orch *pipeline.Orchestrator) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Designs and their variation history are always owner-scoped.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/designs", func(r chi.Router) {
				r.Get("/", designs.HandleList(store))
				r.Post("/", designs.HandleCreate(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", designs.HandleGet(store))
					r.Delete("/", designs.HandleDelete(store))
					r.Put("/thumbnail", designs.HandleUpdateThumbnail(store))
					r.Get("/variations", designs.HandleListVariations(store))
					r.Delete("/variations/{variationID}", designs.HandleDeleteVariation(store))
				})
			})
		})

		// Transforms allow anonymous callers when PUBLIC_ACCESS is enabled;
		// anonymous results are returned but never recorded.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.MaybeAuthJWT)
			r.Route("/transform", func(r chi.Router) {
				r.Post("/edit", transforms.Handle(transform.KindEdit, orch, store))
				r.Post("/remove-background", transforms.Handle(transform.KindRemoveBackground, orch, store))
				r.Post("/knockout-color", transforms.Handle(transform.KindKnockoutColor, orch, store))
				r.Post("/upscale", transforms.Handle(transform.KindUpscale, orch, store))
				r.Post("/prepare-print", transforms.Handle(transform.KindPreparePrint, orch, store))
				r.Post("/mockup", transforms.Handle(transform.KindMockup, orch, store))
				r.Post("/style", transforms.Handle(transform.KindCreateStyle, orch, store))
			})
		})

		// Template browsing is public; copying needs an owner for the new design.
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templates.HandleList(store))
			r.Get("/{id}", templates.HandleGet(store))
			r.With(authMiddleware.AuthJWT).Post("/", templates.HandleCreate(store))
			r.With(authMiddleware.AuthJWT).Post("/{id}/copy", templates.HandleCopy(store))
		})
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", templates.HandleListCollections(store))
			r.With(authMiddleware.AuthJWT).Post("/", templates.HandleCreateCollection(store))
			r.With(authMiddleware.AuthJWT).Post("/{id}/templates", templates.HandleAddTemplateToCollection(store))
		})

		// Source-image uploads for the pipeline.
		r.Post("/assets", assets.HandleCreate(store))
		r.Get("/assets/{id}", assets.HandleGet(store))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown() {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()

	gateway := transform.NewClientFromEnv()
	rewriter := rewrite.NewClientFromEnv()
	var archiver pipeline.AssetArchiver
	if a := storesaws.ArchiverFromEnv(); a != nil {
		archiver = a
	}
	orch := pipeline.New(gateway, rewriter, store, archiver)

	r := setupRouter(store, orch)

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown()
}
