package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/coursebooking/course_backend/internal/config"
	"github.com/coursebooking/course_backend/internal/email"
	"github.com/coursebooking/course_backend/internal/es"
	"github.com/coursebooking/course_backend/internal/handlers"
	"github.com/coursebooking/course_backend/internal/logging"
	authmw "github.com/coursebooking/course_backend/internal/middleware/auth"
	loggingmw "github.com/coursebooking/course_backend/internal/middleware/logging"
	"github.com/coursebooking/course_backend/internal/mykafka"
	"github.com/coursebooking/course_backend/internal/service"
	"github.com/coursebooking/course_backend/internal/tokens"
	httpserver "github.com/coursebooking/course_backend/internal/transport/http"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(configuration.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(configuration.REFRESH_SECRET, "REFRESH_SECRET")

	issuer := &tokens.Issuer{
		AccessSecret:  []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var searchHandler *handlers.SearchHandler
	courseSvc := &service.CourseService{DB: db, Ledger: &service.OwnershipService{DB: db}, ESIndex: "courses"}
	if configuration.ES_URL != "" {
		client, err := es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
		courseSvc.ES = client
		searchHandler = &handlers.SearchHandler{ES: client, Index: "courses"}
	}

	sender := email.NewSMTPSender(
		configuration.SMTP_HOST,
		configuration.SMTP_PORT,
		configuration.SMTP_FROM,
		configuration.SMTP_USER,
		configuration.SMTP_PASS,
	)

	authSvc := &service.AuthService{DB: db, Issuer: issuer}
	codeSvc := &service.CodeService{
		DB:      db,
		Mail:    sender,
		Issuer:  issuer,
		Ledger:  courseSvc.Ledger,
		Catalog: courseSvc,
	}

	ctx, cancelSeed := context.WithTimeout(logging.IntoContext(context.Background(), logger), 10*time.Second)
	if err := authSvc.EnsureAdmin(ctx,
		configuration.ADMIN_EMAIL,
		configuration.ADMIN_PHONE_NUMBER,
		configuration.ADMIN_PASSWORD,
	); err != nil {
		log.Fatalf("admin seed error: %v", err)
	}
	cancelSeed()

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:            db,
		AuthHandler:   &handlers.AuthHandler{Auth: authSvc, Codes: codeSvc, Producer: prod},
		CourseHandler: &handlers.CourseHandler{Courses: courseSvc, Codes: codeSvc, Producer: prod},
		SearchHandler: searchHandler,
		AuthMW:        &authmw.Middleware{Issuer: issuer},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
