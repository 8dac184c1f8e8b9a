package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/eduspace/apps/api/echo"
	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/attendance"
	"github.com/trezcool/eduspace/core/content"
	"github.com/trezcool/eduspace/core/course"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/enrollment"
	"github.com/trezcool/eduspace/core/exam"
	"github.com/trezcool/eduspace/core/session"
	"github.com/trezcool/eduspace/core/user"
	"github.com/trezcool/eduspace/services/authprovider"
	emailsvc "github.com/trezcool/eduspace/services/email"
	firebasesvc "github.com/trezcool/eduspace/services/firebase"
	logsvc "github.com/trezcool/eduspace/services/logger"
	firestoredocstore "github.com/trezcool/eduspace/storage/docstore/firestore"
	inmemdocstore "github.com/trezcool/eduspace/storage/docstore/inmem"
	pgdocstore "github.com/trezcool/eduspace/storage/docstore/postgres"
	inmemkv "github.com/trezcool/eduspace/storage/kv/inmem"
	rediskv "github.com/trezcool/eduspace/storage/kv/redis"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx := context.Background()

	// set up document store
	store, provider, closer, err := setUpDocstore(ctx, conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up document store: %v", err), err)
	}
	defer func() {
		if err = closer.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up session slots
	slots, err := setUpSlots(ctx, conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up session slots: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(store, mailSvc, conf)
	courseSvc := course.NewService(store)
	enrollmentSvc := enrollment.NewService(store, courseSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q (docstore: %s, sessions: %s)",
		conf.Build, conf.Docstore.Backend, conf.Sessions.Backend))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	deps := echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     courseSvc,
		EnrollmentSvc: enrollmentSvc,
		AttendanceSvc: attendance.NewService(store),
		ExamSvc:       exam.NewService(store),
		ContentSvc:    content.NewService(store, courseSvc, enrollmentSvc),
		Sessions:      session.NewRegistry(slots, usrSvc),
		Provider:      provider,
	}
	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noopCloser = closerFunc(func() error { return nil })

// setUpDocstore opens the configured document store.
// The auth provider is only available with the Firestore backend.
func setUpDocstore(ctx context.Context, conf *core.Config) (docstore.Store, *authprovider.Firebase, io.Closer, error) {
	switch conf.Docstore.Backend {
	case core.DocstoreFirestore:
		clients, err := firebasesvc.NewClients(ctx, conf.Docstore)
		if err != nil {
			return nil, nil, nil, err
		}
		return firestoredocstore.New(clients.Firestore), authprovider.NewFirebase(clients.Auth), clients, nil

	case core.DocstorePostgres:
		dsn := conf.Docstore.PostgresDSN
		if err := pgdocstore.CreateIfNotExist(dsn); err != nil {
			return nil, nil, nil, err
		}
		db, err := pgdocstore.Open(dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		if err = pgdocstore.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return pgdocstore.New(db, dsn), nil, db, nil

	case core.DocstoreMemory, "":
		return inmemdocstore.New(), nil, noopCloser, nil

	default:
		return nil, nil, nil, errors.Errorf("unknown docstore backend %q", conf.Docstore.Backend)
	}
}

func setUpSlots(ctx context.Context, conf *core.Config) (session.Slots, error) {
	switch conf.Sessions.Backend {
	case core.SessionsRedis:
		client, err := rediskv.NewClient(ctx, conf.Sessions)
		if err != nil {
			return nil, err
		}
		return rediskv.New(client, conf.Sessions.KeyPrefix, conf.Sessions.TTL), nil

	case core.SessionsMemory, "":
		return inmemkv.New(conf.Sessions.TTL), nil

	default:
		return nil, errors.Errorf("unknown sessions backend %q", conf.Sessions.Backend)
	}
}
