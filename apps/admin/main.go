package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/user"
	firebasesvc "github.com/trezcool/eduspace/services/firebase"
	firestoredocstore "github.com/trezcool/eduspace/storage/docstore/firestore"
	inmemdocstore "github.com/trezcool/eduspace/storage/docstore/inmem"
	pgdocstore "github.com/trezcool/eduspace/storage/docstore/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	cli := commandLine{}
	var store docstore.Store

	// set up document store
	switch conf.Docstore.Backend {
	case core.DocstoreFirestore:
		clients, err := firebasesvc.NewClients(context.Background(), conf.Docstore)
		errAndDie(err)
		defer clients.Close()
		store = firestoredocstore.New(clients.Firestore)

	case core.DocstorePostgres:
		db, err := setUpDB(conf.Docstore.PostgresDSN)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
		store = pgdocstore.New(db, conf.Docstore.PostgresDSN)

	default:
		logger.Println("warning: the memory docstore does not outlive this command")
		store = inmemdocstore.New()
	}

	// no mails from the CLI
	cli.usrSvc = user.NewService(store, nil, conf)

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

// setUpDB opens the postgres database, creating it first when needed. Migrations are left to the migrate command.
func setUpDB(dsn string) (*sqlx.DB, error) {
	if err := pgdocstore.CreateIfNotExist(dsn); err != nil {
		return nil, err
	}
	return pgdocstore.Open(dsn)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
