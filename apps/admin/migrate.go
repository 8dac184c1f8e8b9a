package main

import (
	pgdocstore "github.com/trezcool/eduspace/storage/docstore/postgres"
)

var gooseRunFunc = pgdocstore.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, arguments...)
}
