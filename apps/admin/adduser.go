package main

import (
	"context"
	"fmt"

	"github.com/trezcool/eduspace/core/user"
)

// addUser creates a profile; the login id must not be taken.
func (cli *commandLine) addUser(np user.NewProfile) error {
	prof, err := cli.usrSvc.Create(context.Background(), np)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %q (uid %s)\n", prof.Role, prof.LoginID, prof.UID)
	return nil
}
