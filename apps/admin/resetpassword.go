package main

import (
	"context"
)

func (cli *commandLine) resetPassword(loginID, pwd string) error {
	ctx := context.Background()
	prof, err := cli.usrSvc.GetByLoginID(ctx, loginID)
	if err != nil {
		return err
	}
	return cli.usrSvc.SetPassword(ctx, prof.UID, pwd)
}
