// Package firebasesvc connects to the Firebase project holding the school's documents and accounts.
package firebasesvc

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/eduspace/core"
)

type Clients struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
}

// NewClients initializes the Firebase app of the configured project.
// Without a credentials file, application default credentials are used.
func NewClients(ctx context.Context, conf core.DocstoreConfig) (*Clients, error) {
	var opts []option.ClientOption
	if conf.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(conf.FirebaseCredentials))
	}
	var fbConf *firebase.Config
	if conf.FirebaseProjectID != "" {
		fbConf = &firebase.Config{ProjectID: conf.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firestore client")
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		_ = fs.Close()
		return nil, errors.Wrap(err, "initializing auth client")
	}
	return &Clients{App: app, Firestore: fs, Auth: authClient}, nil
}

func (c *Clients) Close() error {
	return c.Firestore.Close()
}
