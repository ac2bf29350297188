package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aqlanhadi/kisht/config"
	"github.com/aqlanhadi/kisht/integrations/firestore"
	"github.com/aqlanhadi/kisht/integrations/memory"
	"github.com/aqlanhadi/kisht/integrations/postgres"
	"github.com/aqlanhadi/kisht/ledger"
	"github.com/aqlanhadi/kisht/store"
	log "github.com/sirupsen/logrus"
)

// openLedger builds config → store → ledger. The returned func releases the
// store.
func openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	if cfgErr != nil {
		return nil, nil, cfgErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	l, err := ledger.New(s, ledger.Options{
		UserID:         cfg.UserID,
		Location:       loc,
		Statement:      cfg.Statement.Parser(),
		UnknownPreview: cfg.Statement.UnknownPreview,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	release := sync.OnceFunc(closeStore)
	onExit(release)

	log.WithFields(log.Fields{
		"backend": cfg.Store.Backend,
		"user":    cfg.UserID,
		"config":  cfg.File,
	}).Debug("ledger ready")
	return l, release, nil
}

func openStore(ctx context.Context, c *config.Config) (store.Store, func(), error) {
	switch c.Store.Backend {
	case config.BackendMemory:
		log.Warn("using the in-memory store, nothing will be saved")
		return memory.New(), func() {}, nil

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, c.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		return db, db.Close, nil

	case config.BackendFirestore:
		client, err := newFirestoreClient(c.Firestore)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
}

func newFirestoreClient(fc config.FirestoreConfig) (*firestore.Client, error) {
	httpClient := &http.Client{Timeout: fc.Timeout()}

	if fc.EmulatorHost != "" {
		log.WithField("host", fc.EmulatorHost).Info("using the Firestore emulator")
		return firestore.New(firestore.Config{
			ProjectID:  fc.ProjectID,
			DatabaseID: fc.DatabaseID,
			BaseURL:    firestore.EmulatorBaseURL(fc.EmulatorHost),
			HTTPClient: httpClient,
			Tokens:     firestore.StaticToken("owner"),
		})
	}

	var (
		account *firestore.ServiceAccount
		err     error
	)
	switch {
	case fc.ServiceAccountJSON != "":
		account, err = firestore.ParseServiceAccount([]byte(fc.ServiceAccountJSON))
	case fc.ServiceAccountFile != "":
		account, err = firestore.LoadServiceAccount(fc.ServiceAccountFile)
	default:
		err = errors.New("no service account configured")
	}
	if err != nil {
		return nil, err
	}

	tokens, err := firestore.NewServiceAccountTokenSource(account, httpClient)
	if err != nil {
		return nil, err
	}
	return firestore.New(firestore.Config{
		ProjectID:  fc.ProjectID,
		DatabaseID: fc.DatabaseID,
		HTTPClient: httpClient,
		Tokens:     tokens,
	})
}
