// Package test starts disposable Postgres containers for store tests.
package test

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/content-purchase/pkg/retry"
	"github.com/code-payments/content-purchase/pkg/retry/backoff"
)

const (
	image          = "postgres"
	imageTag       = "14-alpine"
	containerTTL   = 2 * time.Minute
	readyPollLimit = 60
	readyPollRate  = 500 * time.Millisecond

	user     = "purchasetest"
	password = "purchasetest"
	dbName   = "content"
)

// StartPostgresDB runs a throwaway Postgres container and returns a
// connection once it accepts queries. closeFunc removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
	}, func(hostConfig *docker.HostConfig) {
		hostConfig.AutoRemove = true
		hostConfig.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}
	closeFunc = func() {
		_ = pool.Purge(resource)
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerTTL.Seconds()))

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     resource.GetHostPort("5432/tcp"),
		Path:     dbName,
		RawQuery: "sslmode=disable",
	}

	_, err = retry.Retry(
		func() error {
			db, err = sql.Open("pgx", dsn.String())
			if err != nil {
				return err
			}
			return db.Ping()
		},
		retry.Limit(readyPollLimit),
		retry.Backoff(backoff.Constant(readyPollRate), readyPollRate),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, fmt.Sprintf("postgres at %s never became ready", dsn.Host))
	}

	return db, closeFunc, nil
}
