package test

import (
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/courselab/marketplace/api"
	"github.com/courselab/marketplace/config"
	"github.com/courselab/marketplace/core/course"
	"github.com/courselab/marketplace/core/user"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/random"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
)

var (
	pool     *dockertest.Pool
	resource *dockertest.Resource

	// pgHost is the host:port of the postgres container shared by all the
	// tests in this package. Each TestEnv gets its own database inside it.
	pgHost string

	adminDB *sqlx.DB
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	var err error
	pool, err = dockertest.NewPool("")
	if err != nil || pool.Client.Ping() != nil {
		log.Println("docker is not available, skipping integration tests")
		return 0
	}

	resource, err = pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=postgres",
	})
	if err != nil {
		log.Printf("could not start postgres: %v", err)
		return 1
	}
	defer pool.Purge(resource)

	resource.Expire(600)
	pgHost = resource.GetHostPort("5432/tcp")

	if err := pool.Retry(func() error {
		var err error
		adminDB, err = database.Open(config.DB{
			User:       "postgres",
			Password:   "postgres",
			Host:       pgHost,
			Name:       "postgres",
			DisableTLS: true,
		})
		return err
	}); err != nil {
		log.Printf("could not connect to postgres: %v", err)
		return 1
	}
	defer adminDB.Close()

	return m.Run()
}

type TestEnv struct {
	DB     *sqlx.DB
	Server *httptest.Server
	URL    string
}

// NewTestEnv creates a dedicated database inside the shared container,
// migrates it and starts an API server on top of it.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	if pool == nil {
		t.Skip("docker is not available")
	}

	dbName := strings.ToLower(fmt.Sprintf("%s_%s", name, random.String(8)))
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s;", dbName)); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", dbName, err)
	}

	db, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       dbName,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbName, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database %s: %w", dbName, err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.WarnLevel)

	mux := api.APIMux(api.APIConfig{
		Log: logger,
		DB:  db,
		Checkout: config.Checkout{
			Timeout:  10 * time.Second,
			Attempts: 3,
		},
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &TestEnv{
		DB:     db,
		Server: srv,
		URL:    srv.URL,
	}, nil
}

func (te *TestEnv) createUser(t *testing.T, name string, balance int64) user.User {
	t.Helper()

	u := user.User{
		ID:        validate.GenerateID(),
		Name:      name,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	const q = `
	INSERT INTO users (user_id, name, balance, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5);`

	if _, err := te.DB.Exec(q, u.ID, u.Name, u.Balance, u.CreatedAt, u.UpdatedAt); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	return u
}

func (te *TestEnv) createCourse(t *testing.T, name string, price int) course.Course {
	t.Helper()

	c := course.Course{
		ID:        validate.GenerateID(),
		Name:      name,
		Price:     price,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Version:   1,
	}

	const q = `
	INSERT INTO courses (course_id, name, description, image_url, price, created_at, updated_at, version)
	VALUES ($1, $2, '', '', $3, $4, $5, $6);`

	if _, err := te.DB.Exec(q, c.ID, c.Name, c.Price, c.CreatedAt, c.UpdatedAt, c.Version); err != nil {
		t.Fatalf("seeding course: %v", err)
	}

	return c
}
