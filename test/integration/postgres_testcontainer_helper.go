package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
)

const defaultPostgresTestImage = "docker.io/library/postgres:16-alpine"

type postgresIntegrationEnv struct {
	dsn       string
	db        *gorm.DB
	container testcontainers.Container
}

// newPostgresIntegrationEnv starts a throwaway postgres and returns a
// migrated connection. The test is skipped when no container runtime is
// reachable.
func newPostgresIntegrationEnv(t *testing.T) *postgresIntegrationEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	image := os.Getenv("POSTGRES_TEST_IMAGE")
	if strings.TrimSpace(image) == "" {
		image = defaultPostgresTestImage
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Env: map[string]string{
				"POSTGRES_USER":     "accountkit",
				"POSTGRES_PASSWORD": "accountkit",
				"POSTGRES_DB":       "accountkit",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres test container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve postgres host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("resolve postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://accountkit:accountkit@%s/accountkit?sslmode=disable", net.JoinHostPort(host, mappedPort.Port()))

	db := waitForPostgresReady(t, dsn)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &postgresIntegrationEnv{dsn: dsn, db: db, container: container}
}

func waitForPostgresReady(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	cfg := &config.Config{DatabaseDriver: "postgres", DatabaseURL: dsn}
	for {
		db, err := database.Open(cfg)
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				if err = sqlDB.PingContext(ctx); err == nil {
					return db
				}
				_ = sqlDB.Close()
			} else {
				err = dbErr
			}
		}
		select {
		case <-ctx.Done():
			t.Fatalf("postgres readiness check timed out: %v", err)
		case <-ticker.C:
		}
	}
}
