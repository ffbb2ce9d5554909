package integration

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/db"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "intake"
	postgresPassword = "intake"
	postgresDB       = "intaketest"
)

// postgresContainer is a throwaway Postgres started through the docker CLI.
// Docker picks the host port; it is read back with `docker port`.
type postgresContainer struct {
	id string
}

// startPostgresContainer runs postgresImage and waits until it accepts
// queries. The returned cleanup removes the container.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	c := &postgresContainer{}
	if err := c.run(ctx); err != nil {
		return "", nil, err
	}
	connStr, err := c.connString(ctx)
	if err == nil {
		err = waitForPostgres(ctx, connStr, 30*time.Second)
	}
	if err != nil {
		c.remove()
		return "", nil, err
	}
	return connStr, c.remove, nil
}

func (c *postgresContainer) run(ctx context.Context) error {
	out, err := docker(ctx, "run", "-d", "--rm",
		"--name", "intake-it-"+uuid.New().String()[:8],
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+postgresUser,
		"-e", "POSTGRES_PASSWORD="+postgresPassword,
		"-e", "POSTGRES_DB="+postgresDB,
		postgresImage,
	)
	if err != nil {
		return err
	}
	c.id = out
	return nil
}

// connString resolves the published host address of the container's 5432.
func (c *postgresContainer) connString(ctx context.Context) (string, error) {
	out, err := docker(ctx, "port", c.id, "5432/tcp")
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(strings.Split(out, "\n")[0])
	if addr == "" {
		return "", fmt.Errorf("container %s publishes no port for 5432", c.id)
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", postgresUser, postgresPassword, addr, postgresDB), nil
}

func (c *postgresContainer) remove() {
	if c.id != "" {
		exec.Command("docker", "rm", "-f", c.id).Run()
	}
}

// docker runs the CLI and returns its trimmed stdout. Pull progress goes to
// stderr and only shows up in errors.
func docker(ctx context.Context, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w\nstderr: %s", args[0], err, stderr.String())
	}
	return strings.TrimSpace(string(out)), nil
}

// waitForPostgres polls until a fresh pool can be opened and pinged.
func waitForPostgres(ctx context.Context, connStr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	var lastErr error
	for {
		if lastErr = pingOnce(ctx, connStr); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %w", timeout, lastErr)
		case <-tick.C:
		}
	}
}

func pingOnce(ctx context.Context, connStr string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, connStr, 1, 0)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}
