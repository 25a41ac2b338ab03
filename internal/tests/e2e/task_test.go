//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/taskdeck/apiserver/config"
	"github.com/taskdeck/apiserver/internal/server"
	"github.com/taskdeck/apiserver/types"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	setTestEnv()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/health"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTaskLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("alice_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	if _, err := registerUser(t, baseURL, email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}

	token, err := loginUser(t, baseURL, email, password)
	if err != nil {
		t.Fatalf("login user: %v", err)
	}

	task, err := createTask(t, baseURL, token, "buy milk")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Completed {
		t.Fatalf("expected new task to be incomplete")
	}

	tasks, err := listTasks(t, baseURL, token)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "buy milk" || tasks[0].Completed {
		t.Fatalf("unexpected task list: %+v", tasks)
	}

	updated, err := patchTask(t, baseURL, token, task.ID, `{"completed":true}`)
	if err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if !updated.Completed {
		t.Fatalf("expected task to be completed")
	}

	fetched, status, err := getTask(t, baseURL, token, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if status != http.StatusOK || !fetched.Completed {
		t.Fatalf("unexpected fetched task (status %d): %+v", status, fetched)
	}

	if err := deleteTask(t, baseURL, token, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	if _, status, _ := getTask(t, baseURL, token, task.ID); status != http.StatusNotFound {
		t.Fatalf("get after delete: expected status 404, got %d", status)
	}
	if status := patchStatus(t, baseURL, token, task.ID, `{"completed":false}`); status != http.StatusNotFound {
		t.Fatalf("patch after delete: expected status 404, got %d", status)
	}
	if status := deleteStatus(t, baseURL, token, task.ID); status != http.StatusNotFound {
		t.Fatalf("delete after delete: expected status 404, got %d", status)
	}
}

func TestTasksNewestFirst(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("bob_%d@example.com", time.Now().UnixNano())

	token, err := registerUser(t, baseURL, email, "testpass123!")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	for _, title := range []string{"first", "second", "third"} {
		if _, err := createTask(t, baseURL, token, title); err != nil {
			t.Fatalf("create task %q: %v", title, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	tasks, err := listTasks(t, baseURL, token)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "third" || tasks[2].Title != "first" {
		t.Fatalf("expected newest first, got %+v", tasks)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	tokenA, err := registerUser(t, baseURL, fmt.Sprintf("a_%d@example.com", suffix), "testpass123!")
	if err != nil {
		t.Fatalf("register A: %v", err)
	}
	tokenB, err := registerUser(t, baseURL, fmt.Sprintf("b_%d@example.com", suffix), "testpass123!")
	if err != nil {
		t.Fatalf("register B: %v", err)
	}

	task, err := createTask(t, baseURL, tokenA, "private")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, status, _ := getTask(t, baseURL, tokenB, task.ID); status != http.StatusNotFound {
		t.Fatalf("foreign get: expected status 404, got %d", status)
	}
	if status := deleteStatus(t, baseURL, tokenB, task.ID); status != http.StatusNotFound {
		t.Fatalf("foreign delete: expected status 404, got %d", status)
	}

	// The task must still be there for its owner.
	if _, status, _ := getTask(t, baseURL, tokenA, task.ID); status != http.StatusOK {
		t.Fatalf("owner get: expected status 200, got %d", status)
	}
}

type authResponse struct {
	Token string `json:"token"`
}

func registerUser(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"email":    email,
		"name":     "Test User",
		"password": password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.Token, nil
}

func loginUser(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	payload := map[string]string{"email": email, "password": password}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Token, nil
}

func createTask(t *testing.T, baseURL, token, title string) (types.Task, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return types.Task{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return types.Task{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Task{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return types.Task{}, fmt.Errorf("create task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var task types.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func listTasks(t *testing.T, baseURL, token string) ([]types.Task, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/tasks", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tasks status %d", resp.StatusCode)
	}

	var tasks []types.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func getTask(t *testing.T, baseURL, token string, id int) (types.Task, int, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/tasks/%d", baseURL, id), nil)
	if err != nil {
		return types.Task{}, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Task{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Task{}, resp.StatusCode, nil
	}

	var task types.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return types.Task{}, resp.StatusCode, err
	}
	return task, resp.StatusCode, nil
}

func patchTask(t *testing.T, baseURL, token string, id int, body string) (types.Task, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/tasks/%d", baseURL, id), strings.NewReader(body))
	if err != nil {
		return types.Task{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Task{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return types.Task{}, fmt.Errorf("patch task status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var task types.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func patchStatus(t *testing.T, baseURL, token string, id int, body string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/tasks/%d", baseURL, id), strings.NewReader(body))
	if err != nil {
		t.Fatalf("build patch request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch request: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func deleteTask(t *testing.T, baseURL, token string, id int) error {
	t.Helper()

	if status := deleteStatus(t, baseURL, token, id); status != http.StatusNoContent {
		return fmt.Errorf("delete task status %d", status)
	}
	return nil
}

func deleteStatus(t *testing.T, baseURL, token string, id int) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/tasks/%d", baseURL, id), nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskdeck")
	_ = os.Setenv("DB_PASSWORD", "taskdeck")
	_ = os.Setenv("DB_NAME", "taskdeck")
	_ = os.Setenv("DB_SSL", "false")
}

func startServer() (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
