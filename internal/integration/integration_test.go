package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/crypto/bcrypt"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/auth"
	"placement-quiz-service/internal/domain"
	"placement-quiz-service/internal/generator"
	pgstore "placement-quiz-service/internal/infra/postgres"
	pgmigrations "placement-quiz-service/internal/infra/postgres/migrations"
	infraredis "placement-quiz-service/internal/infra/redis"
)

// fallbackSource serves only the built-in question pool, as the generator does when the LLM is unreachable.
type fallbackSource struct{}

func (fallbackSource) Generate(_ context.Context, subject string, _ domain.Difficulty, count int) domain.GenerationResult {
	return domain.GenerationResult{Questions: generator.DefaultQuestions(subject, count), Source: domain.SourceFallback}
}

type cannedRenderer struct{ calls int }

func (r *cannedRenderer) Render(_ context.Context, data domain.ReportData) (string, error) {
	r.calls++
	return fmt.Sprintf("## Overall Summary\n%s scored %d", data.StudentName, data.Score), nil
}

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	results := pgstore.NewResultStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	renderer := &cannedRenderer{}
	service := app.NewQuizService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		fallbackSource{},
		app.WithRenderer(infraredis.NewReportCache(redisClient, renderer, 5*time.Minute), nil),
		app.WithResults(results),
	)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := results.CreateUser(ctx, "Student@Example.com", string(hash))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := results.CreateUser(ctx, "student@example.com", string(hash)); err != domain.ErrEmailTaken {
		t.Fatalf("expected email taken, got %v", err)
	}
	who, err := auth.NewAccounts(results).Login(ctx, "student@example.com", "hunter22")
	if err != nil || who.ID != user.ID {
		t.Fatalf("login: %+v %v", who, err)
	}

	view, err := service.Start(ctx, who.ID, app.StartRequest{
		Subjects:     []string{domain.SubjectLogicalReasoning, domain.SubjectVerbalAbility},
		Difficulty:   domain.DifficultyEasy,
		NumQuestions: 3,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// LR has a single fallback question, so the set comes out one short.
	if view.TotalQuestions != 2 {
		t.Fatalf("expected 2 questions from the fallback pools, got %d", view.TotalQuestions)
	}

	outcome, err := service.SubmitAnswer(ctx, who.ID, domain.AnswerSubmission{QuestionIndex: intPtr(0), Selected: domain.LabelA})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Solution == "" {
		t.Fatalf("expected the solution to be revealed")
	}

	report, err := service.Finish(ctx, who.ID, who, false)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if report.TotalQuestions != 2 || report.CorrectCount+report.IncorrectCount != 1 || report.UnansweredCount != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := service.Current(ctx, who.ID); err != domain.ErrSessionExpired {
		t.Fatalf("expected session cleared after finish, got %v", err)
	}

	for i := 0; i < 2; i++ {
		rep, err := service.Report(ctx, report)
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if !strings.Contains(rep.Markdown, "student@example.com") {
			t.Fatalf("unexpected narrative %q", rep.Markdown)
		}
	}
	if renderer.calls != 1 {
		t.Fatalf("expected the narrative to be cached, rendered %d times", renderer.calls)
	}

	service.Close()
	history, err := service.History(ctx, who, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Data.Score != report.Score || history[0].Data.TotalQuestions != 2 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

func intPtr(i int) *int { return &i }
