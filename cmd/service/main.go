package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/Jiwaru/pss-uas-lms-backend/internal"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/config"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/logging"
	"github.com/Jiwaru/pss-uas-lms-backend/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "lms-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	jwtSecret := os.Getenv("LMS_JWT_SECRET")
	if jwtSecret == "" {
		log.Errorf("jwt secret not set, use LMS_JWT_SECRET env var to set it")
		// tokens issued with this secret die with the process
		jwtSecret, err = pkg.GenerateRandomString(32)
		if err != nil {
			log.Fatalf("generate fallback jwt secret: %s", err)
		}
		log.Warnln("using a random one-off jwt secret")
	}

	postgresUser := os.Getenv("LMS_POSTGRES_USER")
	postgresPassword := os.Getenv("LMS_POSTGRES_PASSWORD")
	if postgresUser == "" || postgresPassword == "" {
		log.Errorf("postgres credentials not set. use LMS_POSTGRES_USER and LMS_POSTGRES_PASSWORD")
	}

	redisPassword := os.Getenv("LMS_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use LMS_REDIS_PASS")
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:           cfg,
			JWTSecret:        jwtSecret,
			PostgresUser:     postgresUser,
			PostgresPassword: postgresPassword,
			RedisPassword:    redisPassword,
			VersionInfo:      versionInfo,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
