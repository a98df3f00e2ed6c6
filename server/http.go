package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
	"meeting-recorder/config"
	"meeting-recorder/constant"
	"meeting-recorder/handler"
	"meeting-recorder/pkg/rabbitmq"
)

const shutdownTimeout = 15 * time.Second

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	isProduction := cfg.App.Environment == constant.EnvironmentProduction.String()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", isProduction).Send()
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	for _, w := range cfg.Warnings() {
		zerolog.Ctx(ctx).Warn().Msg(w)
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to build dependencies")
		return
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("meeting status updates disabled")
	} else {
		statusConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, handler.MeetingStatusHandler)
		go func() {
			err := statusConsumer.Consume(ctx, handler.ServiceDependencies{MeetingService: deps.Meetings})
			if err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Msg("meeting status consumer error")
			}
		}()
	}

	srv := http.Server{
		Handler:           newRouter(ctx, deps, cfg.Auth.JWTSecret),
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", srv.Addr).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}
	// Release the microphone if a session is still open.
	if err := deps.Recording.Release(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to release capture on shutdown")
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// SetupLogger returns a context carrying the root logger. With log.file set,
// output is also written to a rotating file.
func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		})
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
