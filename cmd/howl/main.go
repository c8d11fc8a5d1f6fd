// Command howl runs the Howl client runtime: it bootstraps the session
// from stored credentials, logs in when credentials are supplied via the
// environment, and tails a trip's group chat, echoing stdin lines into
// the room. A diagnostics server with Prometheus metrics binds when
// DEBUG_ADDR is set.
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/howlhq/go-howl-client/internal/api"
	"github.com/howlhq/go-howl-client/internal/auth"
	"github.com/howlhq/go-howl-client/internal/chat"
	"github.com/howlhq/go-howl-client/internal/config"
	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/debug"
	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/observability"
	"github.com/howlhq/go-howl-client/internal/session"
	"github.com/howlhq/go-howl-client/internal/sysutil"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(ctx)
	}()

	durable, err := credstore.OpenSQLite(cfg.CredDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CredDBPath).Msg("opening credential store")
	}
	store := credstore.NewLayered(durable, credstore.NewSessionLocation())

	sess := session.New(session.Config{
		BaseURL:        cfg.APIBaseURL,
		Creds:          store,
		RequestTimeout: cfg.RequestTimeout,
		RefreshTimeout: cfg.RefreshTimeout,
	})
	client := api.New(sess)
	ctrl := auth.NewController(sess, store, client.Auth, client.Users)
	sess.OnSessionExpired(ctrl.HandleSessionExpired)

	if cfg.DebugAddr != "" {
		dbg := debug.New(cfg, ctrl)
		dbg.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = dbg.Shutdown(ctx)
		}()
	}

	if err := ctrl.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("bootstrap")
	}

	if !ctrl.IsAuthenticated() {
		email, password := os.Getenv("HOWL_EMAIL"), os.Getenv("HOWL_PASSWORD")
		if email == "" || password == "" {
			log.Fatal().Msg("no stored session; set HOWL_EMAIL and HOWL_PASSWORD to log in")
		}
		remember := sysutil.IsTruthy(sysutil.FirstNonEmpty(os.Getenv("HOWL_REMEMBER"), "true"))
		if err := ctrl.Login(ctx, email, password, remember); err != nil {
			log.Fatal().Err(err).Msg("login")
		}
	}

	profile, _ := ctrl.Profile()
	log.Info().Str("user_id", profile.ID).Str("email", profile.Email).Msg("session ready")
	if ctrl.NeedsOnboarding() {
		log.Warn().Msg("onboarding incomplete; chat may be restricted")
	}

	tripID := os.Getenv("HOWL_TRIP_ID")
	if tripID == "" {
		log.Info().Msg("set HOWL_TRIP_ID to join a trip chat; exiting")
		return
	}

	runRoom(ctx, cfg, store, client, profile, tripID)
}

// runRoom serves one trip chat until the context ends or the connection
// is rejected permanently.
func runRoom(ctx context.Context, cfg config.Config, store credstore.Store, client *api.Client, profile domain.UserProfile, tripID string) {
	room := chat.NewRoom(chat.RoomOptions{
		TripID:    tripID,
		WSBaseURL: cfg.WSBaseURL,
		SelfID:    profile.ID,
		SelfName:  profile.DisplayName,
		Creds:     store,
		Messages:  client.Messages,
		Config:    cfg.Chat,
		OnUpdate:  printTimeline,
		OnEvent:   printEvent,
	})
	defer room.Close()

	done := make(chan error, 1)
	go func() { done <- room.Run(ctx) }()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			content := strings.TrimSpace(scanner.Text())
			if content == "" {
				continue
			}
			if err := room.Send(ctx, content); err != nil {
				log.Error().Err(err).Msg("send failed")
			}
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("chat ended")
		}
	case <-ctx.Done():
	}
}

func printTimeline(msgs []domain.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	marker := ""
	if last.Origin == domain.OriginOptimistic {
		marker = " (sending)"
	}
	log.Info().
		Str("from", sysutil.FirstNonEmpty(last.SenderName, last.SenderID)).
		Msgf("%s%s", last.Content, marker)
}

func printEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventUserJoined:
		log.Info().Str("user", ev.UserName).Msg("joined")
	case chat.EventUserLeft:
		log.Info().Str("user", ev.UserName).Msg("left")
	case chat.EventTyping:
		log.Debug().Str("user", ev.UserName).Msg("typing")
	case chat.EventOnline:
		log.Info().Int("online", len(ev.Users)).Msg("roster")
	}
}
