package main

import (
	"flag"
	"os"
	"time"

	"github.com/oarkflow/log"

	"github.com/oarkflow/raidguard"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "directory for state documents")
		listenAddr = flag.String("listen", ":3000", "admin API listen address")
		dbPath     = flag.String("db", "./data/moderation.db", "sqlite database for warnings and cases")
		redisURL   = flag.String("redis", "", "redis URL for the shared action counter store (optional)")
		staffRole  = flag.String("staff-role", "role-staff", "role watched by the abuse detector")
		immuneRole = flag.String("immune-role", "role-immune", "role exempt from all protective logic")
		logChannel = flag.String("log-channel", "", "channel receiving security audit messages")
		webhookURL = flag.String("webhook", "", "webhook URL for security notifications (optional)")
		adminUser  = flag.String("admin-user", "", "admin API username (empty disables auth)")
		adminHash  = flag.String("admin-hash", "", "bcrypt hash of the admin API password")
	)
	flag.Parse()

	logger := log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: time.RFC3339,
		Writer:     &log.ConsoleWriter{ColorOutput: true},
	}

	store, err := raidguard.NewFileStateStore(*dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("state store init failed")
	}
	defer store.Close()

	warnings, err := raidguard.NewSQLWarningStore(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("warning store init failed")
	}
	defer warnings.Close()

	var counters raidguard.ActionCounterStore
	if *redisURL != "" {
		rc, err := raidguard.NewRedisCounterStore(*redisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis counter store init failed")
		}
		counters = rc
		logger.Info().Msg("using redis action counters")
	} else {
		counters = raidguard.NewInMemoryCounterStore()
	}

	notifications := raidguard.NewNotificationRegistry(&logger)
	if *webhookURL != "" {
		notifications.Register(raidguard.NewWebhookNotificationSender(*webhookURL))
	}

	gateway := seedGateway()

	guard, err := raidguard.New(gateway, store, warnings, counters, raidguard.Options{
		StaffRoleRef:  *staffRole,
		ImmuneRoleRef: *immuneRole,
		LogChannelRef: *logChannel,
		Logger:        &logger,
		Notifications: notifications,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	if err := store.WatchSecurityConfig(func(cfg raidguard.SecurityConfig) {
		guard.Config().Observe(cfg)
		logger.Info().Msg("security config reloaded from disk")
	}); err != nil {
		logger.Error().Err(err).Msg("config watcher unavailable")
	}

	users := map[string]string{}
	if *adminUser != "" && *adminHash != "" {
		users[*adminUser] = *adminHash
	} else if *adminUser != "" || *adminHash != "" {
		logger.Fatal().Msg("admin-user and admin-hash must be set together")
	} else {
		logger.Warn().Msg("admin API running without authentication")
	}

	server := raidguard.NewAdminServer(guard, users)
	logger.Info().Str("addr", *listenAddr).Msg("admin API listening")
	if err := server.Listen(*listenAddr); err != nil {
		logger.Error().Err(err).Msg("admin API stopped")
		os.Exit(1)
	}
}

// seedGateway builds the in-memory community the engine manages when no real
// platform connection is configured.
func seedGateway() *raidguard.MemoryGateway {
	gw := raidguard.NewMemoryGateway("bot-1")
	const community = "community-1"

	gw.AddRole(community, "role-staff")
	gw.AddRole(community, "role-immune")
	gw.AddRole(community, "role-muted")

	gw.AddChannel(community, raidguard.Channel{ID: "ch-general", Name: "general", Kind: raidguard.ChannelText})
	gw.AddChannel(community, raidguard.Channel{ID: "ch-offtopic", Name: "offtopic", Kind: raidguard.ChannelText})
	gw.AddChannel(community, raidguard.Channel{ID: "ch-voice", Name: "voice", Kind: raidguard.ChannelVoice})
	gw.AddChannel(community, raidguard.Channel{ID: "ch-archive", Name: "archive", Kind: raidguard.ChannelCategory})

	now := time.Now().UTC()
	gw.AddMember(community, raidguard.Member{
		ID: "user-owner", DisplayName: "Owner", RoleIDs: []string{"role-staff", "role-immune"},
		CreatedAt: now.AddDate(-2, 0, 0), JoinedAt: now.AddDate(-2, 0, 0), HasAvatar: true,
	})
	gw.AddMember(community, raidguard.Member{
		ID: "user-mod", DisplayName: "Moderator", RoleIDs: []string{"role-staff"},
		CreatedAt: now.AddDate(-1, 0, 0), JoinedAt: now.AddDate(0, -6, 0), HasAvatar: true,
	})
	gw.AddMember(community, raidguard.Member{
		ID: "user-regular", DisplayName: "Regular", RoleIDs: nil,
		CreatedAt: now.AddDate(0, -3, 0), JoinedAt: now.AddDate(0, -1, 0), HasAvatar: true,
	})

	gw.AddInvite(community, raidguard.Invite{Code: "welcome1", InviterID: "user-owner"})
	return gw
}
