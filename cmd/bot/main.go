package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_attribution_bot/internal/channellog"
	"tg_attribution_bot/internal/config"
	"tg_attribution_bot/internal/firsttouch"
	"tg_attribution_bot/internal/httpapi"
	"tg_attribution_bot/internal/leads"
	"tg_attribution_bot/internal/logging"
	"tg_attribution_bot/internal/payments"
	"tg_attribution_bot/internal/telegram"
)

const (
	startupProbeTimeout     = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	httpShutdownTimeout     = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":           "startup",
		"bot_username":    cfg.BotUsername,
		"channel_logging": cfg.ChannelLoggingEnabled(),
		"payment_logging": cfg.PaymentLogEnabled,
	}).Info("configuration loaded")

	leadClient := leads.NewClient(cfg.APIBaseURL, logger)
	tracker := firsttouch.NewTracker()

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithLeadSender(leadClient),
	)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	channelLogger := channellog.NewLogger(tgClient, cfg.LogChannelID, cfg.ChannelLoggingEnabled(), tracker, logger)
	flow := payments.NewFlow(tgClient.Gateway(), logger)

	tgClient.AttachChannel(channelLogger)
	tgClient.AttachFlow(flow)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), startupProbeTimeout)
	if leadClient.HealthCheck(probeCtx) {
		logger.WithField("event", "lead_api_reachable").Info("lead api health check passed")
	} else {
		logger.WithField("event", "lead_api_unreachable").Warn("lead api health check failed, leads will be retried per request")
	}
	if channelLogger.Enabled() && !channelLogger.Test(probeCtx) {
		logger.WithField("event", "log_channel_unreachable").Warn("log channel probe failed, channel logging may be broken")
	}
	cancelProbe()

	httpServer := httpapi.NewServer(cfg, channelLogger, flow, logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})
	httpDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("http api server error")
		}
		close(httpDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	case <-httpDone:
		logger.WithField("event", "http_stopped_early").Warn("http api server stopped before shutdown signal")
	}

	cancelTelegram()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := httpServer.Shutdown(httpCtx); err != nil {
		logger.WithError(err).Error("http api shutdown error")
	}
	cancelHTTP()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
