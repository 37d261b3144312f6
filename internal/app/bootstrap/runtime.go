package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildEmailSender picks the first configured email provider: SES, then
// SendGrid, then the logging stub.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	if sesClient != nil && cfg.SESFromEmail != "" {
		logger.Info("ses email sender initialized for crisis alerts", "from", cfg.SESFromEmail)
		return notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}

	if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
		logger.Info("sendgrid email sender initialized for crisis alerts", "from", cfg.SendGridFromEmail)
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}

	logger.Warn("email alerts disabled (no SES or SendGrid sender configured)")
	return notify.NewStubEmailSender(logger)
}

// BuildNotifyService assembles the professional-alert service over the
// configured on-call roster. SMS and in-app delivery fall back to logging
// stubs until a provider is wired.
func BuildNotifyService(cfg *appconfig.Config, email notify.EmailSender, m *metrics.CrisisMetrics, logger *logging.Logger) *notify.Service {
	if logger == nil {
		logger = logging.Default()
	}
	var emails, phones []string
	if cfg != nil {
		emails = cfg.OnCallEmails
		phones = cfg.OnCallPhones
	}
	if len(emails) == 0 && len(phones) == 0 {
		logger.Warn("on-call roster is empty; professional alerts will have no recipients")
	}

	roster := notify.NewStaticRoster(emails, phones)
	return notify.NewService(
		email,
		notify.NewStubSMSSender(logger),
		notify.NewStubUserMessenger(logger),
		roster,
		m,
		logger,
	)
}
