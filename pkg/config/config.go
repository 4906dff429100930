package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// StorageMode selects the backing store for the data layer.
type StorageMode string

const (
	// ModeRemote uses the authoritative DynamoDB backend.
	ModeRemote StorageMode = "remote"
	// ModeLocal uses the in-process fallback store plus the sync coordinator.
	ModeLocal StorageMode = "local"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	HTTPPort    string      `env:"HTTP_PORT" envDefault:"8080"`
	StorageMode StorageMode `env:"STORAGE_MODE" envDefault:"remote"`

	// DynamoDB table names (remote mode).
	MembersTable            string `env:"DYNAMODB_MEMBERS_TABLE_NAME"`
	FlaresTable             string `env:"DYNAMODB_FLARES_TABLE_NAME"`
	HelpRequestsTable       string `env:"DYNAMODB_HELP_REQUESTS_TABLE_NAME"`
	LedgerTable             string `env:"DYNAMODB_LEDGER_TABLE_NAME"`
	ConnectionsTable        string `env:"DYNAMODB_CONNECTIONS_TABLE_NAME"`
	ConnectionRequestsTable string `env:"DYNAMODB_CONNECTION_REQUESTS_TABLE_NAME"`
	InvitesTable            string `env:"DYNAMODB_INVITES_TABLE_NAME"`
	AnnouncementsTable      string `env:"DYNAMODB_ANNOUNCEMENTS_TABLE_NAME"`
	RecipientsTable         string `env:"DYNAMODB_RECIPIENTS_TABLE_NAME"`

	// Gift delivery queue (remote mode).
	GiftQueueURL string `env:"SQS_GIFT_QUEUE_URL"`

	// Economy thresholds.
	MaxTrustLevel       int64 `env:"MAX_TRUST_LEVEL" envDefault:"5"`
	ElderHelpThreshold  int64 `env:"ELDER_HELP_THRESHOLD" envDefault:"10"`
	ElderTrustThreshold int64 `env:"ELDER_TRUST_THRESHOLD" envDefault:"25"`
	HoardLimit          int64 `env:"HOARD_LIMIT" envDefault:"20"`
	WelcomeGrant        int64 `env:"WELCOME_GRANT" envDefault:"3"`

	// Local-fallback sync (local mode).
	SyncDataDir      string        `env:"SYNC_DATA_DIR" envDefault:"./lantern-data"`
	SyncHubAddr      string        `env:"SYNC_HUB_ADDR" envDefault:""`
	SyncPollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"2s"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Remote reports whether the authoritative remote store is configured.
func (c *Config) Remote() bool {
	return c.StorageMode == ModeRemote
}
