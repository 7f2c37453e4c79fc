package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"rfid-bridge/internal/config"
	"rfid-bridge/internal/util"
)

type ScyllaClient struct {
	Session *gocql.Session
	config  *config.ScyllaConfig
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	if scyllaConfig.AutoMigrate {
		if err := ensureKeyspace(&scyllaConfig); err != nil {
			return nil, fmt.Errorf("failed to ensure keyspace: %w", err)
		}
	}

	cluster := newCluster(&scyllaConfig)
	cluster.Keyspace = scyllaConfig.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if scyllaConfig.AutoMigrate {
		if err := client.ensureSchema(); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func newCluster(cfg *config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	return cluster
}

// ensureKeyspace connects without a keyspace to create it when missing.
func ensureKeyspace(cfg *config.ScyllaConfig) error {
	cluster := newCluster(cfg)

	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to create bootstrap session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
        WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`,
		cfg.Keyspace)
	return session.Query(stmt).Exec()
}

func (s *ScyllaClient) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS access_logs (
            rfid_tag text,
            created_at timestamp,
            user_name text,
            access_point text,
            status text,
            PRIMARY KEY ((rfid_tag), created_at)
        ) WITH CLUSTERING ORDER BY (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS access_logs_status_idx ON access_logs (status)`,
		`CREATE TABLE IF NOT EXISTS security_events (
            event_id uuid PRIMARY KEY,
            sensor_id text,
            event_type text,
            description text,
            severity text,
            status text,
            duration double,
            created_at timestamp,
            resolved_at timestamp,
            resolution_notes text
        )`,
	}

	for _, stmt := range statements {
		if err := s.Session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	util.Info("ScyllaDB schema ensured")
	return nil
}

// Query builds a query against the session. gocql prepares and caches
// statements per statement string, so callers just pass the CQL constants.
func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}
