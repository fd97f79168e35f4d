package mongo

import (
	"context"
	"fmt"
	"time"

	"alcyxob/physiotrack/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Client owns the driver connection for the lifetime of the process.
// Construct it once at startup, hand Database() to repositories and Close it at shutdown.
type Client struct {
	client *mongo.Client
	dbName string
	log    *zap.Logger
}

// Connect establishes a connection to MongoDB and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("physiotrack").
		SetServerSelectionTimeout(defaultTimeout)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	// Ping the primary separately: Connect succeeds lazily even when no server answers.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Info("Connected to MongoDB", zap.String("database", cfg.Name))
	return &Client{client: client, dbName: cfg.Name, log: log}, nil
}

// Database returns the configured application database.
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.dbName)
}

// Close gracefully disconnects the MongoDB client.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	c.log.Info("Disconnecting MongoDB")
	return c.client.Disconnect(ctx)
}

// PatientCollection exposes the patients collection for index setup.
func (c *Client) PatientCollection() *mongo.Collection {
	return c.Database().Collection(patientCollectionName)
}
