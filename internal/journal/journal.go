// Package journal optionally records fan-out outcomes in MongoDB for offline
// inspection. It is write-only: nothing in here is ever read back at startup,
// coordinator state does not survive a restart.
package journal

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongoevent "go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	c "github.com/rendezvous-dev/rendezvous-go-coordinator/internal/config"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/event"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/utils"
)

const DeliveryCollectionName = "deliveries"

var Client *mongo.Client
var Database *mongo.Database
var Deliveries *mongo.Collection
var OperationTimeout time.Duration

type CloseCallback struct {
}

func NewCloseCallback() *CloseCallback {
	return &CloseCallback{}
}

func (dc *CloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing journal database connection")
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()
	return Client.Disconnect(ctx)
}

func Connect() error {
	logger.DebugF("Connecting to journal database...")
	config, err := c.GetConfig()
	if err != nil {
		return fmt.Errorf("error occured while connecting to journal database: %v", err)
	}

	OperationTimeout = utils.ParseStringTime(config.Journal.OperationTimeout)

	encodedUser := url.QueryEscape(config.Journal.Username)
	encodedPass := url.QueryEscape(config.Journal.Password)
	databaseUrl := fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		config.Journal.Host,
		config.Journal.Port,
	)

	clientOptions := options.Client().ApplyURI(databaseUrl).SetAppName(config.AppName)
	clientOptions.SetMinPoolSize(config.Journal.MinPoolSize)
	clientOptions.SetMaxPoolSize(config.Journal.MaxPoolSize)
	clientOptions.SetMaxConnIdleTime(utils.ParseStringTime(config.Journal.ConnectIdleTimeout))
	clientOptions.SetConnectTimeout(utils.ParseStringTime(config.Journal.ConnectTimeout))
	clientOptions.SetSocketTimeout(utils.ParseStringTime(config.Journal.SocketTimeout))
	clientOptions.SetHeartbeatInterval(utils.ParseStringTime(config.Journal.Heartbeat))
	if config.Journal.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		clientOptions.SetTLSConfig(tlsConfig)
	}
	clientOptions.SetPoolMonitor(&mongoevent.PoolMonitor{
		Event: func(evt *mongoevent.PoolEvent) {
			switch evt.Type {
			case mongoevent.ConnectionCreated:
				logger.DebugF("Journal database connection created: %+v", evt)
			case mongoevent.ConnectionClosed:
				logger.DebugF("Journal database connection closed: %+v", evt)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	Client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error occured while connecting to journal database: %v", err)
	}

	if err = Client.Ping(ctx, nil); err != nil {
		_ = Client.Disconnect(ctx)
		return fmt.Errorf("error occured while pinging journal database: %v", err)
	}

	Database = Client.Database(config.Journal.Database)
	Deliveries = Database.Collection(DeliveryCollectionName)

	_, err = Deliveries.Indexes().CreateOne(
		context.Background(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "logged_at", Value: 1}},
			Options: options.Index().SetName("deliveries_recipient_logged_at"),
		},
	)

	if err != nil {
		return fmt.Errorf("error occured while creating journal indexes: %v", err)
	}

	event.NewCleaner().Add(NewCloseCallback())

	logger.Debug("Journal database connected")
	return nil
}
