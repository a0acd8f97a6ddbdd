// Caninana
// Copyright (c) 2026, Caninana contributors

// Package verdictbus fans scan verdicts out to a RabbitMQ exchange, so
// that other systems (a SIEM, a quarantine dashboard) can react to
// detections as they happen. Grounded on submitter/submitter.go's
// reconnect-goroutine AMQP design.
package verdictbus

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NeowayLabs/wabbit"
	origamqp "github.com/rabbitmq/amqp091-go"

	"github.com/caninana/caninana/engine"
	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/logging"
)

const amqpReconnDelay = 2 * time.Second

// routingKey is used for every published verdict, distinct from the
// exchange name.
const routingKey = "caninana.verdict"

// VerdictEvent is the JSON envelope published for every completed scan.
type VerdictEvent struct {
	SensorID   string                `json:"sensor_id"`
	Path       string                `json:"path"`
	FileInfo   fileanalyzer.FileInfo `json:"file_info"`
	ScanResult engine.ScanResult     `json:"scan_result"`
	Timestamp  string                `json:"timestamp"`
}

// Publisher sends verdict events to some downstream consumer.
type Publisher interface {
	Publish(event VerdictEvent) error
	Close()
}

// sensorID identifies the host a verdict originated from, preferring the
// machine ID over the hostname.
func sensorID() string {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		return strings.TrimSpace(string(b))
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// AMQPPublisher publishes verdicts to a RabbitMQ exchange, reconnecting
// automatically on connection loss.
type AMQPPublisher struct {
	url              string
	exchange         string
	conn             wabbit.Conn
	channel          wabbit.Channel
	connMutex        sync.Mutex
	chanMutex        sync.Mutex
	errorChan        chan wabbit.Error
	stopReconnection chan bool
	reconnector      func(string) (wabbit.Conn, string, error)
	logger           *logging.Logger
	sensor           string
}

// NewAMQPPublisher connects to amqpURI using reconnector as the Dial
// implementation, so tests can substitute amqptest for a live broker.
func NewAMQPPublisher(amqpURI, user, pass, exchange string, logger *logging.Logger,
	reconnector func(string) (wabbit.Conn, string, error)) (*AMQPPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p := &AMQPPublisher{
		url:              "amqp://" + user + ":" + pass + "@" + amqpURI + "/",
		exchange:         exchange,
		reconnector:      reconnector,
		stopReconnection: make(chan bool),
		logger:           logger,
		sensor:           sensorID(),
	}
	p.errorChan = make(chan wabbit.Error)
	if err := p.connect(); err != nil {
		return nil, err
	}
	p.conn.NotifyClose(p.errorChan)
	go p.reconnectOnFailure()
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	p.connMutex.Lock()
	conn, exchangeType, err := p.reconnector(p.url)
	p.conn = conn
	p.connMutex.Unlock()
	if err != nil {
		return err
	}

	p.chanMutex.Lock()
	channel, err := p.conn.Channel()
	p.channel = channel
	p.chanMutex.Unlock()
	if err != nil {
		p.connMutex.Lock()
		p.conn.Close()
		p.connMutex.Unlock()
		return err
	}

	err = p.channel.ExchangeDeclare(p.exchange, exchangeType, wabbit.Option{
		"durable":    true,
		"autoDelete": false,
		"internal":   false,
		"noWait":     false,
	})
	if err != nil {
		p.chanMutex.Lock()
		p.channel.Close()
		p.chanMutex.Unlock()
		p.connMutex.Lock()
		p.conn.Close()
		p.connMutex.Unlock()
		return err
	}
	p.logger.Info("VerdictBus", "established connection to "+p.url)
	return nil
}

func (p *AMQPPublisher) reconnectOnFailure() {
	for {
		select {
		case <-p.stopReconnection:
			return
		case rabbitErr := <-p.errorChan:
			if rabbitErr == nil {
				continue
			}
			p.logger.Warning("VerdictBus", "RabbitMQ connection failed: "+rabbitErr.Reason())
			for {
				time.Sleep(amqpReconnDelay)
				if err := p.connect(); err != nil {
					p.logger.Warning("VerdictBus", "reconnect attempt failed: "+err.Error())
					continue
				}
				p.logger.Info("VerdictBus", "reestablished connection to "+p.url)
				p.connMutex.Lock()
				p.conn.NotifyClose(p.errorChan)
				p.connMutex.Unlock()
				break
			}
		}
	}
}

// Publish sends event to the configured exchange.
func (p *AMQPPublisher) Publish(event VerdictEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.chanMutex.Lock()
	err = p.channel.Publish(p.exchange, routingKey, data, wabbit.Option{
		"contentType": "application/json",
		"headers": origamqp.Table{
			"sensor_id": p.sensor,
		},
	})
	p.chanMutex.Unlock()
	if err != nil {
		p.logger.Warning("VerdictBus", "publish failed: "+err.Error())
	}
	return err
}

// Close stops the reconnect goroutine.
func (p *AMQPPublisher) Close() {
	close(p.stopReconnection)
}

// NullPublisher discards every verdict. It is the default when no message
// bus is configured.
type NullPublisher struct{}

// Publish does nothing and never fails.
func (NullPublisher) Publish(VerdictEvent) error { return nil }

// Close is a no-op.
func (NullPublisher) Close() {}
