/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package nats

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/loqalabs/audioplay-go/internal/playback"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

// StatusMessage is the JSON body published for every playback transition
type StatusMessage struct {
	State     string    `json:"state"`           // Lifecycle state entered
	From      string    `json:"from"`            // Previous state
	Device    int       `json:"device"`          // Audio device ID
	Channel   int       `json:"channel"`         // Audio channel ID
	Path      string    `json:"path"`            // File being played
	Bytes     int64     `json:"bytes"`           // Bytes handed to the device so far
	Error     string    `json:"error,omitempty"` // Set when State is "failed"
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusMessage converts a playback event into its wire form
func NewStatusMessage(e playback.Event) StatusMessage {
	msg := StatusMessage{
		State:     e.State.String(),
		From:      e.From.String(),
		Device:    e.Device,
		Channel:   e.Channel,
		Path:      e.Path,
		Bytes:     e.Bytes,
		Timestamp: e.Time,
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	return msg
}

// StatusConnection interface for dependency injection
type StatusConnection interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Flush() error
	Close()
}

// StatusConnectionAdapter adapts *nats.Conn to StatusConnection interface
type StatusConnectionAdapter struct {
	conn *nats.Conn
}

func NewStatusConnectionAdapter(conn *nats.Conn) *StatusConnectionAdapter {
	return &StatusConnectionAdapter{conn: conn}
}

func (r *StatusConnectionAdapter) Publish(subject string, data []byte) error {
	return r.conn.Publish(subject, data)
}

func (r *StatusConnectionAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return r.conn.Subscribe(subject, cb)
}

func (r *StatusConnectionAdapter) Flush() error {
	return r.conn.Flush()
}

func (r *StatusConnectionAdapter) Close() {
	r.conn.Close()
}

// StatusPublisher publishes playback transitions to NATS. Publish
// failures are logged and never interrupt playback.
type StatusPublisher struct {
	natsConn StatusConnection
	subject  string
	logger   *log.Logger

	mu     sync.Mutex
	failed int
}

// NewStatusPublisher connects to natsURL and publishes on subject
func NewStatusPublisher(natsURL, subject string, logger *log.Logger) (*StatusPublisher, error) {
	if logger == nil {
		logger = log.Default()
	}

	// Connect to NATS with retry
	var nc *nats.Conn
	var err error

	for i := 0; i < connectAttempts; i++ {
		nc, err = nats.Connect(natsURL, nats.Name("audioplay"), nats.Timeout(2*time.Second))
		if err == nil {
			break
		}
		logger.Warn("⚠️  Failed to connect to NATS", "attempt", i+1, "of", connectAttempts, "err", err)
		time.Sleep(connectBackoff)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", connectAttempts, err)
	}

	logger.Info("✅ Connected to NATS", "url", natsURL, "subject", subject)
	return NewStatusPublisherWithConnection(NewStatusConnectionAdapter(nc), subject, logger), nil
}

// NewStatusPublisherWithConnection creates a publisher over an existing connection (for testing)
func NewStatusPublisherWithConnection(natsConn StatusConnection, subject string, logger *log.Logger) *StatusPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &StatusPublisher{
		natsConn: natsConn,
		subject:  subject,
		logger:   logger,
	}
}

// Subject returns the subject transitions are published on
func (sp *StatusPublisher) Subject() string {
	return sp.subject
}

// StopSubject returns the subject ListenForStop subscribes to
func (sp *StatusPublisher) StopSubject() string {
	return sp.subject + ".stop"
}

// OnTransition implements playback.Observer
func (sp *StatusPublisher) OnTransition(e playback.Event) {
	data, err := json.Marshal(NewStatusMessage(e))
	if err != nil {
		sp.recordFailure()
		sp.logger.Error("❌ Failed to marshal status message", "err", err)
		return
	}

	if err := sp.natsConn.Publish(sp.subject, data); err != nil {
		sp.recordFailure()
		sp.logger.Warn("⚠️  Failed to publish status", "subject", sp.subject, "state", e.State, "err", err)
		return
	}
	sp.logger.Debug("📤 Published status", "subject", sp.subject, "state", e.State)
}

// ListenForStop calls stop when any message arrives on StopSubject
func (sp *StatusPublisher) ListenForStop(stop func()) error {
	subject := sp.StopSubject()
	_, err := sp.natsConn.Subscribe(subject, func(msg *nats.Msg) {
		sp.logger.Info("🛑 Stop requested over NATS", "subject", msg.Subject)
		stop()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	sp.logger.Info("🎧 Listening for stop requests", "subject", subject)
	return nil
}

// Failures returns how many transitions could not be published
func (sp *StatusPublisher) Failures() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.failed
}

func (sp *StatusPublisher) recordFailure() {
	sp.mu.Lock()
	sp.failed++
	sp.mu.Unlock()
}

// Close flushes pending messages and closes the NATS connection
func (sp *StatusPublisher) Close() {
	if sp.natsConn == nil {
		return
	}
	if err := sp.natsConn.Flush(); err != nil {
		sp.logger.Warn("⚠️  Failed to flush NATS connection", "err", err)
	}
	sp.natsConn.Close()
	sp.logger.Info("🔌 NATS connection closed")
}

var _ playback.Observer = (*StatusPublisher)(nil)
