/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/rabe42/state-machines/journal"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MQTTOptions configures the MQTT bridge.
type MQTTOptions struct {
	// Broker is the broker URL, like "tcp://localhost:1883".
	Broker string

	// ClientId defaults to a generated one.
	ClientId string

	// Prefix is the topic prefix; default "machines".  Events
	// arrive on <prefix>/<machine-id>/send with the event id as
	// payload, and journal entries go out on
	// <prefix>/<machine-id>/events.  The machine id is
	// path-escaped, just as in URLs.
	Prefix string

	Username string
	Password string
	QoS      byte

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint
}

// MQTTBridge couples a service to an MQTT broker.
type MQTTBridge struct {
	Client mqtt.Client

	opts MQTTOptions
	s    *Service
}

// StartMQTT connects to the broker, subscribes for inbound events,
// and starts publishing journal entries.
func (s *Service) StartMQTT(ctx context.Context, opts MQTTOptions) (*MQTTBridge, error) {
	if "" == opts.Prefix {
		opts.Prefix = "machines"
	}
	if "" == opts.ClientId {
		opts.ClientId = "smachd-" + uuid.NewString()
	}
	if 0 == opts.Quiesce {
		opts.Quiesce = 100
	}

	mqtt.ERROR = log.StandardLogger()

	copts := mqtt.NewClientOptions()
	copts.AddBroker(opts.Broker)
	copts.SetClientID(opts.ClientId)
	copts.SetKeepAlive(10 * time.Second)
	copts.Username = opts.Username
	copts.Password = opts.Password
	copts.AutoReconnect = true
	copts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	b := &MQTTBridge{
		opts: opts,
		s:    s,
	}
	b.Client = mqtt.NewClient(copts)

	log.WithField("broker", opts.Broker).Info("MQTT connecting")
	if token := b.Client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	topic := opts.Prefix + "/+/send"
	handler := func(client mqtt.Client, msg mqtt.Message) {
		b.inHandler(ctx, client, msg)
	}
	if t := b.Client.Subscribe(topic, opts.QoS, handler); t.Wait() && t.Error() != nil {
		return nil, t.Error()
	}
	log.WithField("topic", topic).Info("MQTT subscribed")

	firehose := make(chan *journal.Entry, 1024)
	s.setFirehose(firehose)
	go b.outLoop(ctx, firehose)

	return b, nil
}

// inHandler feeds a broker message to the machine named by its topic.
func (b *MQTTBridge) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()

	prefix := b.opts.Prefix + "/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/send") {
		log.WithField("topic", topic).Warn("MQTT message on unexpected topic")
		return
	}
	enc := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/send")
	mid, err := url.PathUnescape(enc)
	if err != nil {
		mid = enc
	}

	eventId := strings.TrimSpace(string(msg.Payload()))

	if _, err := b.s.SendEvent(ctx, mid, eventId); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"machine": mid,
			"event":   eventId,
		}).Warn("MQTT send failed")
	}
}

// outLoop publishes journal entries to the broker.
func (b *MQTTBridge) outLoop(ctx context.Context, entries chan *journal.Entry) {
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case e := <-entries:
			if e == nil {
				break LOOP
			}
			js, err := json.Marshal(e)
			if err != nil {
				log.WithError(err).Warn("MQTT entry marshal failed")
				continue
			}
			topic := b.opts.Prefix + "/" + url.PathEscape(e.MachineId) + "/events"
			token := b.Client.Publish(topic, b.opts.QoS, false, js)
			token.Wait()
			if token.Error() != nil {
				log.WithError(token.Error()).WithField("topic", topic).Warn("MQTT publish failed")
			}
		}
	}
}

// Stop disconnects from the broker.
func (b *MQTTBridge) Stop(ctx context.Context) error {
	log.Info("MQTT disconnecting")
	b.Client.Disconnect(b.opts.Quiesce)
	return nil
}
