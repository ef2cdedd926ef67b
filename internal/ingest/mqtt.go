// README: MQTT ingest; position reports published on ubicacion/<unit_id> go through the same upsert as POST /ubicacion.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"ubicaciones/internal/modules/location"
)

type Reporter interface {
	Report(ctx context.Context, r location.Report) error
}

// payload mirrors the POST /ubicacion body.
type payload struct {
	UnitID   string   `json:"unit_id"`
	UnidadID string   `json:"unidad_id"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Route    *string  `json:"route"`
}

type Subscriber struct {
	ctx   context.Context
	svc   Reporter
	topic string
	qos   byte
	log   logrus.FieldLogger
}

// NewSubscriber returns a subscriber whose reports run under ctx, so
// cancelling ctx aborts in-flight store calls on shutdown.
func NewSubscriber(ctx context.Context, svc Reporter, topic string, log logrus.FieldLogger) *Subscriber {
	return &Subscriber{ctx: ctx, svc: svc, topic: topic, qos: 1, log: log}
}

// OnConnect subscribes on every (re)connect; paho does not restore
// subscriptions on a clean session.
func (s *Subscriber) OnConnect(c mqtt.Client) {
	token := c.Subscribe(s.topic, s.qos, s.HandleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.log.WithError(err).WithField("topic", s.topic).Error("mqtt subscribe failed")
		return
	}
	s.log.WithField("topic", s.topic).Info("mqtt subscribed")
}

func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.process(msg.Topic(), msg.Payload()); err != nil {
		s.log.WithError(err).WithField("topic", msg.Topic()).Warn("mqtt report dropped")
	}
}

func (s *Subscriber) process(topic string, data []byte) error {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	unitID := p.UnitID
	if unitID == "" {
		unitID = p.UnidadID
	}
	if unitID == "" {
		unitID = unitFromTopic(topic)
	}

	return s.svc.Report(s.ctx, location.Report{UnitID: unitID, Lat: p.Lat, Lon: p.Lon, Route: p.Route})
}

// unitFromTopic returns the last topic level, e.g. "bus1" for "ubicacion/bus1".
func unitFromTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 || i == len(topic)-1 {
		return ""
	}
	return topic[i+1:]
}
