// README: Simulator publishing jittered positions for one unit over MQTT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"ubicaciones/internal/infra"
)

type reportPayload struct {
	UnitID string  `json:"unit_id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Route  string  `json:"route,omitempty"`
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	topicPrefix := flag.String("topic-prefix", "ubicacion", "Topic prefix; messages go to <prefix>/<unit-id>")
	unitID := flag.String("unit-id", "bus1", "Unit identifier")
	route := flag.String("route", "", "Route label sent with the first report only")
	lat := flag.Float64("lat", 19.4326, "Starting latitude")
	lon := flag.Float64("lon", -99.1332, "Starting longitude")
	step := flag.Float64("step-m", 80, "Maximum movement per tick in meters")
	interval := flag.Duration("interval", 2*time.Second, "Interval between reports")
	flag.Parse()

	clientID := fmt.Sprintf("%s-sim-%d", *unitID, time.Now().UnixNano())
	client, err := infra.NewMQTT(*broker, clientID, nil)
	if err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{"broker": *broker, "client_id": clientID}).Info("connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	topic := *topicPrefix + "/" + *unitID
	pos := [2]float64{*lat, *lon}
	first := true

	publish := func() {
		pos = jitter(pos, *step)
		p := reportPayload{UnitID: *unitID, Lat: pos[0], Lon: pos[1]}
		if first {
			p.Route = *route
			first = false
		}
		if err := send(client, topic, p); err != nil {
			log.WithError(err).Warn("publish failed")
			return
		}
		log.WithFields(log.Fields{"topic": topic, "lat": p.Lat, "lon": p.Lon}).Info("published")
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

func send(client mqtt.Client, topic string, p reportPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 1, false, data)
	token.Wait()
	return token.Error()
}

func jitter(pos [2]float64, meters float64) [2]float64 {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(pos[0]*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return [2]float64{pos[0] + dLat, pos[1] + dLon}
}
