package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/offgrid-dt/core/model"
	"github.com/kilianp07/offgrid-dt/core/runlog"
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
`

func startMosquitto(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0644,
		}},
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// TestGuidanceIntegration publishes guidance through a real Mosquitto broker.
func TestGuidanceIntegration(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	broker := startMosquitto(t)

	msgCh := make(chan []byte, 1)
	subOpts := paho.NewClientOptions().AddBroker(broker).SetClientID("sub")
	sub := paho.NewClient(subOpts)
	var err error
	for i := 0; i < 10; i++ {
		tok := sub.Connect()
		tok.Wait()
		if err = tok.Error(); err == nil {
			break
		}
		time.Sleep(300 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Disconnect(100)
	if tok := sub.Subscribe("it/guidance", 1, func(_ paho.Client, m paho.Message) { msgCh <- m.Payload() }); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	cli, err := NewPahoClient(Config{Broker: broker, ClientID: "pub", QoS: 1})
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer cli.Disconnect()
	g := NewGuidancePublisher(cli, "it")
	ev := runlog.GuidanceEvent{RunID: "run-1", Step: 3, Guidance: model.Guidance{Headline: "Battery low", RiskLevel: model.RiskHigh}}
	if err := g.AppendGuidance(context.Background(), ev); err != nil {
		t.Fatalf("append guidance: %v", err)
	}

	select {
	case payload := <-msgCh:
		var got runlog.GuidanceEvent
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.RunID != "run-1" || got.Step != 3 || got.Guidance.Headline != "Battery low" {
			t.Fatalf("unexpected payload %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for guidance")
	}
}
