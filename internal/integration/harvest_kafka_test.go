//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/baidu"
	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/kafka"
	"github.com/couchcryptid/baidu-place-harvester/internal/config"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/harvest"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

const (
	testTopic   = "test-places"
	totalPlaces = 25
	pageSize    = 10
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fakePlaceAPI serves totalPlaces results split into pages of page_size.
// The first result of every page carries the 囗 look-alike in its name.
func fakePlaceAPI(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page_num"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		results := make([]map[string]any, 0, size)
		for i := page * size; i < min((page+1)*size, totalPlaces); i++ {
			name := fmt.Sprintf("店%02d", i)
			if i%size == 0 {
				name = "囗" + name
			}
			results = append(results, map[string]any{
				"uid":      fmt.Sprintf("uid-%02d", i),
				"name":     name,
				"location": map[string]float64{"lat": 39.9 + float64(i)/1000, "lng": 116.4},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  0,
			"message": "ok",
			"total":   totalPlaces,
			"results": results,
		})
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

// TestHarvestToKafka wires the Baidu client, the harvester, and the Kafka
// writer, and verifies every page of a search lands on the topic.
func TestHarvestToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	metrics := observability.NewMetricsForTesting()
	client, err := baidu.NewClient(baidu.Config{
		AccessKey: "test-ak",
		Host:      fakePlaceAPI(t),
	}, discardLogger(), metrics)
	require.NoError(t, err)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	h := harvest.New(client, writer, discardLogger(), metrics, 7, harvest.Job{
		Queries:  []string{"购物"},
		Filter:   baidu.InRegion("北京"),
		PageSize: pageSize,
	})
	sum, err := h.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, totalPlaces, sum.Places)
	require.NoError(t, h.CheckReadiness(ctx))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i := range totalPlaces {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read message %d", i)

		headers := make(map[string]string, len(msg.Headers))
		for _, hd := range msg.Headers {
			headers[hd.Key] = string(hd.Value)
		}
		assert.Equal(t, "购物", headers["query"])
		_, err = time.Parse(time.RFC3339, headers["harvested_at"])
		assert.NoError(t, err, "harvested_at should be valid RFC3339")

		var rec domain.PlaceRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, fmt.Sprintf("uid-%02d", i), string(msg.Key), "pages arrive in order")
		assert.Equal(t, string(msg.Key), rec.Place.UID())
		assert.Equal(t, "北京", rec.Region)
		assert.NotContains(t, rec.Place.Name(), "囗")
	}
}
