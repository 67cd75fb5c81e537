//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/ciutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	if url := ciutil.TestRedisURL(); url != "" {
		return connectRedis(t, url)
	}

	container, err := redis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithOccurrence(1).WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		if ciutil.IsCI() {
			t.Fatalf("Failed to start Redis testcontainer: %v", err)
		}
		t.Skipf("Failed to start Redis testcontainer: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return connectRedis(t, connStr)
}

func connectRedis(t *testing.T, url string) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRelayFansOutAcrossInstances(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const channel = "test:task-events"
	hubA := NewHub(4, testLogger())
	hubB := NewHub(4, testLogger())
	relayA := NewRedisRelay(client, channel, hubA, testLogger())
	relayB := NewRedisRelay(client, channel, hubB, testLogger())

	done := make(chan error, 2)
	go func() { done <- relayA.Run(ctx) }()
	go func() { done <- relayB.Run(ctx) }()
	for _, relay := range []*RedisRelay{relayA, relayB} {
		select {
		case <-relay.Ready():
		case <-time.After(10 * time.Second):
			t.Fatal("relay did not subscribe in time")
		}
	}

	projectID := uuid.New()
	subB, unsubscribe := hubB.Subscribe(projectID)
	defer unsubscribe()

	task := testTask(t, projectID)
	require.NoError(t, relayA.Publish(ctx, NewTaskEvent(TaskUpdated, task)))

	select {
	case msg := <-subB:
		var event TaskEvent
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, TaskUpdated, event.Type)
		assert.Equal(t, task.ID, event.Payload.Task.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not relayed to the other instance")
	}

	cancel()
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}
