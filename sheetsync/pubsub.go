package sheetsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

func PublishSyncRun(ctx context.Context, runId uint) error {
	topicName := strings.TrimSpace(os.Getenv("SHEET_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "sheet-sync"
	}

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SHEET_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	res := topic.Publish(ctx, &pubsub.Message{Data: EncodeSyncPayload(runId)})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler processes a pushed sync-run message. Malformed pushes
// are acked with 204 so the subscription does not redeliver garbage forever.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 {
			c.Status(204)
			return
		}

		_, _ = RunBatchSync(c.Request.Context(), payload.RunId)
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
