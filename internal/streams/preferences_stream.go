package streams

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spacesedan/trendlens/internal/cache"
	"github.com/spacesedan/trendlens/internal/models"
)

// PreferencesStreamHandler consumes the UserPreferences table stream and
// drops cached profile vectors of users whose preferences changed.
type PreferencesStreamHandler struct {
	cache cache.Store
}

func NewPreferencesStreamHandler(store cache.Store) *PreferencesStreamHandler {
	return &PreferencesStreamHandler{cache: store}
}

// HandleEvent reports failed records individually so Lambda only retries
// those.
func (h *PreferencesStreamHandler) HandleEvent(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	slog.Info("[PreferencesStream] Received DynamoDB event",
		slog.Int("records", len(event.Records)))

	var resp events.DynamoDBEventResponse
	for _, record := range event.Records {
		if err := h.HandleRecord(ctx, record); err != nil {
			slog.Error("[PreferencesStream] Failed to process record",
				slog.String("event_id", record.EventID),
				slog.String("error", err.Error()))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
		}
	}
	return resp, nil
}

func (h *PreferencesStreamHandler) HandleRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	var key struct {
		UserID string `dynamodbav:"user_id"`
	}
	if err := unmarshalImage(record.Change.Keys, &key); err != nil {
		return fmt.Errorf("[PreferencesStream] failed to read record keys: %w", err)
	}
	if key.UserID == "" {
		return fmt.Errorf("[PreferencesStream] record %s has no user_id key", record.EventID)
	}

	if record.EventName == string(events.DynamoDBOperationTypeModify) && !preferencesChanged(record.Change) {
		slog.Debug("[PreferencesStream] Preferences unchanged, skipping",
			slog.String("user_id", key.UserID))
		return nil
	}

	if err := cache.InvalidateProfile(ctx, h.cache, key.UserID); err != nil {
		return fmt.Errorf("[PreferencesStream] failed to invalidate profile for %s: %w", key.UserID, err)
	}

	slog.Info("[PreferencesStream] Invalidated profile embedding",
		slog.String("user_id", key.UserID),
		slog.String("event", record.EventName))
	return nil
}

// preferencesChanged compares old and new images. Without both images the
// change is assumed relevant.
func preferencesChanged(change events.DynamoDBStreamRecord) bool {
	var before, after models.UserPreferences
	if err := unmarshalImage(change.OldImage, &before); err != nil {
		return true
	}
	if err := unmarshalImage(change.NewImage, &after); err != nil {
		return true
	}
	return !slices.Equal(before.Interests, after.Interests) ||
		!slices.Equal(before.Sources, after.Sources) ||
		!slices.Equal(before.ContentTypes, after.ContentTypes)
}
