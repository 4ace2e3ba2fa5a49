package db

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/trendlens/internal/models"
)

const (
	maxBatchWriteSize = 25
	maxBatchRetries   = 3
)

// DynamoDBAPI is the slice of *dynamodb.Client the stores use.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type PreferencesStore struct {
	client DynamoDBAPI
	table  string
}

func NewPreferencesStore(client DynamoDBAPI, table string) *PreferencesStore {
	return &PreferencesStore{client: client, table: table}
}

// GetUserPreferences returns models.ErrNotFound when the user has no record.
func (s *PreferencesStore) GetUserPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return models.UserPreferences{}, models.Upstream("preferences lookup", err)
	}
	if len(out.Item) == 0 {
		return models.UserPreferences{}, fmt.Errorf("[DynamoDB] preferences for user %s: %w", userID, models.ErrNotFound)
	}

	var prefs models.UserPreferences
	if err := attributevalue.UnmarshalMap(out.Item, &prefs); err != nil {
		slog.Error("[DynamoDB] Unable to unmarshal user preferences",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return models.UserPreferences{}, models.Upstream("preferences lookup", err)
	}
	if prefs.UserID == "" {
		prefs.UserID = userID
	}
	return prefs, nil
}

func (s *PreferencesStore) PutUserPreferences(ctx context.Context, prefs models.UserPreferences) error {
	item, err := attributevalue.MarshalMap(prefs)
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to marshal preferences: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return models.Upstream("preferences write", err)
	}

	slog.Info("[DynamoDB] Stored user preferences",
		slog.String("user_id", prefs.UserID))
	return nil
}

// TrendingStore persists trending snapshots; items expire through the
// table's expires_at TTL attribute.
type TrendingStore struct {
	client  DynamoDBAPI
	table   string
	backoff time.Duration
}

func NewTrendingStore(client DynamoDBAPI, table string) *TrendingStore {
	return &TrendingStore{client: client, table: table, backoff: 500 * time.Millisecond}
}

func trendingItem(entry models.TrendingEntry, rank int, generatedAt time.Time, ttl time.Duration) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return nil, err
	}
	item["rank"] = &types.AttributeValueMemberN{Value: strconv.Itoa(rank)}
	item["generated_at"] = &types.AttributeValueMemberS{Value: generatedAt.UTC().Format(time.RFC3339)}
	item["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(generatedAt.Add(ttl).Unix(), 10)}
	return item, nil
}

// StoreSnapshot writes the snapshot's entries in batches of 25, retrying
// unprocessed items with exponential backoff.
func (s *TrendingStore) StoreSnapshot(ctx context.Context, snapshot models.TrendingSnapshot, ttl time.Duration) error {
	entries := snapshot.Entries
	for i := 0; i < len(entries); i += maxBatchWriteSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := min(i+maxBatchWriteSize, len(entries))

		writeRequests := make([]types.WriteRequest, 0, end-i)
		for j, entry := range entries[i:end] {
			item, err := trendingItem(entry, i+j+1, snapshot.GeneratedAt, ttl)
			if err != nil {
				return fmt.Errorf("[DynamoDB] failed to marshal trending entry %s: %w", entry.Tag, err)
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.batchWrite(ctx, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored trending snapshot",
		slog.Int("entries", len(entries)))
	return nil
}

func (s *TrendingStore) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{s.table: writeRequests},
	})
	if err != nil {
		return models.Upstream("trending batch write", err)
	}

	backoff := s.backoff
	for retry := 0; len(out.UnprocessedItems) > 0 && retry < maxBatchRetries; retry++ {
		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retry+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return models.Upstream("trending batch write retry", err)
		}
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", remaining))
		return fmt.Errorf("[DynamoDB] %d trending items left unprocessed", remaining)
	}
	return nil
}
