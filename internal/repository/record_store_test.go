package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l).WithField("component", "test")
}

// fakeDynamoDB honors the two condition expressions the store issues.
type fakeDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: map[string]map[string]types.AttributeValue{}}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["pk"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := pkOf(in.Item)
	existing, exists := f.items[pk]
	switch cond := *in.ConditionExpression; {
	case strings.HasPrefix(cond, "attribute_not_exists"):
		if exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	default:
		want := in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
		if !exists || existing["version"].(*types.AttributeValueMemberN).Value != want {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func storesUnderTest(t *testing.T) map[string]RecordStore {
	t.Helper()
	stores := map[string]RecordStore{
		"memory":   NewMemoryStore(),
		"dynamodb": NewDynamoDBStore(testLogger(), newFakeDynamoDB(), "records"),
	}

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tutor.db"))
	require.NoError(t, err)
	stores["sqlite"] = sqlite

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisStore, err := NewRedisStore(context.Background(), addr, "test:"+strconv.Itoa(os.Getpid())+":")
		require.NoError(t, err)
		stores["redis"] = redisStore
	}
	return stores
}

func TestRecordStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			key := "contract_" + name
			defer store.Delete(ctx, key)

			_, err := store.Get(ctx, key)
			assert.ErrorIs(t, err, ErrRecordNotFound)

			v1, err := store.Put(ctx, key, []byte(`{"a":1}`), 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), v1)

			_, err = store.Put(ctx, key, []byte(`{"a":2}`), 0)
			assert.ErrorIs(t, err, ErrVersionConflict, "create must fail when the record exists")

			v2, err := store.Put(ctx, key, []byte(`{"a":2}`), v1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), v2)

			_, err = store.Put(ctx, key, []byte(`{"a":3}`), v1)
			assert.ErrorIs(t, err, ErrVersionConflict, "stale version must be rejected")

			rec, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(rec.Data))
			assert.Equal(t, int64(2), rec.Version)
			assert.NotEmpty(t, rec.UpdatedAt)

			require.NoError(t, store.Delete(ctx, key))
			_, err = store.Get(ctx, key)
			assert.True(t, errors.Is(err, ErrRecordNotFound))
		})
	}
}

func TestUpdateJSONRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 2}

	type counter struct{ N int }
	got, err := updateJSON(ctx, store, "counter",
		func() *counter { return &counter{} },
		func(c *counter) error { c.N++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, got.N)
	assert.Equal(t, 3, store.puts)

	store = &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: maxUpdateAttempts}
	_, err = updateJSON(ctx, store, "counter",
		func() *counter { return &counter{} },
		func(c *counter) error { c.N++; return nil })
	assert.ErrorIs(t, err, ErrVersionConflict)
}

type conflictingStore struct {
	*MemoryStore
	conflicts int
	puts      int
}

func (s *conflictingStore) Put(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	s.puts++
	if s.puts <= s.conflicts {
		return 0, ErrVersionConflict
	}
	return s.MemoryStore.Put(ctx, key, data, expected)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Zero(t, calculateBackoff(10, 0))
	for attempt := 1; attempt < 20; attempt++ {
		d := calculateBackoff(10_000_000, attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, int64(d), int64(1_250_000_000))
	}
}
