package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDB is an in-memory DynamoDB mock keyed by gen_key.
type mockDDB struct {
	mu         sync.Mutex
	gens       map[string]uint64
	batchCalls int
	deferN     int // keys reported unprocessed on the next batch call
	failAll    error
}

func newMockDDB() *mockDDB { return &mockDDB{gens: make(map[string]uint64)} }

func keyOf(item map[string]types.AttributeValue) string {
	return item[ddbKeyAttr].(*types.AttributeValueMemberS).Value
}

func (m *mockDDB) itemFor(k string) map[string]types.AttributeValue {
	g, ok := m.gens[k]
	if !ok {
		return nil
	}
	return map[string]types.AttributeValue{
		ddbKeyAttr: &types.AttributeValueMemberS{Value: k},
		ddbGenAttr: &types.AttributeValueMemberN{Value: strconv.FormatUint(g, 10)},
	}
}

func (m *mockDDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	return &dynamodb.GetItemOutput{Item: m.itemFor(keyOf(in.Key))}, nil
}

func (m *mockDDB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	if *in.UpdateExpression != "ADD #g :one" {
		return nil, fmt.Errorf("unexpected update expression %q", *in.UpdateExpression)
	}
	k := keyOf(in.Key)
	m.gens[k]++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		ddbGenAttr: &types.AttributeValueMemberN{Value: strconv.FormatUint(m.gens[k], 10)},
	}}, nil
}

func (m *mockDDB) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.batchCalls++
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		if len(ka.Keys) > ddbBatchSize {
			return nil, errors.New("too many keys in batch")
		}
		keys := ka.Keys
		if m.deferN > 0 && len(keys) > m.deferN {
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{
				table: {Keys: keys[:m.deferN], ConsistentRead: ka.ConsistentRead},
			}
			keys = keys[m.deferN:]
			m.deferN = 0
		}
		for _, k := range keys {
			if item := m.itemFor(keyOf(k)); item != nil {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func newDynamo(t *testing.T, m *mockDDB) *DynamoGenStore {
	t.Helper()
	s, err := NewDynamoGenStore(DynamoConfig{Client: m, Table: "gens", Namespace: "plots"})
	require.NoError(t, err)
	return s
}

func TestDynamoBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	m := newMockDDB()
	s := newDynamo(t, m)

	g, err := s.Snapshot(ctx, "p0")
	require.NoError(t, err)
	assert.Zero(t, g)

	for want := uint64(1); want <= 3; want++ {
		got, err := s.Bump(ctx, "p0")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	g, err = s.Snapshot(ctx, "p0")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), g)
	assert.Contains(t, m.gens, "gen:plots:p0")
}

func TestDynamoSnapshotManyChunksAndRetries(t *testing.T) {
	ctx := context.Background()
	m := newMockDDB()
	s := newDynamo(t, m)

	keys := make([]string, 250)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%03d", i)
	}
	_, err := s.Bump(ctx, "k007")
	require.NoError(t, err)
	_, err = s.Bump(ctx, "k199")
	require.NoError(t, err)
	_, err = s.Bump(ctx, "k199")
	require.NoError(t, err)

	m.deferN = 5
	got, err := s.SnapshotMany(ctx, keys)
	require.NoError(t, err)
	require.Len(t, got, len(keys))
	assert.Equal(t, uint64(1), got["k007"])
	assert.Equal(t, uint64(2), got["k199"])
	assert.Zero(t, got["k000"])
	// 3 chunks plus one retry for the deferred keys
	assert.Equal(t, 4, m.batchCalls)
}

func TestDynamoErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	m := newMockDDB()
	m.failAll = errors.New("throttled")
	s := newDynamo(t, m)

	_, err := s.Snapshot(ctx, "a")
	assert.ErrorIs(t, err, m.failAll)
	_, err = s.SnapshotMany(ctx, []string{"a"})
	assert.ErrorIs(t, err, m.failAll)
	_, err = s.Bump(ctx, "a")
	assert.ErrorIs(t, err, m.failAll)
}

func TestDynamoConfigValidation(t *testing.T) {
	_, err := NewDynamoGenStore(DynamoConfig{Table: "t"})
	assert.Error(t, err)
	_, err = NewDynamoGenStore(DynamoConfig{Client: newMockDDB()})
	assert.Error(t, err)
}
