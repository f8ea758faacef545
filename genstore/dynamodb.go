package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoGenStore keeps generations in a DynamoDB table so that processes
// sharing an S3 or MinIO entry store also share invalidations.
//
// Table schema:
//   - Partition key: gen_key (string)
//   - Attribute gen (number), created on first bump
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name rendercache-gens \
//	  --attribute-definitions AttributeName=gen_key,AttributeType=S \
//	  --key-schema AttributeName=gen_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoGenStore struct {
	client DDBClient
	table  string
	ns     string
}

var _ GenStore = (*DynamoGenStore)(nil)

// DDBClient is the subset of the DynamoDB API the store uses.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

type DynamoConfig struct {
	Client    DDBClient
	Table     string
	Namespace string
}

const (
	ddbKeyAttr   = "gen_key"
	ddbGenAttr   = "gen"
	ddbBatchSize = 100 // BatchGetItem limit per request
	ddbMaxRounds = 8   // retries for UnprocessedKeys
)

func NewDynamoGenStore(cfg DynamoConfig) (*DynamoGenStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("dynamodb genstore: nil client")
	}
	if cfg.Table == "" {
		return nil, errors.New("dynamodb genstore: empty table")
	}
	return &DynamoGenStore{client: cfg.Client, table: cfg.Table, ns: cfg.Namespace}, nil
}

func (s *DynamoGenStore) key(k string) string {
	if s.ns == "" {
		return "gen:" + k
	}
	return "gen:" + s.ns + ":" + k
}

func (s *DynamoGenStore) itemKey(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		ddbKeyAttr: &types.AttributeValueMemberS{Value: s.key(k)},
	}
}

func (s *DynamoGenStore) Snapshot(ctx context.Context, key string) (uint64, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb get gen: %w", err)
	}
	return genOf(resp.Item)
}

// SnapshotMany issues BatchGetItem in chunks and retries unprocessed keys.
func (s *DynamoGenStore) SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	byStored := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = 0
		byStored[s.key(k)] = k
	}

	uniq := make([]string, 0, len(byStored))
	for sk := range byStored {
		uniq = append(uniq, sk)
	}

	for start := 0; start < len(uniq); start += ddbBatchSize {
		end := min(start+ddbBatchSize, len(uniq))
		req := make([]map[string]types.AttributeValue, 0, end-start)
		for _, sk := range uniq[start:end] {
			req = append(req, map[string]types.AttributeValue{
				ddbKeyAttr: &types.AttributeValueMemberS{Value: sk},
			})
		}

		pending := map[string]types.KeysAndAttributes{
			s.table: {Keys: req, ConsistentRead: aws.Bool(true)},
		}
		for round := 0; len(pending) > 0; round++ {
			if round == ddbMaxRounds {
				return nil, errors.New("dynamodb genstore: unprocessed keys after retries")
			}
			resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("dynamodb batch get gens: %w", err)
			}
			for _, item := range resp.Responses[s.table] {
				kv, ok := item[ddbKeyAttr].(*types.AttributeValueMemberS)
				if !ok {
					return nil, errors.New("dynamodb genstore: invalid gen_key attribute")
				}
				g, err := genOf(item)
				if err != nil {
					return nil, err
				}
				if orig, ok := byStored[kv.Value]; ok {
					out[orig] = g
				}
			}
			pending = resp.UnprocessedKeys
			if len(pending) > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(1<<round) * 10 * time.Millisecond):
				}
			}
		}
	}
	return out, nil
}

// Bump uses an atomic ADD so concurrent bumps never lose increments.
func (s *DynamoGenStore) Bump(ctx context.Context, key string) (uint64, error) {
	resp, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.itemKey(key),
		UpdateExpression: aws.String("ADD #g :one"),
		ExpressionAttributeNames: map[string]string{
			"#g": ddbGenAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb bump gen: %w", err)
	}
	return genOf(resp.Attributes)
}

func genOf(item map[string]types.AttributeValue) (uint64, error) {
	if item == nil {
		return 0, nil
	}
	v, ok := item[ddbGenAttr]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("dynamodb genstore: invalid gen attribute")
	}
	g, err := strconv.ParseUint(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamodb gen parse: %w", err)
	}
	return g, nil
}

// Cleanup is a no-op; use a DynamoDB TTL attribute if growth matters.
func (s *DynamoGenStore) Cleanup(time.Duration) {}

func (s *DynamoGenStore) Close(context.Context) error { return nil }
