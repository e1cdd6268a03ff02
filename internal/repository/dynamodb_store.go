package repository

import (
	"context"
	"errors"
	"fmt"
	"music-tutor/internal/utils"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

type dynamoRecord struct {
	PK        string `dynamodbav:"pk"`
	Data      string `dynamodbav:"data"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

type DynamoDBStore struct {
	logger    *logrus.Entry
	client    utils.DynamoDbAPI
	tableName string
}

func NewDynamoDBStore(logger *logrus.Entry, client utils.DynamoDbAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		logger:    logger,
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDBStore) Get(ctx context.Context, key string) (*Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to get record from DynamoDB")
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if result.Item == nil {
		return nil, ErrRecordNotFound
	}

	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		s.logger.WithError(err).Error("Failed to unmarshal record")
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &Record{
		Key:       key,
		Data:      []byte(item.Data),
		Version:   item.Version,
		UpdatedAt: item.UpdatedAt,
	}, nil
}

func (s *DynamoDBStore) Put(ctx context.Context, key string, data []byte, expectedVersion int64) (int64, error) {
	next := expectedVersion + 1
	item, err := attributevalue.MarshalMap(dynamoRecord{
		PK:        key,
		Data:      string(data),
		Version:   next,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(pk)")
	} else {
		input.ConditionExpression = aws.String("#v = :expected")
		input.ExpressionAttributeNames = map[string]string{"#v": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	_, err = s.client.PutItem(ctx, input)
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		s.logger.WithFields(logrus.Fields{
			"key":     key,
			"version": expectedVersion,
		}).Warn("Record changed concurrently")
		return 0, ErrVersionConflict
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to put record to DynamoDB")
		return 0, fmt.Errorf("failed to put record: %w", err)
	}
	return next, nil
}

func (s *DynamoDBStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &s.tableName,
			Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}},
		})
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Error("Failed to delete record from DynamoDB")
			return fmt.Errorf("failed to delete record %s: %w", key, err)
		}
	}
	return nil
}

func (s *DynamoDBStore) Close() error { return nil }
