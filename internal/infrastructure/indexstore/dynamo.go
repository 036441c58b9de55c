package indexstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/index"
)

type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore writes index records to a DynamoDB table keyed by (pk, sk)
// with global secondary indexes gs1 (gs1pk, gs1sk) and gs2 (gs2pk, gs2sk).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

func NewDynamoClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func (s *DynamoStore) Put(ctx context.Context, record entities.EventIndexRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal index record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item: %w", err)
	}

	return nil
}

func (s *DynamoStore) Query(ctx context.Context, q index.Query) ([]entities.EventIndexRecord, error) {
	input, err := s.queryInput(q)
	if err != nil {
		return nil, err
	}

	var records []entities.EventIndexRecord

	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query: %w", err)
		}

		var pageRecords []entities.EventIndexRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageRecords); err != nil {
			return nil, fmt.Errorf("unmarshal index records: %w", err)
		}
		records = append(records, pageRecords...)

		if q.Limit > 0 && len(records) >= q.Limit {
			return records[:q.Limit], nil
		}
	}

	return records, nil
}

func (s *DynamoStore) queryInput(q index.Query) (*dynamodb.QueryInput, error) {
	pkAttr, skAttr, err := keyAttributeNames(q.Index)
	if err != nil {
		return nil, err
	}

	names := map[string]string{"#pk": pkAttr}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PartitionKey},
	}
	condition := "#pk = :pk"

	switch {
	case q.SortKeyPrefix != "":
		names["#sk"] = skAttr
		values[":sk"] = &types.AttributeValueMemberS{Value: q.SortKeyPrefix}
		condition += " AND begins_with(#sk, :sk)"
	case q.SortKeyFrom != "":
		names["#sk"] = skAttr
		values[":sk"] = &types.AttributeValueMemberS{Value: q.SortKeyFrom}
		condition += " AND #sk >= :sk"
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(true),
	}
	if q.Index != index.PrimaryIndex {
		input.IndexName = aws.String(string(q.Index))
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	return input, nil
}

func keyAttributeNames(name index.IndexName) (string, string, error) {
	switch name {
	case index.PrimaryIndex:
		return "pk", "sk", nil
	case index.CaseworkerIndex:
		return "gs1pk", "gs1sk", nil
	case index.TimelineIndex:
		return "gs2pk", "gs2sk", nil
	default:
		return "", "", fmt.Errorf("unknown index %q", name)
	}
}
