package dynamo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-gateway/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.NotificationRecord) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("put notification", err)
	}
	return nil
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, storeErr("get notification", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.NotificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, storeErr("unmarshal notification", err)
	}
	return &n, nil
}

// MarkResult records the terminal delivery outcome. A record already marked
// sent is never overwritten.
func (r *NotificationRepo) MarkResult(ctx context.Context, notificationID, status, errMsg string, sentAt *int64) error {
	updates := map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#st"] = "status"
	ue.Values[":sent"] = &types.AttributeValueMemberS{Value: domain.StatusSent}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#st <> :sent"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}
		return storeErr("mark notification result", err)
	}
	return nil
}

// IncrementAttempts bumps the retry counter.
func (r *NotificationRepo) IncrementAttempts(ctx context.Context, notificationID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("notification_id", notificationID),
		UpdateExpression: aws.String("ADD attempts :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return storeErr("increment notification attempts", err)
	}
	return nil
}

// ListByEmail pages through a recipient's notifications, newest first, via
// the email-created_at GSI. cursor is the opaque token from a previous page.
func (r *NotificationRepo) ListByEmail(ctx context.Context, email string, limit int32, cursor string) ([]domain.NotificationRecord, string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("email-created_at-index"),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}
	if cursor != "" {
		startKey, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = startKey
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", storeErr("query notifications", err)
	}
	var recs []domain.NotificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, "", storeErr("unmarshal notifications", err)
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", storeErr("encode cursor", err)
	}
	return recs, next, nil
}

// ListByStatus returns up to limit records in the given status, oldest first.
func (r *NotificationRepo) ListByStatus(ctx context.Context, status string, limit int32) ([]domain.NotificationRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("status-created_at-index"),
		KeyConditionExpression: aws.String("#st = :status"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		},
		Limit: aws.Int32(limit),
	})
	if err != nil {
		return nil, storeErr("query notifications by status", err)
	}
	var recs []domain.NotificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, storeErr("unmarshal notifications", err)
	}
	return recs, nil
}

// Stats scans delivery counters grouped by channel, type, and status.
func (r *NotificationRepo) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	stats := &domain.NotificationStats{
		ByChannel: map[string]int{},
		ByType:    map[string]int{},
		ByStatus:  map[string]int{},
	}
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.tableName),
			ProjectionExpression:     aws.String("channel, #ty, #st"),
			ExpressionAttributeNames: map[string]string{"#ty": "type", "#st": "status"},
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return nil, storeErr("scan notification stats", err)
		}
		var recs []domain.NotificationRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
			return nil, storeErr("unmarshal notification stats", err)
		}
		for _, n := range recs {
			stats.Total++
			stats.ByChannel[string(n.Channel)]++
			stats.ByType[string(n.Type)]++
			stats.ByStatus[n.Status]++
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.ByStatus[domain.StatusSent]) / float64(stats.Total) * 100
	}
	return stats, nil
}

// ListTerminalOlderThan returns terminal records created before cutoff so the
// caller can archive them before deletion.
func (r *NotificationRepo) ListTerminalOlderThan(ctx context.Context, cutoff int64) ([]domain.NotificationRecord, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("created_at < :cutoff AND (#st = :sent OR #st = :failed)"),
		ExpressionAttributeNames: map[string]string{"#st": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff, 10)},
			":sent":   &types.AttributeValueMemberS{Value: domain.StatusSent},
			":failed": &types.AttributeValueMemberS{Value: domain.StatusFailed},
		},
	})
	if err != nil {
		return nil, storeErr("scan old notifications", err)
	}
	var recs []domain.NotificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, storeErr("unmarshal old notifications", err)
	}
	return recs, nil
}

// Delete removes one record by ID.
func (r *NotificationRepo) Delete(ctx context.Context, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return storeErr("delete notification", err)
	}
	return nil
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	plain := map[string]string{}
	for k, v := range key {
		switch av := v.(type) {
		case *types.AttributeValueMemberS:
			plain[k] = "S:" + av.Value
		case *types.AttributeValueMemberN:
			plain[k] = "N:" + av.Value
		}
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	plain := map[string]string{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}
	key := map[string]types.AttributeValue{}
	for k, v := range plain {
		if len(v) < 2 {
			return nil, fmt.Errorf("malformed cursor entry %q", v)
		}
		switch v[:2] {
		case "S:":
			key[k] = &types.AttributeValueMemberS{Value: v[2:]}
		case "N:":
			key[k] = &types.AttributeValueMemberN{Value: v[2:]}
		default:
			return nil, fmt.Errorf("malformed cursor entry %q", v)
		}
	}
	return key, nil
}
