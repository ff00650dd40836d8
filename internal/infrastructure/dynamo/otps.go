package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-gateway/internal/domain"
)

// OTPRepo provides typed DynamoDB operations for the otps table.
// PK: email, SK: purpose.
//
// Every state transition is a single conditional write, so two concurrent
// requests for the same (email, purpose) cannot both pass a read-then-write
// check: one wins, the other gets a conditional rejection.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// PutIfSendable writes rec, replacing any previous record for the pair, but
// only when no record exists or the existing one was created before
// resendCutoff (Unix seconds). Replacement is how a previous code is
// superseded; the condition is the resend throttle enforced at write time.
// Returns domain.ErrRateLimited when the condition rejects.
func (r *OTPRepo) PutIfSendable(ctx context.Context, rec *domain.OTPRecord, resendCutoff int64) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email) OR created_at < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(resendCutoff, 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.ErrRateLimited
		}
		return storeErr("put otp", err)
	}
	return nil
}

// Get returns the record for (email, purpose) regardless of its state.
func (r *OTPRepo) Get(ctx context.Context, email, purpose string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "purpose", purpose),
	})
	if err != nil {
		return nil, storeErr("get otp", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp for %s/%s: %w", email, purpose, domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, storeErr("unmarshal otp", err)
	}
	return &rec, nil
}

// ListByEmail returns all records for an email across purposes.
func (r *OTPRepo) ListByEmail(ctx context.Context, email string) ([]domain.OTPRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, storeErr("query otps", err)
	}
	var recs []domain.OTPRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, storeErr("unmarshal otps", err)
	}
	return recs, nil
}

// IncrementAttempts adds one failed attempt and returns the new count. The
// write succeeds only while the record is unverified, unexpired, and below
// max; otherwise domain.ErrAttemptsExceeded is returned and the record is
// left for the caller to seal.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email, purpose string, max int, now int64) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "purpose", purpose),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("verified = :false AND attempts < :max AND expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":max":   &types.AttributeValueMemberN{Value: strconv.Itoa(max)},
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return 0, domain.ErrAttemptsExceeded
		}
		return 0, storeErr("increment attempts", err)
	}
	n, ok := out.Attributes["attempts"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, storeErr("increment attempts", fmt.Errorf("missing attempts attribute"))
	}
	attempts, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, storeErr("increment attempts", err)
	}
	return attempts, nil
}

// MarkVerified seals the record as successfully used. The compare-and-swap
// succeeds only on an exact code match against an active record, so a racing
// duplicate verify cannot consume the code twice.
func (r *OTPRepo) MarkVerified(ctx context.Context, email, purpose, code string, max int, now int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "purpose", purpose),
		UpdateExpression:    aws.String("SET verified = :true, verified_at = :now, used_at = :now"),
		ConditionExpression: aws.String("verified = :false AND code = :code AND attempts < :max AND expires_at > :nowN"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":code":  &types.AttributeValueMemberS{Value: code},
			":max":   &types.AttributeValueMemberN{Value: strconv.Itoa(max)},
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			":nowN":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.ErrAlreadyUsed
		}
		return storeErr("mark otp verified", err)
	}
	return nil
}

// Seal marks the record verified without a successful match (lockout or
// supersede). Idempotent.
func (r *OTPRepo) Seal(ctx context.Context, email, purpose string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("email", email, "purpose", purpose),
		UpdateExpression: aws.String("SET verified = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return storeErr("seal otp", err)
	}
	return nil
}

// Touch refreshes created_at on an unverified record (resend throttle reset).
func (r *OTPRepo) Touch(ctx context.Context, email, purpose string, createdAt int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "purpose", purpose),
		UpdateExpression:    aws.String("SET created_at = :now"),
		ConditionExpression: aws.String("verified = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAt, 10)},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.ErrAlreadyUsed
		}
		return storeErr("touch otp", err)
	}
	return nil
}

// Delete removes the record unconditionally (delivery rollback path).
func (r *OTPRepo) Delete(ctx context.Context, email, purpose string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "purpose", purpose),
	})
	if err != nil {
		return storeErr("delete otp", err)
	}
	return nil
}

// DeleteStale removes expired records and sealed records created before
// sealedCutoff. The TTL already reaps expired items eventually; this is the
// explicit maintenance sweep. Returns the number of deleted records.
func (r *OTPRepo) DeleteStale(ctx context.Context, now, sealedCutoff int64) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("expires_at < :now OR (verified = :true AND created_at < :cutoff)"),
		ProjectionExpression: aws.String("email, purpose"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			":true":   &types.AttributeValueMemberBOOL{Value: true},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(sealedCutoff, 10)},
		},
	})
	if err != nil {
		return 0, storeErr("scan stale otps", err)
	}
	deleted := 0
	for _, item := range out.Items {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"email":   item["email"],
				"purpose": item["purpose"],
			},
		})
		if err != nil {
			return deleted, storeErr("delete stale otp", err)
		}
		deleted++
	}
	return deleted, nil
}
