package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/notify-gateway/internal/domain"
)

// VerifiedEmailRepo manages the verified-email ledger.
// PK: email, SK: purpose. ExpiresAt is the DynamoDB TTL attribute.
type VerifiedEmailRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerifiedEmailRepo(client *dynamodb.Client, tableName string) *VerifiedEmailRepo {
	return &VerifiedEmailRepo{client: client, tableName: tableName}
}

// Upsert writes the record, replacing any previous entry for the pair.
func (r *VerifiedEmailRepo) Upsert(ctx context.Context, rec *domain.VerifiedEmailRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal verified email: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("put verified email", err)
	}
	return nil
}

func (r *VerifiedEmailRepo) Get(ctx context.Context, email, purpose string) (*domain.VerifiedEmailRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "purpose", purpose),
	})
	if err != nil {
		return nil, storeErr("get verified email", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verified email for %s/%s: %w", email, purpose, domain.ErrNotFound)
	}
	var rec domain.VerifiedEmailRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, storeErr("unmarshal verified email", err)
	}
	return &rec, nil
}

// Delete removes the ledger entry (explicit invalidation).
func (r *VerifiedEmailRepo) Delete(ctx context.Context, email, purpose string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "purpose", purpose),
	})
	if err != nil {
		return storeErr("delete verified email", err)
	}
	return nil
}
