package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateInvite stores a new unused invite code.
func (s *Store) CreateInvite(ctx context.Context, invite *models.InviteCode) (*models.InviteCode, error) {
	if invite.Code == "" || invite.GeneratedBy == "" {
		return nil, fmt.Errorf("%w: invite code and generator are required", storage.ErrValidation)
	}

	inv := *invite
	inv.UsedBy = nil
	inv.UsedAt = nil
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	invAV, err := attributevalue.MarshalMap(&inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invite: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Invites),
		Item:                invAV,
		ConditionExpression: aws.String("attribute_not_exists(code)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("%w: invite code %s already exists", storage.ErrConflict, inv.Code)
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	return &inv, nil
}

// GetInvite retrieves an invite code.
func (s *Store) GetInvite(ctx context.Context, code string) (*models.InviteCode, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invite code: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Invites),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get invite from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("invite %s: %w", code, storage.ErrNotFound)
	}

	var inv models.InviteCode
	if err := attributevalue.UnmarshalMap(result.Item, &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invite: %w", err)
	}
	return &inv, nil
}

// RedeemInvite marks the code used by the member. Single-use: the
// condition expression rejects any code with used_by already set.
func (s *Store) RedeemInvite(ctx context.Context, code, memberID string) error {
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.Invites),
		Key: map[string]types.AttributeValue{
			"code": &types.AttributeValueMemberS{Value: code},
		},
		UpdateExpression:    aws.String("SET used_by = :member_id, used_at = :now"),
		ConditionExpression: aws.String("attribute_exists(code) AND attribute_not_exists(used_by)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":member_id": &types.AttributeValueMemberS{Value: memberID},
			":now":       now,
		},
	}

	_, err = s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if _, getErr := s.GetInvite(ctx, code); getErr != nil {
				return getErr
			}
			return fmt.Errorf("invite %s: %w", code, storage.ErrInviteUsed)
		}
		return fmt.Errorf("failed to redeem invite %s: %w", code, err)
	}
	return nil
}
