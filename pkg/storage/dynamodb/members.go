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

// CreateMember creates a new member record.
func (s *Store) CreateMember(ctx context.Context, member *models.Member) (*models.Member, error) {
	if member.ID == "" || member.DisplayName == "" {
		return nil, fmt.Errorf("%w: member id and display name are required", storage.ErrValidation)
	}

	m := *member
	m.Version = 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	memberAV, err := attributevalue.MarshalMap(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Members),
		Item:                memberAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	}

	_, err = s.Client.PutItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("member %s already exists: %w", m.ID, storage.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create member in DynamoDB: %w", err)
	}

	return &m, nil
}

// GetMember retrieves a member by id.
func (s *Store) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": memberID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member id: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Members),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get member from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}

	var member models.Member
	if err := attributevalue.UnmarshalMap(result.Item, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &member, nil
}

// ListMembers retrieves all members.
func (s *Store) ListMembers(ctx context.Context) ([]models.Member, error) {
	result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.Tables.Members),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan members table: %w", err)
	}

	var members []models.Member
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members: %w", err)
	}
	return members, nil
}

// PromoteToElder sets is_elder=true. The condition keeps the write monotonic
// and makes repeat promotion a no-op.
func (s *Store) PromoteToElder(ctx context.Context, memberID string) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.Members),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: memberID},
		},
		UpdateExpression:    aws.String("SET is_elder = :true, version = version + :inc"),
		ConditionExpression: aws.String("attribute_exists(id) AND is_elder = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":inc":   &types.AttributeValueMemberN{Value: "1"},
		},
	}

	_, err := s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			// Already an elder, or absent. Distinguish for the caller.
			if _, getErr := s.GetMember(ctx, memberID); getErr != nil {
				return getErr
			}
			return nil
		}
		return fmt.Errorf("failed to promote member %s: %w", memberID, err)
	}
	return nil
}

// RecordCompletedHelp increments the helper's completed-help count and trust
// score.
func (s *Store) RecordCompletedHelp(ctx context.Context, helperID string) (*models.Member, error) {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.Members),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: helperID},
		},
		UpdateExpression:    aws.String("SET completed_help_count = completed_help_count + :inc, trust_score = trust_score + :inc, version = version + :inc"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	result, err := s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("member %s: %w", helperID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to record completed help for %s: %w", helperID, err)
	}

	var member models.Member
	if err := attributevalue.UnmarshalMap(result.Attributes, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &member, nil
}
