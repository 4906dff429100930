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
	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateAnnouncement stores a new announcement.
func (s *Store) CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	if a.Title == "" {
		return nil, fmt.Errorf("%w: announcement title is required", storage.ErrValidation)
	}
	if a.GiftAmount < 0 {
		return nil, fmt.Errorf("%w: gift amount cannot be negative", storage.ErrValidation)
	}

	ann := *a
	if ann.ID == "" {
		ann.ID = uuid.New().String()
	}
	ann.CreatedAt = time.Now().UTC()

	annAV, err := attributevalue.MarshalMap(&ann)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal announcement: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Announcements),
		Item:                annAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}

	return &ann, nil
}

// GetAnnouncement retrieves an announcement by id.
func (s *Store) GetAnnouncement(ctx context.Context, announcementID string) (*models.Announcement, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": announcementID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal announcement id: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Announcements),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("announcement %s: %w", announcementID, storage.ErrNotFound)
	}

	var ann models.Announcement
	if err := attributevalue.UnmarshalMap(result.Item, &ann); err != nil {
		return nil, fmt.Errorf("failed to unmarshal announcement: %w", err)
	}
	return &ann, nil
}

// CreateRecipient stores a recipient row. Idempotent: a delivery retry that
// hits an existing row is not an error.
func (s *Store) CreateRecipient(ctx context.Context, r *models.AnnouncementRecipient) error {
	recAV, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Recipients),
		Item:                recAV,
		ConditionExpression: aws.String("attribute_not_exists(announcement_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil
		}
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

func (s *Store) getRecipient(ctx context.Context, announcementID, memberID string) (*models.AnnouncementRecipient, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"announcement_id": announcementID,
		"member_id":       memberID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipient key: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Recipients),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("recipient %s of announcement %s: %w", memberID, announcementID, storage.ErrNotFound)
	}

	var rec models.AnnouncementRecipient
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
	}
	return &rec, nil
}

// ClaimGift flips gift_claimed and credits the member in one write
// transaction. The flag condition makes a second claim fail without
// touching the balance.
func (s *Store) ClaimGift(ctx context.Context, announcementID, memberID string) (*models.LanternTransaction, error) {
	ann, err := s.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if ann.GiftAmount <= 0 {
		return nil, fmt.Errorf("%w: announcement %s carries no gift", storage.ErrValidation, announcementID)
	}
	if _, err := s.getRecipient(ctx, announcementID, memberID); err != nil {
		return nil, err
	}

	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    models.SystemAccountID,
		ToID:      memberID,
		Amount:    ann.GiftAmount,
		Reason:    "community gift",
		CreatedAt: time.Now().UTC(),
	}
	entryAV, err := attributevalue.MarshalMap(&entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(s.Tables.Recipients),
					Key: map[string]types.AttributeValue{
						"announcement_id": &types.AttributeValueMemberS{Value: announcementID},
						"member_id":       &types.AttributeValueMemberS{Value: memberID},
					},
					UpdateExpression:    aws.String("SET gift_claimed = :true"),
					ConditionExpression: aws.String("gift_claimed = :false"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":true":  &types.AttributeValueMemberBOOL{Value: true},
						":false": &types.AttributeValueMemberBOOL{Value: false},
					},
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: memberID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance + :amount, version = version + :one"),
					ConditionExpression: aws.String("attribute_exists(id)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ann.GiftAmount)},
						":one":    &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.Tables.Ledger),
					Item:      entryAV,
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for i, reason := range canceled.CancellationReasons {
				if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
					continue
				}
				switch i {
				case 0:
					return nil, fmt.Errorf("announcement %s, member %s: %w", announcementID, memberID, storage.ErrAlreadyClaimed)
				case 1:
					return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
				}
			}
		}
		return nil, fmt.Errorf("failed to execute claim-gift transaction: %w", err)
	}

	return &entry, nil
}
