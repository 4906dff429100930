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

// CreateFlare creates a new flare in the active state.
func (s *Store) CreateFlare(ctx context.Context, flare *models.Flare) (*models.Flare, error) {
	if flare.ID == "" || flare.OwnerID == "" {
		return nil, fmt.Errorf("%w: flare id and owner are required", storage.ErrValidation)
	}

	f := *flare
	f.Status = models.FlareActive
	f.AcceptedBy = nil
	f.Version = 1
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	flareAV, err := attributevalue.MarshalMap(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flare: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Flares),
		Item:                flareAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("flare %s already exists: %w", f.ID, storage.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create flare in DynamoDB: %w", err)
	}

	return &f, nil
}

// GetFlare retrieves a flare by id.
func (s *Store) GetFlare(ctx context.Context, flareID string) (*models.Flare, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": flareID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flare id: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Flares),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get flare from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotFound)
	}

	var flare models.Flare
	if err := attributevalue.UnmarshalMap(result.Item, &flare); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flare: %w", err)
	}
	return &flare, nil
}

// ListFlares retrieves flares visible to the viewer. Circle-only flares are
// filtered against the viewer's connection set.
func (s *Store) ListFlares(ctx context.Context, viewerID string) ([]models.Flare, error) {
	result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.Tables.Flares),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan flares table: %w", err)
	}

	var flares []models.Flare
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &flares); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flares: %w", err)
	}

	connections, err := s.ListConnections(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer connections: %w", err)
	}
	connected := make(map[string]bool, len(connections))
	for _, c := range connections {
		connected[c.MemberA] = true
		connected[c.MemberB] = true
	}

	visible := make([]models.Flare, 0, len(flares))
	for _, f := range flares {
		if f.CircleOnly && f.OwnerID != viewerID && !connected[f.OwnerID] {
			continue
		}
		visible = append(visible, f)
	}
	return visible, nil
}

// CancelFlare moves a flare to cancelled. The condition expression pins the
// allowed source states, so terminal flares reject the write.
func (s *Store) CancelFlare(ctx context.Context, flareID string) error {
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.Flares),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: flareID},
		},
		UpdateExpression:    aws.String("SET #status = :cancelled, updated_at = :now, version = version + :inc"),
		ConditionExpression: aws.String("attribute_exists(id) AND (#status = :active OR #status = :accepted)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cancelled": &types.AttributeValueMemberS{Value: string(models.FlareCancelled)},
			":active":    &types.AttributeValueMemberS{Value: string(models.FlareActive)},
			":accepted":  &types.AttributeValueMemberS{Value: string(models.FlareAccepted)},
			":now":       now,
			":inc":       &types.AttributeValueMemberN{Value: "1"},
		},
	}

	_, err = s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if _, getErr := s.GetFlare(ctx, flareID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("cancel flare %s: %w", flareID, storage.ErrAlreadyResolved)
		}
		return fmt.Errorf("failed to cancel flare %s: %w", flareID, err)
	}
	return nil
}
