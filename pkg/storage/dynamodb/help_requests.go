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

// helpRequestID derives the natural key for a help request. Keying on the
// (flare, helper) pair lets a plain attribute_not_exists condition enforce
// the one-offer-per-pair invariant.
func helpRequestID(flareID, helperID string) string {
	return flareID + "#" + helperID
}

// CreateHelpRequest creates a pending help request. A single write
// transaction checks that the flare is still active and that no offer from
// this helper exists yet.
func (s *Store) CreateHelpRequest(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, error) {
	if req.FlareID == "" || req.HelperID == "" {
		return nil, fmt.Errorf("%w: flare id and helper id are required", storage.ErrValidation)
	}

	flare, err := s.GetFlare(ctx, req.FlareID)
	if err != nil {
		return nil, err
	}

	r := *req
	r.ID = helpRequestID(req.FlareID, req.HelperID)
	r.OwnerID = flare.OwnerID
	r.Status = models.HelpPending
	r.CreatedAt = time.Now().UTC()
	r.RespondedAt = nil

	reqAV, err := attributevalue.MarshalMap(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal help request: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				// Operation 1: the flare must still be active.
				ConditionCheck: &types.ConditionCheck{
					TableName: aws.String(s.Tables.Flares),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: req.FlareID},
					},
					ConditionExpression: aws.String("#status = :active"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":active": &types.AttributeValueMemberS{Value: string(models.FlareActive)},
					},
				},
			},
			{
				// Operation 2: create the offer, once per (flare, helper).
				Put: &types.Put{
					TableName:           aws.String(s.Tables.HelpRequests),
					Item:                reqAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) == 2 {
			if code := tce.CancellationReasons[0].Code; code != nil && *code == "ConditionalCheckFailed" {
				return nil, fmt.Errorf("flare %s: %w", req.FlareID, storage.ErrFlareNotActive)
			}
			if code := tce.CancellationReasons[1].Code; code != nil && *code == "ConditionalCheckFailed" {
				return nil, fmt.Errorf("helper %s on flare %s: %w", req.HelperID, req.FlareID, storage.ErrDuplicateOffer)
			}
		}
		return nil, fmt.Errorf("failed to create help request: %w", err)
	}

	return &r, nil
}

// GetHelpRequest retrieves a help request by id.
func (s *Store) GetHelpRequest(ctx context.Context, requestID string) (*models.HelpRequest, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": requestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal help request id: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.HelpRequests),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get help request from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("help request %s: %w", requestID, storage.ErrNotFound)
	}

	var req models.HelpRequest
	if err := attributevalue.UnmarshalMap(result.Item, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal help request: %w", err)
	}
	return &req, nil
}

// ListHelpRequestsByFlare retrieves all help requests for a flare.
func (s *Store) ListHelpRequestsByFlare(ctx context.Context, flareID string) ([]models.HelpRequest, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.HelpRequests),
		IndexName:              aws.String(flareIDIndex),
		KeyConditionExpression: aws.String("flare_id = :flare_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":flare_id": &types.AttributeValueMemberS{Value: flareID},
		},
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query help requests: %w", err)
	}

	var requests []models.HelpRequest
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &requests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal help requests: %w", err)
	}
	return requests, nil
}

// DenyHelp marks a pending help request denied. The flare is unaffected.
func (s *Store) DenyHelp(ctx context.Context, requestID string) error {
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.HelpRequests),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: requestID},
		},
		UpdateExpression:    aws.String("SET #status = :denied, responded_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":denied":  &types.AttributeValueMemberS{Value: string(models.HelpDenied)},
			":pending": &types.AttributeValueMemberS{Value: string(models.HelpPending)},
			":now":     now,
		},
	}

	_, err = s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if _, getErr := s.GetHelpRequest(ctx, requestID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("help request %s: %w", requestID, storage.ErrAlreadyResolved)
		}
		return fmt.Errorf("failed to deny help request %s: %w", requestID, err)
	}
	return nil
}
