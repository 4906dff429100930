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

// AcceptHelp atomically accepts a help request and moves the flare to
// accepted. The flare update is conditioned on the flare still being active,
// which is what makes a second concurrent accept deterministically fail.
// Competing pending requests are intentionally left untouched.
func (s *Store) AcceptHelp(ctx context.Context, flareID, requestID string) (*models.HelpRequest, error) {
	req, err := s.GetHelpRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.FlareID != flareID {
		return nil, fmt.Errorf("help request %s does not belong to flare %s: %w", requestID, flareID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				// Operation 1: accept the help request, from pending only.
				Update: &types.Update{
					TableName: aws.String(s.Tables.HelpRequests),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: requestID},
					},
					UpdateExpression:    aws.String("SET #status = :accepted, responded_at = :now"),
					ConditionExpression: aws.String("#status = :pending"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepted": &types.AttributeValueMemberS{Value: string(models.HelpAccepted)},
						":pending":  &types.AttributeValueMemberS{Value: string(models.HelpPending)},
						":now":      nowAV,
					},
				},
			},
			{
				// Operation 2: move the flare to accepted, from active only.
				Update: &types.Update{
					TableName: aws.String(s.Tables.Flares),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: flareID},
					},
					UpdateExpression:    aws.String("SET #status = :accepted, accepted_by = :helper, updated_at = :now, version = version + :inc"),
					ConditionExpression: aws.String("#status = :active"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepted": &types.AttributeValueMemberS{Value: string(models.FlareAccepted)},
						":active":   &types.AttributeValueMemberS{Value: string(models.FlareActive)},
						":helper":   &types.AttributeValueMemberS{Value: req.HelperID},
						":now":      nowAV,
						":inc":      &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return nil, fmt.Errorf("accept help on flare %s: %w", flareID, storage.ErrAlreadyResolved)
				}
			}
		}
		return nil, fmt.Errorf("failed to execute accept transaction: %w", err)
	}

	req.Status = models.HelpAccepted
	req.RespondedAt = &now
	return req, nil
}
