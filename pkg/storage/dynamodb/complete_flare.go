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

// CompleteFlare performs the final atomic completion of an exchange: the
// flare moves to completed and, unless it is free, exactly one lantern moves
// from owner to helper. One transaction covers the flare status, both cached
// balances and the ledger entry, so a completed paid flare without its
// transaction is unreachable.
func (s *Store) CompleteFlare(ctx context.Context, flareID, helperID string) (*models.LanternTransaction, error) {
	flare, err := s.GetFlare(ctx, flareID)
	if err != nil {
		return nil, err
	}
	if flare.Status != models.FlareAccepted || flare.AcceptedBy == nil || *flare.AcceptedBy != helperID {
		return nil, fmt.Errorf("flare %s in status %s: %w", flareID, flare.Status, storage.ErrNotAccepted)
	}

	now := time.Now().UTC()
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	// The flare update is shared by both paths; the condition re-checks the
	// accepted state and helper under the transaction.
	flareUpdate := types.TransactWriteItem{
		Update: &types.Update{
			TableName: aws.String(s.Tables.Flares),
			Key: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: flareID},
			},
			UpdateExpression:    aws.String("SET #status = :completed, updated_at = :now, version = version + :inc"),
			ConditionExpression: aws.String("#status = :accepted AND accepted_by = :helper"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":completed": &types.AttributeValueMemberS{Value: string(models.FlareCompleted)},
				":accepted":  &types.AttributeValueMemberS{Value: string(models.FlareAccepted)},
				":helper":    &types.AttributeValueMemberS{Value: helperID},
				":now":       nowAV,
				":inc":       &types.AttributeValueMemberN{Value: "1"},
			},
		},
	}

	if flare.IsFree {
		_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{flareUpdate},
		})
		if err != nil {
			if isConditionalCancellation(err) {
				return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotAccepted)
			}
			return nil, fmt.Errorf("failed to complete flare %s: %w", flareID, err)
		}
		return nil, nil
	}

	owner, err := s.GetMember(ctx, flare.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flare owner: %w", err)
	}
	helper, err := s.GetMember(ctx, helperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get helper: %w", err)
	}
	if owner.LanternBalance < 1 {
		return nil, fmt.Errorf("owner %s balance %d: %w", owner.ID, owner.LanternBalance, storage.ErrInsufficientBalance)
	}

	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    flare.OwnerID,
		ToID:      helperID,
		Amount:    1,
		Reason:    "task completed",
		CreatedAt: now,
	}
	entryAV, err := attributevalue.MarshalMap(&entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			flareUpdate,
			{
				// Operation 2: debit the owner, guarded against going
				// negative and against concurrent balance writers.
				Update: &types.Update{
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: flare.OwnerID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance - :one, version = version + :one"),
					ConditionExpression: aws.String("lantern_balance >= :one AND version = :owner_version"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one":           &types.AttributeValueMemberN{Value: "1"},
						":owner_version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", owner.Version)},
					},
				},
			},
			{
				// Operation 3: credit the helper.
				Update: &types.Update{
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: helperID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance + :one, version = version + :one"),
					ConditionExpression: aws.String("version = :helper_version"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one":            &types.AttributeValueMemberN{Value: "1"},
						":helper_version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", helper.Version)},
					},
				},
			},
			{
				// Operation 4: append the ledger entry.
				Put: &types.Put{
					TableName:           aws.String(s.Tables.Ledger),
					Item:                entryAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) == 4 {
			if code := tce.CancellationReasons[0].Code; code != nil && *code == "ConditionalCheckFailed" {
				return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotAccepted)
			}
			if code := tce.CancellationReasons[1].Code; code != nil && *code == "ConditionalCheckFailed" {
				// Balance or version; re-read distinguishes them.
				current, getErr := s.GetMember(ctx, flare.OwnerID)
				if getErr == nil && current.LanternBalance < 1 {
					return nil, fmt.Errorf("owner %s balance %d: %w", flare.OwnerID, current.LanternBalance, storage.ErrInsufficientBalance)
				}
				return nil, fmt.Errorf("owner %s changed concurrently: %w", flare.OwnerID, storage.ErrConflict)
			}
			return nil, fmt.Errorf("completion of flare %s raced another writer: %w", flareID, storage.ErrConflict)
		}
		return nil, fmt.Errorf("failed to execute completion transaction: %w", err)
	}

	return &entry, nil
}

// isConditionalCancellation reports whether a transaction was cancelled by a
// failed condition check.
func isConditionalCancellation(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
