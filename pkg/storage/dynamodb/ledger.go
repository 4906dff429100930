package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Grant mints lanterns from the system account to a member. One transaction
// covers the cached balance and the ledger entry.
func (s *Store) Grant(ctx context.Context, toID string, amount int64, reason string) (*models.LanternTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: grant amount must be positive", storage.ErrValidation)
	}

	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    models.SystemAccountID,
		ToID:      toID,
		Amount:    amount,
		Reason:    reason,
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
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: toID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance + :amount, version = version + :inc"),
					ConditionExpression: aws.String("attribute_exists(id)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", amount)},
						":inc":    &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
			{
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
		if isConditionalCancellation(err) {
			return nil, fmt.Errorf("member %s: %w", toID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to execute grant transaction: %w", err)
	}

	return &entry, nil
}

// Transfer moves lanterns between members. The sender debit is conditioned
// on the balance staying non-negative and on the sender's version, which
// serializes concurrent spends of the same balance.
func (s *Store) Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) (*models.LanternTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", storage.ErrValidation)
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot transfer to self", storage.ErrValidation)
	}

	sender, err := s.GetMember(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender: %w", err)
	}
	if sender.LanternBalance < amount {
		return nil, fmt.Errorf("member %s balance %d, need %d: %w", fromID, sender.LanternBalance, amount, storage.ErrInsufficientBalance)
	}

	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	entryAV, err := attributevalue.MarshalMap(&entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	amountAV := &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", amount)}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: fromID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance - :amount, version = version + :inc"),
					ConditionExpression: aws.String("lantern_balance >= :amount AND version = :version"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amount":  amountAV,
						":version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sender.Version)},
						":inc":     &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(s.Tables.Members),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: toID},
					},
					UpdateExpression:    aws.String("SET lantern_balance = lantern_balance + :amount, version = version + :inc"),
					ConditionExpression: aws.String("attribute_exists(id)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amount": amountAV,
						":inc":    &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
			{
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
		if errors.As(err, &tce) && len(tce.CancellationReasons) == 3 {
			if code := tce.CancellationReasons[0].Code; code != nil && *code == "ConditionalCheckFailed" {
				current, getErr := s.GetMember(ctx, fromID)
				if getErr == nil && current.LanternBalance < amount {
					return nil, fmt.Errorf("member %s balance %d, need %d: %w", fromID, current.LanternBalance, amount, storage.ErrInsufficientBalance)
				}
				return nil, fmt.Errorf("sender %s changed concurrently: %w", fromID, storage.ErrConflict)
			}
			if code := tce.CancellationReasons[1].Code; code != nil && *code == "ConditionalCheckFailed" {
				return nil, fmt.Errorf("member %s: %w", toID, storage.ErrNotFound)
			}
		}
		return nil, fmt.Errorf("failed to execute transfer transaction: %w", err)
	}

	return &entry, nil
}

// ListTransactionsByMember retrieves every transaction touching a member,
// newest first, by querying the sender and recipient indexes.
func (s *Store) ListTransactionsByMember(ctx context.Context, memberID string) ([]models.LanternTransaction, error) {
	var txs []models.LanternTransaction
	for _, index := range []struct {
		name string
		attr string
	}{
		{fromIDIndex, "from_id"},
		{toIDIndex, "to_id"},
	} {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.Ledger),
			IndexName:              aws.String(index.name),
			KeyConditionExpression: aws.String(fmt.Sprintf("%s = :member_id", index.attr)),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":member_id": &types.AttributeValueMemberS{Value: memberID},
			},
		}

		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", index.name, err)
		}

		var page []models.LanternTransaction
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
		}
		txs = append(txs, page...)
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

// BalanceOf recomputes a member's balance from the transaction log.
func (s *Store) BalanceOf(ctx context.Context, memberID string) (int64, error) {
	txs, err := s.ListTransactionsByMember(ctx, memberID)
	if err != nil {
		return 0, err
	}

	var balance int64
	for _, tx := range txs {
		if tx.ToID == memberID {
			balance += tx.Amount
		}
		if tx.FromID == memberID {
			balance -= tx.Amount
		}
	}
	return balance, nil
}
