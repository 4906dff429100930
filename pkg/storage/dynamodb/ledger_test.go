package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestTransfer(t *testing.T) {
	sender := &models.Member{ID: "alice", LanternBalance: 5, Version: 1}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		senderAV, _ := attributevalue.MarshalMap(sender)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: senderAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		entry, err := store.Transfer(context.Background(), "alice", "bob", 2, "thanks")

		assert.NoError(t, err)
		assert.Equal(t, "alice", entry.FromID)
		assert.Equal(t, "bob", entry.ToID)
		assert.Equal(t, int64(2), entry.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Invalid Amount", func(t *testing.T) {
		store := &Store{Client: new(mocks.DynamoDBAPI), Tables: testTables()}

		_, err := store.Transfer(context.Background(), "alice", "bob", 0, "thanks")

		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Self Transfer", func(t *testing.T) {
		store := &Store{Client: new(mocks.DynamoDBAPI), Tables: testTables()}

		_, err := store.Transfer(context.Background(), "alice", "alice", 1, "thanks")

		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		senderAV, _ := attributevalue.MarshalMap(sender)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: senderAV}, nil)

		_, err := store.Transfer(context.Background(), "alice", "bob", 10, "thanks")

		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
		mockClient.AssertExpectations(t)
	})

	t.Run("Balance Drained Concurrently", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		senderAV, _ := attributevalue.MarshalMap(sender)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: senderAV}, nil)

		reasons := []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		drained := &models.Member{ID: "alice", LanternBalance: 1, Version: 2}
		drainedAV, _ := attributevalue.MarshalMap(drained)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: drainedAV}, nil)

		_, err := store.Transfer(context.Background(), "alice", "bob", 3, "thanks")

		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
		mockClient.AssertExpectations(t)
	})

	t.Run("Recipient Missing", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		senderAV, _ := attributevalue.MarshalMap(sender)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: senderAV}, nil)

		reasons := []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		_, err := store.Transfer(context.Background(), "alice", "bob", 2, "thanks")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestGrant(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		entry, err := store.Grant(context.Background(), "alice", 3, "welcome")

		assert.NoError(t, err)
		assert.Equal(t, models.SystemAccountID, entry.FromID)
		assert.Equal(t, "alice", entry.ToID)
		assert.Equal(t, int64(3), entry.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Member Missing", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		reasons := []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		_, err := store.Grant(context.Background(), "ghost", 3, "welcome")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestListTransactionsByMember(t *testing.T) {
	t.Run("Merges Both Directions", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		sent := models.LanternTransaction{ID: "t1", FromID: "alice", ToID: "bob", Amount: 1}
		received := models.LanternTransaction{ID: "t2", FromID: "carol", ToID: "alice", Amount: 2}
		sentAV, _ := attributevalue.MarshalMap(&sent)
		receivedAV, _ := attributevalue.MarshalMap(&received)

		mockClient.On("Query", mock.Anything, mock.Anything).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{sentAV}}, nil)
		mockClient.On("Query", mock.Anything, mock.Anything).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{receivedAV}}, nil)

		txs, err := store.ListTransactionsByMember(context.Background(), "alice")

		assert.NoError(t, err)
		assert.Len(t, txs, 2)
		mockClient.AssertExpectations(t)
	})

	t.Run("Query Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

		_, err := store.ListTransactionsByMember(context.Background(), "alice")

		assert.Error(t, err)
		mockClient.AssertExpectations(t)
	})
}
