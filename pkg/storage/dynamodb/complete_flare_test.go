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

func testTables() Tables {
	return Tables{
		Members:            "members",
		Flares:             "flares",
		HelpRequests:       "help_requests",
		Ledger:             "ledger",
		Connections:        "connections",
		ConnectionRequests: "connection_requests",
		Invites:            "invites",
		Announcements:      "announcements",
		Recipients:         "recipients",
	}
}

func TestCompleteFlare(t *testing.T) {
	helperID := "helper1"
	flare := &models.Flare{ID: "flare1", OwnerID: "owner1", Status: models.FlareAccepted, AcceptedBy: &helperID, Version: 2}
	owner := &models.Member{ID: "owner1", LanternBalance: 3, Version: 1}
	helper := &models.Member{ID: "helper1", LanternBalance: 1, Version: 4}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		flareAV, _ := attributevalue.MarshalMap(flare)
		ownerAV, _ := attributevalue.MarshalMap(owner)
		helperAV, _ := attributevalue.MarshalMap(helper)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: ownerAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: helperAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		entry, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.NoError(t, err)
		assert.NotNil(t, entry)
		assert.Equal(t, "owner1", entry.FromID)
		assert.Equal(t, "helper1", entry.ToID)
		assert.Equal(t, int64(1), entry.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Free Flare Skips The Ledger", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		freeFlare := *flare
		freeFlare.IsFree = true
		flareAV, _ := attributevalue.MarshalMap(&freeFlare)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		entry, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.NoError(t, err)
		assert.Nil(t, entry)
		mockClient.AssertExpectations(t)
	})

	t.Run("Flare Not Accepted", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		activeFlare := &models.Flare{ID: "flare1", OwnerID: "owner1", Status: models.FlareActive}
		flareAV, _ := attributevalue.MarshalMap(activeFlare)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)

		_, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.ErrorIs(t, err, storage.ErrNotAccepted)
		mockClient.AssertExpectations(t)
	})

	t.Run("Wrong Helper", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		flareAV, _ := attributevalue.MarshalMap(flare)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)

		_, err := store.CompleteFlare(context.Background(), "flare1", "someone-else")

		assert.ErrorIs(t, err, storage.ErrNotAccepted)
		mockClient.AssertExpectations(t)
	})

	t.Run("Insufficient Balance Before Transaction", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		brokeOwner := &models.Member{ID: "owner1", LanternBalance: 0, Version: 1}
		flareAV, _ := attributevalue.MarshalMap(flare)
		ownerAV, _ := attributevalue.MarshalMap(brokeOwner)
		helperAV, _ := attributevalue.MarshalMap(helper)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: ownerAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: helperAV}, nil)

		_, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
		mockClient.AssertExpectations(t)
	})

	t.Run("Balance Drained Concurrently", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		flareAV, _ := attributevalue.MarshalMap(flare)
		ownerAV, _ := attributevalue.MarshalMap(owner)
		helperAV, _ := attributevalue.MarshalMap(helper)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: ownerAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: helperAV}, nil)

		reasons := []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		// The re-read sees the owner already drained.
		drained := &models.Member{ID: "owner1", LanternBalance: 0, Version: 2}
		drainedAV, _ := attributevalue.MarshalMap(drained)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: drainedAV}, nil)

		_, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
		mockClient.AssertExpectations(t)
	})

	t.Run("Flare Raced To Completion", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		flareAV, _ := attributevalue.MarshalMap(flare)
		ownerAV, _ := attributevalue.MarshalMap(owner)
		helperAV, _ := attributevalue.MarshalMap(helper)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: ownerAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: helperAV}, nil)

		reasons := []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		_, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.ErrorIs(t, err, storage.ErrNotAccepted)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transaction Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		flareAV, _ := attributevalue.MarshalMap(flare)
		ownerAV, _ := attributevalue.MarshalMap(owner)
		helperAV, _ := attributevalue.MarshalMap(helper)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: flareAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: ownerAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: helperAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("transaction failed"))

		_, err := store.CompleteFlare(context.Background(), "flare1", "helper1")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute completion transaction")
		mockClient.AssertExpectations(t)
	})
}
