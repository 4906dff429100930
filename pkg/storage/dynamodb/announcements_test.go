package dynamodb

import (
	"context"
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

func TestClaimGift(t *testing.T) {
	ann := &models.Announcement{ID: "ann1", Title: "harvest festival", GiftAmount: 2}
	recipient := &models.AnnouncementRecipient{AnnouncementID: "ann1", MemberID: "alice", GiftClaimed: false}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		annAV, _ := attributevalue.MarshalMap(ann)
		recAV, _ := attributevalue.MarshalMap(recipient)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: annAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: recAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		entry, err := store.ClaimGift(context.Background(), "ann1", "alice")

		assert.NoError(t, err)
		assert.Equal(t, models.SystemAccountID, entry.FromID)
		assert.Equal(t, "alice", entry.ToID)
		assert.Equal(t, int64(2), entry.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Second Claim Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		annAV, _ := attributevalue.MarshalMap(ann)
		recAV, _ := attributevalue.MarshalMap(recipient)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: annAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: recAV}, nil)

		reasons := []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, &types.TransactionCanceledException{CancellationReasons: reasons})

		_, err := store.ClaimGift(context.Background(), "ann1", "alice")

		assert.ErrorIs(t, err, storage.ErrAlreadyClaimed)
		mockClient.AssertExpectations(t)
	})

	t.Run("No Gift Attached", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		giftless := &models.Announcement{ID: "ann1", Title: "harvest festival", GiftAmount: 0}
		annAV, _ := attributevalue.MarshalMap(giftless)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: annAV}, nil)

		_, err := store.ClaimGift(context.Background(), "ann1", "alice")

		assert.ErrorIs(t, err, storage.ErrValidation)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not A Recipient", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		annAV, _ := attributevalue.MarshalMap(ann)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: annAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{}, nil)

		_, err := store.ClaimGift(context.Background(), "ann1", "alice")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestCreateRecipient(t *testing.T) {
	t.Run("Idempotent On Redelivery", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("PutItem", mock.Anything, mock.Anything).Once().Return(nil, &types.ConditionalCheckFailedException{})

		err := store.CreateRecipient(context.Background(), &models.AnnouncementRecipient{AnnouncementID: "ann1", MemberID: "alice"})

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})
}
