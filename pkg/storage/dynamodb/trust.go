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

// connectionRequestRecord adds the canonical pair attribute used by the
// pair index to detect duplicate requests regardless of direction.
type connectionRequestRecord struct {
	models.ConnectionRequest
	Pair string `dynamodbav:"pair"`
}

func pairKey(a, b string) string {
	x, y := models.Pair(a, b)
	return x + "|" + y
}

// CreateConnectionRequest creates a pending request between two members.
func (s *Store) CreateConnectionRequest(ctx context.Context, req *models.ConnectionRequest) (*models.ConnectionRequest, error) {
	if req.FromID == "" || req.ToID == "" || req.FromID == req.ToID {
		return nil, fmt.Errorf("%w: a connection request needs two distinct members", storage.ErrValidation)
	}

	// A live connection between the pair blocks a new request.
	if _, err := s.GetConnection(ctx, req.FromID, req.ToID); err == nil {
		return nil, fmt.Errorf("members %s and %s: %w", req.FromID, req.ToID, storage.ErrDuplicateRequest)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// So does a pending request in either direction.
	pending, err := s.queryRequestsByPair(ctx, req.FromID, req.ToID)
	if err != nil {
		return nil, err
	}
	for _, existing := range pending {
		if existing.Status == models.ConnectionPending {
			return nil, fmt.Errorf("members %s and %s: %w", req.FromID, req.ToID, storage.ErrDuplicateRequest)
		}
	}

	r := *req
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Status = models.ConnectionPending
	r.CreatedAt = time.Now().UTC()

	record := connectionRequestRecord{ConnectionRequest: r, Pair: pairKey(r.FromID, r.ToID)}
	recordAV, err := attributevalue.MarshalMap(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection request: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.ConnectionRequests),
		Item:                recordAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection request: %w", err)
	}

	return &r, nil
}

func (s *Store) queryRequestsByPair(ctx context.Context, a, b string) ([]models.ConnectionRequest, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.ConnectionRequests),
		IndexName:              aws.String(pairIndex),
		KeyConditionExpression: aws.String("pair = :pair"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pair": &types.AttributeValueMemberS{Value: pairKey(a, b)},
		},
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query connection requests: %w", err)
	}

	var requests []models.ConnectionRequest
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &requests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection requests: %w", err)
	}
	return requests, nil
}

// GetConnectionRequest retrieves a connection request by id.
func (s *Store) GetConnectionRequest(ctx context.Context, requestID string) (*models.ConnectionRequest, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": requestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request id: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.ConnectionRequests),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection request from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("connection request %s: %w", requestID, storage.ErrNotFound)
	}

	var req models.ConnectionRequest
	if err := attributevalue.UnmarshalMap(result.Item, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection request: %w", err)
	}
	return &req, nil
}

// AcceptConnection marks the request accepted and creates or strengthens the
// connection in one write transaction.
func (s *Store) AcceptConnection(ctx context.Context, requestID string, maxTrustLevel int64) (*models.TrustConnection, error) {
	req, err := s.GetConnectionRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(models.ConnectionAccepted) {
		return nil, fmt.Errorf("connection request %s in status %s: %w", requestID, req.Status, storage.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	a, b := models.Pair(req.FromID, req.ToID)

	existing, err := s.GetConnection(ctx, a, b)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	conn := &models.TrustConnection{
		MemberA:         a,
		MemberB:         b,
		TrustLevel:      1,
		MetThroughFlare: req.FlareID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		conn = existing
		if conn.TrustLevel < maxTrustLevel {
			conn.TrustLevel++
		}
		conn.UpdatedAt = now
	}

	connAV, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(s.Tables.ConnectionRequests),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: requestID},
					},
					UpdateExpression:    aws.String("SET #status = :accepted"),
					ConditionExpression: aws.String("#status = :pending"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepted": &types.AttributeValueMemberS{Value: string(models.ConnectionAccepted)},
						":pending":  &types.AttributeValueMemberS{Value: string(models.ConnectionPending)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.Tables.Connections),
					Item:      connAV,
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		if isConditionalCancellation(err) {
			return nil, fmt.Errorf("connection request %s: %w", requestID, storage.ErrAlreadyResolved)
		}
		return nil, fmt.Errorf("failed to execute accept-connection transaction: %w", err)
	}

	return conn, nil
}

// DeclineConnection marks the request declined.
func (s *Store) DeclineConnection(ctx context.Context, requestID string) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.ConnectionRequests),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: requestID},
		},
		UpdateExpression:    aws.String("SET #status = :declined"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":declined": &types.AttributeValueMemberS{Value: string(models.ConnectionDeclined)},
			":pending":  &types.AttributeValueMemberS{Value: string(models.ConnectionPending)},
		},
	}

	_, err := s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if _, getErr := s.GetConnectionRequest(ctx, requestID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("connection request %s: %w", requestID, storage.ErrAlreadyResolved)
		}
		return fmt.Errorf("failed to decline connection request %s: %w", requestID, err)
	}
	return nil
}

// GetConnection retrieves the connection between two members, if any.
func (s *Store) GetConnection(ctx context.Context, memberA, memberB string) (*models.TrustConnection, error) {
	a, b := models.Pair(memberA, memberB)
	key, err := attributevalue.MarshalMap(map[string]string{"member_a": a, "member_b": b})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection key: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Connections),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("connection between %s and %s: %w", memberA, memberB, storage.ErrNotFound)
	}

	var conn models.TrustConnection
	if err := attributevalue.UnmarshalMap(result.Item, &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return &conn, nil
}

// ListConnections retrieves all connections involving a member, from both
// sides of the canonical ordering.
func (s *Store) ListConnections(ctx context.Context, memberID string) ([]models.TrustConnection, error) {
	var conns []models.TrustConnection
	for _, index := range []struct {
		name string
		attr string
	}{
		{memberAIndex, "member_a"},
		{memberBIndex, "member_b"},
	} {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.Connections),
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

		var page []models.TrustConnection
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
		}
		conns = append(conns, page...)
	}
	return conns, nil
}

// StrengthenConnection bumps the trust level between two connected members,
// capped. The cap lives in the condition expression so the write is atomic.
func (s *Store) StrengthenConnection(ctx context.Context, memberA, memberB string, maxTrustLevel int64) error {
	a, b := models.Pair(memberA, memberB)
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Tables.Connections),
		Key: map[string]types.AttributeValue{
			"member_a": &types.AttributeValueMemberS{Value: a},
			"member_b": &types.AttributeValueMemberS{Value: b},
		},
		UpdateExpression:    aws.String("SET trust_level = trust_level + :inc, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(member_a) AND trust_level < :max"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
			":max": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", maxTrustLevel)},
			":now": now,
		},
	}

	_, err = s.Client.UpdateItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			// Unconnected pair or already at the cap; both are fine.
			return nil
		}
		return fmt.Errorf("failed to strengthen connection: %w", err)
	}
	return nil
}

// RemoveConnection deletes the connection between two members. Idempotent.
func (s *Store) RemoveConnection(ctx context.Context, memberA, memberB string) error {
	a, b := models.Pair(memberA, memberB)
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.Tables.Connections),
		Key: map[string]types.AttributeValue{
			"member_a": &types.AttributeValueMemberS{Value: a},
			"member_b": &types.AttributeValueMemberS{Value: b},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	return nil
}
