package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/scheduler"
	"github.com/lanternhq/lantern/pkg/storage"
	dydbstore "github.com/lanternhq/lantern/pkg/storage/dynamodb"
)

var store storage.Storage

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("unable to load configuration, %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	store = dydbstore.New(awsdynamodb.NewFromConfig(awsCfg), dydbstore.Tables{
		Members:            cfg.MembersTable,
		Flares:             cfg.FlaresTable,
		HelpRequests:       cfg.HelpRequestsTable,
		Ledger:             cfg.LedgerTable,
		Connections:        cfg.ConnectionsTable,
		ConnectionRequests: cfg.ConnectionRequestsTable,
		Invites:            cfg.InvitesTable,
		Announcements:      cfg.AnnouncementsTable,
		Recipients:         cfg.RecipientsTable,
	})
}

// HandleRequest fans an announcement out to every member. Recipient creation
// is idempotent, so a redelivered message cannot double-register anyone.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, message := range sqsEvent.Records {
		log.Printf("Processing message %s", message.MessageId)

		var job scheduler.DeliveryJob
		if err := json.Unmarshal([]byte(message.Body), &job); err != nil {
			log.Printf("ERROR: failed to unmarshal delivery job from SQS message %s: %v", message.MessageId, err)
			// Returning an error will cause SQS to retry the message.
			return err
		}

		announcement, err := store.GetAnnouncement(ctx, job.AnnouncementID)
		if err != nil {
			log.Printf("ERROR: failed to load announcement %s: %v", job.AnnouncementID, err)
			return err
		}

		members, err := store.ListMembers(ctx)
		if err != nil {
			log.Printf("ERROR: failed to list members for announcement %s: %v", announcement.ID, err)
			return err
		}

		delivered := 0
		for _, member := range members {
			recipient := &models.AnnouncementRecipient{AnnouncementID: announcement.ID, MemberID: member.ID}
			if err := store.CreateRecipient(ctx, recipient); err != nil {
				log.Printf("ERROR: failed to deliver announcement %s to member %s: %v", announcement.ID, member.ID, err)
				return err
			}
			delivered++
		}

		log.Printf("Delivered announcement %s to %d members", announcement.ID, delivered)
	}

	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
