package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/storage"
	dydbstore "github.com/lanternhq/lantern/pkg/storage/dynamodb"
)

var store storage.Storage

func init() {
	// Load environment variables for local testing.
	godotenv.Load()

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

// HandleRequest is triggered by an EventBridge Schedule. It recomputes every
// member's balance from the transaction log and reports any drift from the
// cached lantern_balance field. Drift is reported, never auto-corrected; the
// log is authoritative and a mismatch means a bug worth a human's attention.
func HandleRequest(ctx context.Context) error {
	log.Println("Starting balance reconciliation...")

	members, err := store.ListMembers(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list members: %v", err)
		return err
	}

	drifted := 0
	for _, member := range members {
		computed, err := store.BalanceOf(ctx, member.ID)
		if err != nil {
			log.Printf("ERROR: failed to compute balance for member %s: %v", member.ID, err)
			// Keep checking the rest of the membership.
			continue
		}

		if computed != member.LanternBalance {
			drifted++
			log.Printf("DRIFT: member %s cached balance %d does not match ledger balance %d",
				member.ID, member.LanternBalance, computed)
		}
	}

	if drifted == 0 {
		log.Printf("Reconciliation finished: %d members checked, no drift", len(members))
	} else {
		log.Printf("Reconciliation finished: %d members checked, %d drifted", len(members), drifted)
	}
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
