package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/roomsync/internal/adapter/handler"
	"github.com/rl1809/roomsync/internal/core/domain"
)

func main() {
	flags := pflag.NewFlagSet("status_race", pflag.ExitOnError)
	addr := flags.String("addr", "localhost:50051", "gRPC address of a running server")
	requests := flags.Int("requests", 50, "concurrent mark-filled requests")
	timeout := flags.Duration("timeout", 30*time.Second, "overall deadline")
	flags.Parse(os.Args[1:])

	logger := logrus.New()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("failed to create client")
	}
	defer conn.Close()
	client := handler.NewListingClient(conn)

	// Set up an owner and a fresh listing
	suffix := uuid.NewString()[:8]
	var owner domain.Identity
	err = client.Call(ctx, "ResolveIdentity", map[string]string{
		"name":    "race-" + suffix,
		"email":   "race-" + suffix + "@example.com",
		"contact": "555-0100",
	}, &owner)
	if err != nil {
		logger.WithError(err).Fatal("failed to resolve identity")
	}
	ownerCtx := handler.WithIdentity(ctx, owner.ID, "")

	var listing domain.HousingListing
	err = client.Call(ownerCtx, "CreateListing", map[string]any{
		"type": "housing",
		"listing": domain.HousingInput{
			HousingProperty:    "Race Hall",
			ApartmentPlan:      "Studio",
			RoommatesPreferred: 1,
			GenderPreference:   "Any",
			CostMax:            700,
			LeaseTerm:          "12 months",
		},
	}, &listing)
	if err != nil {
		logger.WithError(err).Fatal("failed to create listing")
	}
	logger.WithField("listing", listing.ID).Info("created listing")

	// Counters
	var successCount, rejectedCount, otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := client.Call(ownerCtx, "SetListingStatus", map[string]any{
				"type":   "housing",
				"id":     listing.ID,
				"status": domain.StatusFilledUp,
			}, nil)
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.FailedPrecondition:
				rejectedCount.Add(1)
			default:
				logger.WithError(err).Warn("unexpected outcome")
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	fmt.Println("========== STATUS RACE RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", *requests)
	fmt.Printf("Applied:          %d\n", successCount.Load())
	fmt.Printf("Rejected:         %d\n", rejectedCount.Load())
	fmt.Printf("Other:            %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=========================================")

	// Assertions
	pass := successCount.Load() == 1 && rejectedCount.Load() == int32(*requests-1)
	if pass {
		fmt.Printf("PASS: exactly 1 change applied, %d rejected\n", *requests-1)
	} else {
		fmt.Printf("FAIL: expected 1 applied/%d rejected, got %d/%d\n",
			*requests-1, successCount.Load(), rejectedCount.Load())
	}

	var final domain.HousingListing
	err = client.Call(ownerCtx, "SetListingStatus", map[string]any{
		"type": "housing", "id": listing.ID, "status": domain.StatusBookingFast,
	}, &final)
	if status.Code(err) == codes.FailedPrecondition {
		fmt.Println("PASS: listing stays filled_up")
	} else {
		fmt.Printf("FAIL: expected backward move to be rejected, got %v\n", err)
		pass = false
	}

	if !pass {
		os.Exit(1)
	}
}
