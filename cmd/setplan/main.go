// Command setplan grants a user a plan for thirty days, bypassing the
// payment processor. The user must already exist.
//
//	setplan -user user_2abc -plan pro
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/svc/app"
)

func main() {
	var userID, planName string
	flag.StringVar(&userID, "user", "", "user id to update (required)")
	flag.StringVar(&planName, "plan", "", "plan to grant: free, lite or pro (required)")
	flag.Parse()

	if userID == "" || planName == "" {
		flag.Usage()
		os.Exit(2)
	}
	plan, err := subscription.ParsePlan(planName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid plan %q: valid plans are %s\n", planName, validPlans())
		os.Exit(2)
	}

	if err := run(userID, plan); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(userID string, plan subscription.Plan) error {
	var cfg struct {
		Logger logger.Config
		App    app.Config
	}
	if err := config.Load(&cfg); err != nil {
		return err
	}
	log := logger.New(logger.FromConfig(cfg.Logger)...)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg.App, log)
	defer a.Close()
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}

	sub, err := a.Reconciler.Override(ctx, userID, plan)
	if err != nil {
		return fmt.Errorf("set plan for %s: %w", userID, err)
	}
	fmt.Printf("user %s is now on %s until %s\n", userID, sub.Plan, sub.EndDate.Format(time.DateOnly))
	return nil
}

func validPlans() string {
	names := make([]string, 0, len(subscription.Plans()))
	for _, p := range subscription.Plans() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}
