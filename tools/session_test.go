package tools

import (
	"context"
	"testing"

	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/service"
)

func TestSessionRun(t *testing.T) {
	ctx := context.Background()

	svc := service.NewService(service.Options{})
	defer svc.Shutdown()

	if _, err := svc.PutChart(ctx, chart.TurnstileChart()); err != nil {
		t.Fatal(err)
	}

	session := &Session{
		Doc: "One rider through the turnstile.",
		Steps: []*Step{
			{
				Doc:      "Starts locked.",
				Start:    "scn:///Turnstile",
				As:       "t",
				ExpectAt: "scn:///Turnstile/Locked",
			},
			{
				Doc:      "Pushing a locked turnstile is futile.",
				Send:     "sme:///turnstile/push",
				ExpectAt: "scn:///Turnstile/Locked",
			},
			{
				Send:     "sme:///turnstile/coin",
				ExpectAt: "scn:///Turnstile/Unlocked",
				ExpectEnabled: []string{
					"sme:///turnstile/coin",
					"sme:///turnstile/push",
				},
			},
			{
				Send:       "sme:///turnstile/push",
				ExpectAt:   "scn:///Turnstile/Locked",
				ExpectVars: map[string]chart.Value{"coins": chart.Integer(0)},
			},
			{
				Doc:         "A turnstile does not take words.",
				Set:         map[string]chart.Value{"coins": chart.String("nope")},
				ExpectError: true,
			},
		},
	}

	if err := session.Run(ctx, svc); err != nil {
		t.Fatal(err)
	}
}

func TestSessionDisappointment(t *testing.T) {
	ctx := context.Background()

	svc := service.NewService(service.Options{})
	defer svc.Shutdown()

	if _, err := svc.PutChart(ctx, chart.TurnstileChart()); err != nil {
		t.Fatal(err)
	}

	session := &Session{
		Steps: []*Step{
			{
				Start:    "scn:///Turnstile",
				ExpectAt: "scn:///Turnstile/Unlocked",
			},
		},
	}
	if err := session.Run(ctx, svc); err == nil {
		t.Fatal("expected the run to fail")
	}

	session = &Session{
		Steps: []*Step{
			{
				Send: "sme:///turnstile/coin",
			},
		},
	}
	if err := session.Run(ctx, svc); err == nil {
		t.Fatal("expected a complaint about the missing machine")
	}
}
