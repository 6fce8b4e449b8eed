package main

import (
	"context"

	backbone "github.com/gigmarket/backbone-go"
	"github.com/gigmarket/backbone-go/contracts"
)

// logSender stands in for a real email provider: it logs the job instead
// of sending it. Deployments plug their provider in by replacing this.
type logSender struct {
	client *backbone.Client
}

func (s logSender) Send(_ context.Context, job contracts.EmailJob) error {
	s.client.Logger().Info("would send email",
		"template", job.Template,
		"receiver", job.ReceiverEmail,
	)
	return nil
}
