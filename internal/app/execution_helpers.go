package app

import (
	"context"

	"github.com/wayfinder-paths/adapter-runtime/internal/execution"
	execsigner "github.com/wayfinder-paths/adapter-runtime/internal/execution/signer"
)

func (s *runtimeState) executeActionWithTimeout(action *execution.Action, txSigner execsigner.Signer, opts execution.ExecuteOptions) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	return execution.ExecuteAction(ctx, s.actionStore, action, txSigner, opts)
}
