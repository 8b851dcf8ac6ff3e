package main

import (
	"context"
	"errors"

	"github.com/QuixiAI/Hexis/internal/instance"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// Exit codes per §6: 0 success, 1 domain failure (including
// AgentDeletionRefused unless --force), 2 unknown command, 130
// user-interrupt.
const (
	exitSuccess      = 0
	exitDomainError  = 1
	exitUnknownUsage = 2
	exitInterrupted  = 130
)

// exitCodeFor classifies an error returned from a subcommand's RunE into
// one of the contractual exit codes.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	var refused *instance.AgentDeletionRefused
	if errors.As(err, &refused) {
		return exitDomainError
	}
	var xe *xerrors.Error
	if errors.As(err, &xe) {
		return exitDomainError
	}
	return exitDomainError
}
