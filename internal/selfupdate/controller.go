// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

type (
	// Checker is the part of Updater the Controller drives.
	Checker interface {
		Check(ctx context.Context) (*UpgradeCheck, error)
		Apply(ctx context.Context, release *Release) error
	}

	// Controller runs a complete self-update and never fails the calling command.
	Controller struct {
		updater Checker
		logger  *log.Logger
		// Confirm is asked before applying; nil applies without asking.
		Confirm func(prompt string) bool
		// CheckOnly stops after reporting whether an upgrade exists.
		CheckOnly bool
	}
)

// NewController returns a controller around updater.
func NewController(updater Checker, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{updater: updater, logger: logger}
}

// SelfUpdate checks for a newer release and installs it. It reports whether
// a new binary was installed plus a message for the user. Any failure is
// logged as a warning and reported as "no update applied".
func (c *Controller) SelfUpdate(ctx context.Context) (applied bool, message string) {
	check, err := c.updater.Check(ctx)
	if err != nil {
		c.logger.Warn("could not check for kiwi updates", "error", err)
		return false, "Could not check for updates; kiwi was not changed."
	}
	if !check.Available() || c.CheckOnly {
		return false, check.Message
	}

	prompt := fmt.Sprintf("Upgrade kiwi %s -> %s?", check.CurrentVersion, check.LatestVersion)
	if c.Confirm != nil && !c.Confirm(prompt) {
		return false, "Upgrade cancelled."
	}

	if err := c.updater.Apply(ctx, check.Release); err != nil {
		c.logger.Warn("self-update failed", "version", check.LatestVersion, "error", err)
		return false, fmt.Sprintf("Upgrade to %s failed; kiwi was not changed.", check.LatestVersion)
	}

	c.logger.Info("upgraded kiwi", "from", check.CurrentVersion, "to", check.LatestVersion)
	return true, fmt.Sprintf("Upgraded kiwi %s -> %s.", check.CurrentVersion, check.LatestVersion)
}
