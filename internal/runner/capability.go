// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"fmt"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

type (
	// Capability is what a running module may ask of kiwi.
	Capability interface {
		ModuleName() kiwimod.Name
		InstalledModules() ([]kiwimod.Name, error)
		Description(name kiwimod.Name) (string, error)
		Ask(prompt string, choices ...string) (string, error)
		Serverside(ctx context.Context, args []string) (string, error)
	}

	// Serversider runs a module's server-side logic on the registry;
	// *registry.Client satisfies it.
	Serversider interface {
		Serverside(ctx context.Context, name kiwimod.Name, args []string) (string, error)
	}

	// Asker prompts the user; *tui.Prompter satisfies it.
	Asker interface {
		Ask(prompt string, choices ...string) (string, error)
	}

	// moduleCapability binds a Capability to one running module.
	moduleCapability struct {
		name       kiwimod.Name
		store      Store
		asker      Asker
		serverside Serversider
	}
)

func (c *moduleCapability) ModuleName() kiwimod.Name { return c.name }

func (c *moduleCapability) InstalledModules() ([]kiwimod.Name, error) {
	return c.store.List()
}

func (c *moduleCapability) Description(name kiwimod.Name) (string, error) {
	desc, err := c.store.Descriptor(name)
	if err != nil {
		return "", err
	}
	return desc.Description, nil
}

func (c *moduleCapability) Ask(prompt string, choices ...string) (string, error) {
	if c.asker == nil {
		return "", fmt.Errorf("module %s asked %q but no prompter is available", c.name, prompt)
	}
	return c.asker.Ask(prompt, choices...)
}

func (c *moduleCapability) Serverside(ctx context.Context, args []string) (string, error) {
	if c.serverside == nil {
		return "", fmt.Errorf("module %s has no registry to call", c.name)
	}
	return c.serverside.Serverside(ctx, c.name, args)
}
