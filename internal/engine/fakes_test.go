// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kiwi-modules/kiwi/internal/registry"
	"github.com/kiwi-modules/kiwi/internal/store"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

type fakeRegistry struct {
	modules     []kiwimod.Descriptor
	unreachable bool
	failures    map[kiwimod.Name]error

	listCalls int
	downloads []kiwimod.Name
}

func newFakeRegistry(mods ...kiwimod.Descriptor) *fakeRegistry {
	return &fakeRegistry{modules: mods, failures: map[kiwimod.Name]error{}}
}

func (f *fakeRegistry) List(context.Context) (*kiwimod.Catalog, error) {
	f.listCalls++
	if f.unreachable {
		return nil, &registry.Error{Op: "list", Err: fmt.Errorf("%w: connection refused", registry.ErrUnreachableRegistry)}
	}
	catalog := make([]kiwimod.Descriptor, 0, len(f.modules))
	for _, m := range f.modules {
		m.Content = nil
		catalog = append(catalog, m)
	}
	return kiwimod.NewCatalog(catalog...), nil
}

func (f *fakeRegistry) DownloadVerified(_ context.Context, desc kiwimod.Descriptor) (kiwimod.Descriptor, error) {
	f.downloads = append(f.downloads, desc.Name)
	if err := f.failures[desc.Name]; err != nil {
		return kiwimod.Descriptor{}, err
	}
	for _, m := range f.modules {
		if m.Name == desc.Name {
			return desc.WithContent(m.Content), nil
		}
	}
	return kiwimod.Descriptor{}, &registry.Error{Op: "download", Module: desc.Name, Err: registry.ErrNotFound}
}

type fakeStore struct {
	modules  map[kiwimod.Name]kiwimod.Descriptor
	failures map[kiwimod.Name]error
	installs []kiwimod.Name
}

func newFakeStore(mods ...kiwimod.Descriptor) *fakeStore {
	s := &fakeStore{modules: map[kiwimod.Name]kiwimod.Descriptor{}, failures: map[kiwimod.Name]error{}}
	for _, m := range mods {
		s.modules[m.Name] = m
	}
	return s
}

func (s *fakeStore) List() ([]kiwimod.Name, error) {
	names := make([]kiwimod.Name, 0, len(s.modules))
	for n := range s.modules {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func (s *fakeStore) Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error) {
	d, ok := s.modules[name]
	if !ok {
		return kiwimod.Descriptor{}, &store.NotInstalledError{Name: name}
	}
	return d, nil
}

func (s *fakeStore) Install(desc kiwimod.Descriptor) error {
	if err := s.failures[desc.Name]; err != nil {
		return err
	}
	s.installs = append(s.installs, desc.Name)
	s.modules[desc.Name] = desc
	return nil
}

func (s *fakeStore) names() []kiwimod.Name {
	names, _ := s.List()
	return names
}

func mod(name string, deps ...string) kiwimod.Descriptor {
	return kiwimod.Descriptor{
		Name:         kiwimod.Name(name),
		Description:  "module " + name,
		Dependencies: kiwimod.Names(deps...),
	}.WithContent([]byte("echo " + name))
}

var errDiskFull = errors.New("disk full")
