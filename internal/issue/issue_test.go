// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValuesCoverAllIds(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(SelfUpdateFailedId) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), SelfUpdateFailedId)
	}
	for i, is := range values {
		if want := Id(i + 1); is.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, is.Id(), want)
		}
		if len(is.DocLinks()) == 0 {
			t.Errorf("issue %d has no doc links", is.Id())
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", is.Id())
		}
	}
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	if got := Get(Id(999)); got != nil {
		t.Errorf("Get(999) = %v, want nil", got)
	}
}

func TestDocLinksAreCloned(t *testing.T) {
	t.Parallel()

	is := Get(RegistryUnreachableId)
	links := is.DocLinks()
	links[0] = "modified"
	if is.DocLinks()[0] == "modified" {
		t.Error("DocLinks() exposed the internal slice")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Get(SelfUpdateFailedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Self-update failed", "See also", "github.com/kiwi-modules/kiwi/releases"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q:\n%s", want, out)
		}
	}
}
