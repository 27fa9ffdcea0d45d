// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	RegistryUnreachableId
	ModuleNotFoundId
	ModuleNotInstalledId
	DependencyCycleId
	UnknownDependencyId
	DigestMismatchId
	UsageConflictId
	PermissionDeniedId
	SelfUpdateFailedId
)

const docsBase = "https://kiwi-modules.dev/docs/"

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink // every issue has at least one
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page with the given glamour style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

kiwi reads ` + "`config.cue`" + ` from your config directory, or the file given with ` + "`--config`" + `.

## Things you can try:
- Print the effective configuration:
~~~
$ kiwi config show
~~~
- Check the file against the supported keys:
~~~cue
registry: {
  url:     "https://registry.kiwi-modules.dev/v1"
  timeout: "30s"
}
modules_dir: "~/.kiwi/modules"
sync: detect_updates: "off" // or "presence", "digest"
~~~`,
		docLinks: []HttpLink{docsBase + "configuration"},
	}

	registryUnreachableIssue = &Issue{
		id: RegistryUnreachableId,
		mdMsg: `
# The module registry is unreachable!

kiwi could not get a module catalog from the registry. Nothing was installed.

## Things you can try:
- Check your network connection and retry
- Verify the registry URL:
~~~
$ kiwi config show
~~~
- Point kiwi at another registry for one command:
~~~
$ kiwi --registry http://localhost:8080 get mymodule
~~~
- ` + "`kiwi list`" + ` still works offline and shows your installed modules`,
		docLinks: []HttpLink{docsBase + "registry"},
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

The registry catalog has no module with that name.

## Things you can try:
- List what the registry offers:
~~~
$ kiwi list
~~~
- Check the spelling; module names are case-sensitive`,
		docLinks: []HttpLink{docsBase + "modules"},
	}

	moduleNotInstalledIssue = &Issue{
		id: ModuleNotInstalledId,
		mdMsg: `
# Module not installed!

` + "`kiwi update`" + ` only refreshes modules that are already installed.

## Things you can try:
- Install it first:
~~~
$ kiwi get mymodule
~~~`,
		docLinks: []HttpLink{docsBase + "modules"},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Modules in the cycle depend on each other, directly or through other modules,
so no install order exists. No module on the cycle was installed.

## Things you can try:
- Report the cycle to the module authors
- If one module of the cycle is already installed, the others can be fetched`,
		docLinks: []HttpLink{docsBase + "dependencies"},
	}

	unknownDependencyIssue = &Issue{
		id: UnknownDependencyId,
		mdMsg: `
# Unknown dependency!

A module depends on a module the registry does not offer.

## Things you can try:
- Report the broken dependency to the module author
- Retry later; the registry may be mid-publish`,
		docLinks: []HttpLink{docsBase + "dependencies"},
	}

	digestMismatchIssue = &Issue{
		id: DigestMismatchId,
		mdMsg: `
# Downloaded content does not match its digest!

The registry advertised a SHA-256 digest that the downloaded content does not match.
The module was not installed.

## Things you can try:
- Retry; a proxy may have altered the download
- Report the module to the registry operator`,
		docLinks: []HttpLink{docsBase + "registry"},
	}

	usageConflictIssue = &Issue{
		id: UsageConflictId,
		mdMsg: `
# Invalid module selection!

Name modules explicitly or use ` + "`all`" + `, never both.

~~~
$ kiwi get fmt io
$ kiwi update all
~~~`,
		docLinks: []HttpLink{docsBase + "cli"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

kiwi could not write to the modules directory or its own executable.

## Things you can try:
- Check ownership of the modules directory (see ` + "`kiwi config show`" + `)
- Use a directory you own:
~~~
$ KIWI_MODULES_PATH=$HOME/kiwi-modules kiwi get mymodule
~~~`,
		docLinks: []HttpLink{docsBase + "configuration"},
	}

	selfUpdateFailedIssue = &Issue{
		id: SelfUpdateFailedId,
		mdMsg: `
# Self-update failed!

Your current binary was left untouched.

## Things you can try:
- Check for a release without installing it:
~~~
$ kiwi self-update --check
~~~
- Set ` + "`GITHUB_TOKEN`" + ` if you hit the GitHub API rate limit
- Download the release archive manually`,
		docLinks: []HttpLink{docsBase + "install"},
		extLinks: []HttpLink{"https://github.com/kiwi-modules/kiwi/releases"},
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		registryUnreachableIssue.Id(): registryUnreachableIssue,
		moduleNotFoundIssue.Id():      moduleNotFoundIssue,
		moduleNotInstalledIssue.Id():  moduleNotInstalledIssue,
		dependencyCycleIssue.Id():     dependencyCycleIssue,
		unknownDependencyIssue.Id():   unknownDependencyIssue,
		digestMismatchIssue.Id():      digestMismatchIssue,
		usageConflictIssue.Id():       usageConflictIssue,
		permissionDeniedIssue.Id():    permissionDeniedIssue,
		selfUpdateFailedIssue.Id():    selfUpdateFailedIssue,
	}
)

// Values returns all issues ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
