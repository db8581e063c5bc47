package environment

import (
	"strings"

	"github.com/boristopalov/gymkit/pkg/backend"
)

// Kind tags which backend owns an environment identifier
type Kind int

const (
	RegistryBacked Kind = iota + 1
	DomainTaskBacked
)

func (k Kind) String() string {
	switch k {
	case RegistryBacked:
		return "registry"
	case DomainTaskBacked:
		return "domain/task"
	default:
		return "unknown"
	}
}

// DefaultTask is used for domain/task identifiers without a task part
const DefaultTask = "walk"

// KnownRegistryIDs are always routed to the registry backend, even when the
// registry does not currently list them
var KnownRegistryIDs = []string{
	"Humanoid-v2", "Humanoid-v3", "Humanoid-v4",
	"Ant-v2", "Ant-v3", "Ant-v4",
	"HalfCheetah-v4", "Hopper-v4", "Walker2d-v4",
	"Swimmer-v4",
}

// Descriptor is the resolved backend for an identifier. ID is set for
// RegistryBacked, Domain and Task for DomainTaskBacked.
type Descriptor struct {
	Kind   Kind
	ID     string
	Domain string
	Task   string
}

// Resolution is the outcome of Resolve
type Resolution struct {
	Descriptor Descriptor
	// SaveFolder is the effective save folder, always empty for the registry backend
	SaveFolder string
}

// Resolve decides which backend owns id. The registry is queried on every
// call; a nil registry is treated as empty.
func Resolve(id string, registry backend.Registry, saveFolder string) Resolution {
	if isKnownRegistryID(id) || (registry != nil && registry.Registered(id)) {
		return Resolution{
			Descriptor: Descriptor{Kind: RegistryBacked, ID: id},
		}
	}

	domain, task, ok := strings.Cut(id, "-")
	if !ok {
		task = DefaultTask
	}
	return Resolution{
		Descriptor: Descriptor{Kind: DomainTaskBacked, Domain: domain, Task: task},
		SaveFolder: saveFolder,
	}
}

func isKnownRegistryID(id string) bool {
	for _, known := range KnownRegistryIDs {
		if id == known {
			return true
		}
	}
	return false
}
