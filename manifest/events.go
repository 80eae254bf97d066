package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener receives events while a repository is compiled.
type Listener func(fmt.Stringer)

func jsonString(v any) string {
	b, _ := json.Marshal(map[string]any{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventPackageBuilt is emitted when a package definition has been applied.
type EventPackageBuilt struct {
	Definition   string `json:"definition,omitempty"`
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	// Existing is set when an identical package was already present.
	Existing bool `json:"existing,omitempty"`
}

func (e EventPackageBuilt) String() string { return jsonString(e) }

// EventRepositoryWritten is emitted once the repository is on disk.
type EventRepositoryWritten struct {
	Path     string `json:"path,omitempty"`
	Packages int    `json:"packages,omitempty"`
	Signed   bool   `json:"signed,omitempty"`
}

func (e EventRepositoryWritten) String() string { return jsonString(e) }
