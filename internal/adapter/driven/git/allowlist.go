package git

import (
	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/testasset"
)

// allowedFile reports whether a changed path is relevant for the given tool
// type. The role rules live with the asset parsers so diff filtering and
// incremental discovery cannot drift apart.
func allowedFile(tool model.ToolType, p string) bool {
	return testasset.RoleOf(tool, p) != testasset.RoleNone
}
