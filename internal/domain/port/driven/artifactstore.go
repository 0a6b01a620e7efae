package driven

import "context"

// ArtifactStore defines the driven port for exchanging files with the CI
// platform's artifact storage.
type ArtifactStore interface {
	// Upload stores the contents of dir as a named artifact.
	Upload(ctx context.Context, name, dir string) error

	// Download fetches the named artifact and unpacks it into destDir.
	Download(ctx context.Context, name, destDir string) error
}
